package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/compiler"
)

func newDecodeCommand(v *viper.Viper) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "decode <type> [file]",
		Short: "Decode a JSON or CSV document and print it as canonical JSON",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convert(cmd, v, args, typecodec.Format(from), typecodec.FormatJSON)
		},
	}
	cmd.Flags().StringVar(&from, "from", string(typecodec.FormatJSON), "input format: json or csv")
	return cmd
}

func newEncodeCommand(v *viper.Viper) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "encode <type> [file]",
		Short: "Decode a JSON document and encode it as JSON or CSV",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convert(cmd, v, args, typecodec.FormatJSON, typecodec.Format(to))
		},
	}
	cmd.Flags().StringVar(&to, "to", string(typecodec.FormatJSON), "output format: json or csv")
	return cmd
}

// convert decodes args[1] (or stdin) with the type args[0] in format in and
// writes it back in format out.
func convert(cmd *cobra.Command, v *viper.Viper, args []string, in, out typecodec.Format) error {
	c, err := newCompiler(cmd, v)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	dec, err := c.Decoder(ctx, args[0], in)
	if err != nil {
		return err
	}
	enc, err := c.Encoder(ctx, args[0], out)
	if err != nil {
		return err
	}
	r, err := openResource(cmd, args[1:])
	if err != nil {
		return err
	}

	var col *typecodec.Collector
	if c.Config().CollectErrors {
		col = &typecodec.Collector{}
	}
	val, err := dec.Decode(ctx, r, compiler.WithCollector(col))
	if err != nil {
		return err
	}
	if err := enc.Encode(ctx, cmd.OutOrStdout(), val); err != nil {
		return err
	}
	if out == typecodec.FormatJSON {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	if col != nil && col.Len() > 0 {
		for _, it := range col.Issues() {
			fmt.Fprintln(cmd.ErrOrStderr(), it.Error())
		}
		return fmt.Errorf("%d decode issues", col.Len())
	}
	return nil
}

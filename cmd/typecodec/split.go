package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/reoring/typecodec/internal/stream"
)

func newSplitCommand() *cobra.Command {
	var at []int64
	cmd := &cobra.Command{
		Use:   "split [file]",
		Short: "Print the boundaries of the top-level children of a JSON document",
		Long: `split lexes the document without parsing it and prints one line per
top-level child: key (or index), absolute byte offset and length. --at
offset,length descends into a nested container.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openResource(cmd, args)
			if err != nil {
				return err
			}
			b := stream.Whole
			if len(at) > 0 {
				if len(at) != 2 {
					return fmt.Errorf("--at takes offset,length")
				}
				b = stream.Boundary{Offset: at[0], Length: at[1]}
			}
			c, err := stream.Split(r, b)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if c == nil {
				fmt.Fprintln(out, "null")
				return nil
			}
			for i, ch := range c.Children {
				key := strconv.Itoa(i)
				if c.Dict {
					key = strconv.Quote(ch.Key)
				}
				fmt.Fprintf(out, "%s\t%d\t%d\n", key, ch.Offset, ch.Length)
			}
			return nil
		},
	}
	cmd.Flags().Int64SliceVar(&at, "at", nil, "offset,length of the container to split")
	return cmd
}

// openResource reads the file argument, or stdin, into a random access
// resource.
func openResource(cmd *cobra.Command, args []string) (*bytes.Reader, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

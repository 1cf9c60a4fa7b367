package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reoring/typecodec/types"
)

func newTypeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "type <expr>",
		Short: "Print the canonical form and shape of a type expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := types.Parse(args[0], nil)
			if err != nil {
				return err
			}
			describe(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func describe(w io.Writer, t types.Type) {
	fmt.Fprintf(w, "canonical: %s\n", t)
	fmt.Fprintf(w, "kind: %s\n", t.Kind())
	fmt.Fprintf(w, "nullable: %t\n", t.IsNullable())
	switch {
	case t.IsCollection():
		shape := "mixed-key"
		if t.IsList() {
			shape = "list"
		} else if t.IsDict() {
			shape = "dict"
		}
		dest := "array"
		if t.Destination() == types.DestIterable {
			dest = "iterable"
		}
		fmt.Fprintf(w, "shape: %s\n", shape)
		fmt.Fprintf(w, "destination: %s\n", dest)
		fmt.Fprintf(w, "key: %s\n", t.KeyType())
		fmt.Fprintf(w, "value: %s\n", t.ValueType())
	case t.IsUnion():
		members := make([]string, 0, len(t.Members()))
		for _, m := range t.Members() {
			members = append(members, m.String())
		}
		fmt.Fprintf(w, "members: %s\n", strings.Join(members, ", "))
		if t.IsNullable() {
			fmt.Fprintf(w, "non-null: %s\n", t.NonNull())
		}
	case t.IsObject():
		fmt.Fprintf(w, "class: %s\n", t.Class())
		for i, a := range t.Args() {
			fmt.Fprintf(w, "arg %d: %s\n", i, a)
		}
	}
}

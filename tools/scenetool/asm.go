package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mogaika/scene_browser/chunk/chunktext"
)

func newAsmCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "asm <source>",
		Short: "Assemble chunk text source into binary file",
		Args:  cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// no storage or config needed
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "Cannot read source")
			}
			data, err := chunktext.Assemble(src)
			if err != nil {
				return errors.Wrapf(err, "%s", args[0])
			}
			if out == "" {
				out = strings.TrimSuffix(args[0], ".txt")
				if out == args[0] {
					out += ".bin"
				}
			}
			return os.WriteFile(out, data, 0666)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default is source without .txt)")
	return cmd
}

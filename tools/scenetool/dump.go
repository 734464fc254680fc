package main

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mogaika/scene_browser/chunk"
	"github.com/mogaika/scene_browser/sgu"
	"github.com/mogaika/scene_browser/vfs"
)

func newDumpCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>...",
		Short: "Print chunk tree of scene or model files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := opts.openStorage()
			if err != nil {
				return err
			}
			for _, p := range args {
				data, err := vfs.ReadFile(storage, p)
				if err != nil {
					return err
				}

				var root *chunk.TraceNode
				switch sgu.GetFileKind(p) {
				case sgu.KindScene:
					root, err = sgu.TraceScene(bytes.NewReader(data), p)
				case sgu.KindModel:
					root, err = sgu.TraceModel(bytes.NewReader(data), p)
				default:
					return errors.Errorf("%q is not a scene or model", p)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s:\n%s", p, root.StringTree())
				if err != nil {
					return errors.Wrapf(err, "Dump of %q incomplete", p)
				}
			}
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mogaika/scene_browser/config"
	"github.com/mogaika/scene_browser/sgu"
	"github.com/mogaika/scene_browser/utils"
)

func newValidateCmd(opts *options) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate [file]...",
		Short: "Load scenes and models, all files of storage by default",
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := opts.openStorage()
			if err != nil {
				return err
			}
			files, err := collectFiles(storage, args, sgu.KindScene, sgu.KindModel)
			if err != nil {
				return err
			}

			models := sgu.NewModelCache(storage)
			failed := 0
			for _, p := range files {
				var err error
				var info string
				switch sgu.GetFileKind(p) {
				case sgu.KindModel:
					var mf *sgu.ModelFile
					if mf, err = models.LoadModel(p); err == nil {
						info = fmt.Sprintf("%d models, %d materials", len(mf.Models), len(mf.Materials))
					}
				default:
					if scene, lerr := sgu.LoadScene(storage, p, models, config.GetLoadFlags()); lerr == nil {
						info = fmt.Sprintf("%d nodes", scene.Count())
						if verbose {
							utils.LogDump(sgu.Summarize(scene))
						}
					} else {
						err = lerr
					}
				}
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", p, err)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "OK   %s: %s\n", p, info)
				}
			}
			if failed != 0 {
				return errors.Errorf("%d of %d files failed", failed, len(files))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Dump loaded scenes to log")
	return cmd
}

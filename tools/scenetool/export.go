package main

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mogaika/scene_browser/config"
	"github.com/mogaika/scene_browser/sgu"
	"github.com/mogaika/scene_browser/vfs"
)

// collectFiles returns args or, without args, every storage file of kinds.
func collectFiles(storage vfs.Directory, args []string, kinds ...sgu.FileKind) ([]string, error) {
	if len(args) != 0 {
		return args, nil
	}
	var files []string
	err := vfs.WalkFiles(storage, func(p string, f vfs.File) error {
		kind := sgu.GetFileKind(p)
		for _, k := range kinds {
			if k == kind {
				files = append(files, p)
				break
			}
		}
		return nil
	})
	return files, err
}

func newExportCmd(opts *options) *cobra.Command {
	var format, out string
	var time float32
	var jobs int

	cmd := &cobra.Command{
		Use:   "export [scene]...",
		Short: "Export scenes, all scenes of storage by default",
		RunE: func(cmd *cobra.Command, args []string) error {
			ext, ok := sgu.ExportExt(format)
			if !ok {
				return errors.Errorf("Unknown format %q, supported: %s",
					format, strings.Join(sgu.ExportFormats(), ", "))
			}
			if out == "" {
				out = opts.cfg.ExportDir
			}
			if jobs < 1 {
				jobs = 1
			}
			storage, err := opts.openStorage()
			if err != nil {
				return err
			}
			scenes, err := collectFiles(storage, args, sgu.KindScene)
			if err != nil {
				return err
			}

			models := sgu.NewModelCache(storage)
			var outMu sync.Mutex
			g := new(errgroup.Group)
			g.SetLimit(jobs)
			for _, p := range scenes {
				g.Go(func() error {
					scene, err := sgu.LoadScene(storage, p, models, config.GetLoadFlags())
					if err != nil {
						return err
					}
					scene.SetState(time)

					var buf bytes.Buffer
					if err := sgu.Export(&buf, format, scene, storage, path.Dir(vfs.CleanPath(p))); err != nil {
						return errors.Wrapf(err, "Export of %q failed", p)
					}

					target := filepath.Join(out, filepath.FromSlash(strings.TrimSuffix(vfs.CleanPath(p), path.Ext(p))+ext))
					if err := os.MkdirAll(filepath.Dir(target), 0777); err != nil {
						return err
					}
					if err := os.WriteFile(target, buf.Bytes(), 0666); err != nil {
						return errors.Wrapf(err, "Cannot write %q", target)
					}

					outMu.Lock()
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", p, target)
					outMu.Unlock()
					return nil
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "gltf", "Export format: "+strings.Join(sgu.ExportFormats(), ", "))
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (default from config)")
	cmd.Flags().Float32VarP(&time, "time", "t", 0, "Animation time of exported state")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "Number of scenes exported in parallel")
	return cmd
}

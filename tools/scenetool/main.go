// Command scenetool inspects, validates and exports scene files without
// starting the browser.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/mogaika/scene_browser/config"
	"github.com/mogaika/scene_browser/vfs"
)

type options struct {
	configPath string
	storage    string
	encoding   string

	cfg *config.File
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "scenetool",
		Short:         "Scene and model files toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to yaml config")
	root.PersistentFlags().StringVarP(&opts.storage, "storage", "s", "", "Directory, iso or zip with scenes (overrides config)")
	root.PersistentFlags().StringVar(&opts.encoding, "encoding", "", "Encoding of strings inside files (overrides config)")

	root.AddCommand(
		newDumpCmd(opts),
		newAsmCmd(),
		newExportCmd(opts),
		newValidateCmd(opts),
	)
	return root
}

func (o *options) load() error {
	o.cfg = config.DefaultFile()
	o.cfg.Storage = "."
	if o.configPath != "" {
		cfg, err := config.LoadFile(o.configPath)
		if err != nil {
			return err
		}
		o.cfg = cfg
	}
	if o.storage != "" {
		o.cfg.Storage = o.storage
	}
	if o.encoding != "" {
		o.cfg.Encoding = o.encoding
	}
	return o.cfg.Apply()
}

func (o *options) openStorage() (vfs.Directory, error) {
	return vfs.OpenStorage(o.cfg.Storage)
}

func main() {
	log.SetFlags(0)
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("[scenetool] %v", err)
		os.Exit(1)
	}
}

package main

import (
	"flag"
	"log"

	"github.com/mogaika/scene_browser/config"
	"github.com/mogaika/scene_browser/sgu"
	"github.com/mogaika/scene_browser/vfs"
	"github.com/mogaika/scene_browser/web"
)

func main() {
	var addr, configPath, dir, iso, zip, encoding, webPath string
	flag.StringVar(&addr, "i", "", "Address of server (overrides config)")
	flag.StringVar(&configPath, "config", "", "Path to yaml config")
	flag.StringVar(&dir, "dir", "", "Path to directory with scenes and models")
	flag.StringVar(&iso, "iso", "", "Path to iso image with scenes and models")
	flag.StringVar(&zip, "zip", "", "Path to zip archive with scenes and models")
	flag.StringVar(&encoding, "encoding", "", "Encoding of strings inside files (overrides config)")
	flag.StringVar(&webPath, "web", "web", "Path to folder with web data")
	flag.Parse()

	cfg := config.DefaultFile()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			log.Fatal(err)
		}
	}
	if addr != "" {
		cfg.Address = addr
	}
	if encoding != "" {
		cfg.Encoding = encoding
	}
	switch {
	case iso != "":
		cfg.Storage = iso
	case zip != "":
		cfg.Storage = zip
	case dir != "":
		cfg.Storage = dir
	}
	if cfg.Storage == "" {
		flag.PrintDefaults()
		return
	}

	if err := cfg.Apply(); err != nil {
		log.Fatal(err)
	}

	storage, err := vfs.OpenStorage(cfg.Storage)
	if err != nil {
		log.Fatal(err)
	}

	models := sgu.NewModelCache(storage)
	if cfg.WatchModels {
		if err := models.Watch(); err != nil {
			log.Printf("[browser] Models are not watched: %v", err)
		}
	}
	defer models.Close()

	log.Printf("[browser] Storage %q, load flags %v, encoding %v", cfg.Storage, config.GetLoadFlags(), cfg.Encoding)

	if err := web.StartServer(cfg.Address, web.NewServer(storage, models, config.GetLoadFlags()), webPath); err != nil {
		log.Fatal(err)
	}
}

package sgu

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_browser/vfs"
)

// ModelCache loads model files from storage once and shares them between
// scenes. Models stored on host file system are dropped from cache when
// their files change.
type ModelCache struct {
	storage vfs.Directory

	mu     sync.Mutex
	models map[string]*ModelFile
	hooks  []func(p string)

	watcher *fsnotify.Watcher
	root    string
	doneCh  chan struct{}
}

func NewModelCache(storage vfs.Directory) *ModelCache {
	return &ModelCache{
		storage: storage,
		models:  make(map[string]*ModelFile),
	}
}

func cacheKey(p string) string {
	return strings.ToLower(vfs.CleanPath(p))
}

// LoadModel returns cached model or reads it from storage.
func (mc *ModelCache) LoadModel(p string) (*ModelFile, error) {
	key := cacheKey(p)

	mc.mu.Lock()
	mf, ok := mc.models[key]
	mc.mu.Unlock()
	if ok {
		return mf, nil
	}

	data, err := vfs.ReadFile(mc.storage, p)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open model %q", p)
	}
	if mf, err = ReadModel(bytes.NewReader(data), p); err != nil {
		return nil, err
	}

	mc.mu.Lock()
	// concurrent load of the same path keeps the first result
	if cached, ok := mc.models[key]; ok {
		mf = cached
	} else {
		mc.models[key] = mf
	}
	mc.mu.Unlock()
	return mf, nil
}

// OnInvalidate registers fn called with cleaned path after every
// invalidation, including changes reported by the watcher for files that
// are not cached.
func (mc *ModelCache) OnInvalidate(fn func(p string)) {
	mc.mu.Lock()
	mc.hooks = append(mc.hooks, fn)
	mc.mu.Unlock()
}

// Invalidate drops model p from cache.
func (mc *ModelCache) Invalidate(p string) {
	mc.mu.Lock()
	delete(mc.models, cacheKey(p))
	hooks := mc.hooks
	mc.mu.Unlock()

	p = vfs.CleanPath(p)
	for _, fn := range hooks {
		fn(p)
	}
}

func (mc *ModelCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.models)
}

// Watch starts invalidating cache on file changes. Storages other than
// host directories never change, so Watch is a no-op for them.
func (mc *ModelCache) Watch() error {
	dd, ok := mc.storage.(*vfs.DirectoryDriver)
	if !ok || mc.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrapf(err, "Failed to create watcher")
	}

	mc.root = dd.Path()
	err = filepath.WalkDir(mc.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return errors.Wrapf(err, "Failed to watch %q", mc.root)
	}

	mc.watcher = watcher
	mc.doneCh = make(chan struct{})
	go mc.run()
	log.Printf("[sgu] Watching models in %s", mc.root)
	return nil
}

func (mc *ModelCache) run() {
	defer close(mc.doneCh)
	for {
		select {
		case event, ok := <-mc.watcher.Events:
			if !ok {
				return
			}
			mc.handleEvent(event)
		case err, ok := <-mc.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[sgu] Model watcher error: %v", err)
		}
	}
}

func (mc *ModelCache) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(event.Name); err == nil && s.IsDir() {
			if err := mc.watcher.Add(event.Name); err != nil {
				log.Printf("[sgu] Failed to watch %s: %v", event.Name, err)
			}
			return
		}
	}
	rel, err := filepath.Rel(mc.root, event.Name)
	if err != nil {
		return
	}
	mc.Invalidate(filepath.ToSlash(rel))
}

// Close stops watching. Cached models stay valid.
func (mc *ModelCache) Close() error {
	if mc.watcher == nil {
		return nil
	}
	err := mc.watcher.Close()
	<-mc.doneCh
	mc.watcher = nil
	return err
}

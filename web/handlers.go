package web

import (
	"bytes"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_browser/sg"
	"github.com/mogaika/scene_browser/sgu"
	"github.com/mogaika/scene_browser/status"
	"github.com/mogaika/scene_browser/vfs"
	"github.com/mogaika/scene_browser/webutils"
)

type fileInfo struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Kind string `json:"kind"`
}

func sceneKey(p string) string {
	return strings.ToLower(vfs.CleanPath(p))
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		webutils.WriteErrorStatus(w, http.StatusNotFound, err)
	} else {
		webutils.WriteError(w, err)
	}
}

// scene returns cached scene or loads it. Concurrent loads of the same
// scene are merged. A load that started before an invalidation is
// returned to its callers but not cached.
func (s *Server) scene(p string) (*sg.Scene, error) {
	key := sceneKey(p)

	s.mu.Lock()
	scene, ok := s.scenes[key]
	gen := s.gen
	s.mu.Unlock()
	if ok {
		return scene, nil
	}

	v, err, _ := s.loading.Do(fmt.Sprintf("%s@%d", key, gen), func() (interface{}, error) {
		status.Progress(0, "Loading scene %s", p)
		scene, err := sgu.LoadScene(s.storage, p, s.models, s.flags)
		if err != nil {
			status.Error("Failed to load scene %s: %v", p, err)
			return nil, err
		}
		status.Progress(1, "Loaded scene %s: %d nodes", p, scene.Count())

		s.mu.Lock()
		if s.gen == gen {
			s.scenes[key] = scene
		}
		s.mu.Unlock()
		return scene, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sg.Scene), nil
}

// sceneAt loads scene and sets its state to time from query parameter t.
// Scene must be released with returned function.
func (s *Server) sceneAt(r *http.Request, p string) (*sg.Scene, func(), error) {
	scene, err := s.scene(p)
	if err != nil {
		return nil, nil, err
	}
	t := float32(0)
	if ts := r.URL.Query().Get("t"); ts != "" {
		v, err := strconv.ParseFloat(ts, 32)
		if err != nil {
			return nil, nil, errors.Errorf("Invalid time %q", ts)
		}
		t = float32(v)
	}
	s.stateMu.Lock()
	scene.SetState(t)
	return scene, s.stateMu.Unlock, nil
}

// invalidate drops caches depending on replaced file p. Scenes depending
// on a model are dropped by the models cache hook.
func (s *Server) invalidate(p string) {
	if sgu.GetFileKind(p) == sgu.KindModel {
		s.models.Invalidate(p)
	} else {
		s.dropScenes(p)
	}
}

func (s *Server) dropScenes(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch sgu.GetFileKind(p) {
	case sgu.KindModel:
		// scenes hold copies of model geometry
		s.scenes = make(map[string]*sg.Scene)
	case sgu.KindScene:
		delete(s.scenes, sceneKey(p))
	default:
		return
	}
	s.gen++
}

func (s *Server) HandlerAjaxFiles(w http.ResponseWriter, r *http.Request) {
	files := make([]fileInfo, 0)
	err := vfs.WalkFiles(s.storage, func(p string, f vfs.File) error {
		files = append(files, fileInfo{Path: p, Size: f.Size(), Kind: sgu.GetFileKind(p).String()})
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	webutils.WriteJson(w, files)
}

func (s *Server) HandlerAjaxScene(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	scene, release, err := s.sceneAt(r, file)
	if err != nil {
		writeError(w, err)
		return
	}
	summary := sgu.Summarize(scene)
	release()
	webutils.WriteJson(w, summary)
}

func (s *Server) HandlerAjaxTrace(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	data, err := vfs.ReadFile(s.storage, file)
	if err != nil {
		writeError(w, err)
		return
	}

	var root interface{ StringTree() string }
	switch sgu.GetFileKind(file) {
	case sgu.KindScene:
		root, err = sgu.TraceScene(bytes.NewReader(data), file)
	case sgu.KindModel:
		root, err = sgu.TraceModel(bytes.NewReader(data), file)
	default:
		webutils.WriteErrorStatus(w, http.StatusBadRequest, errors.Errorf("File %q is not a scene or model", file))
		return
	}

	result := struct {
		Tree  string `json:"tree"`
		Error string `json:"error,omitempty"`
	}{Tree: root.StringTree()}
	if err != nil {
		result.Error = err.Error()
	}
	webutils.WriteJson(w, result)
}

func (s *Server) HandlerDumpFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	data, err := vfs.ReadFile(s.storage, file)
	if err != nil {
		writeError(w, err)
		return
	}
	webutils.WriteFile(w, bytes.NewReader(data), path.Base(file))
}

func (s *Server) HandlerExportScene(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	file, format := vars["file"], vars["format"]

	ext, ok := sgu.ExportExt(format)
	if !ok {
		webutils.WriteErrorStatus(w, http.StatusBadRequest, errors.Errorf("Unknown export format %q", format))
		return
	}
	name := strings.TrimSuffix(path.Base(file), path.Ext(file)) + ext

	scene, release, err := s.sceneAt(r, file)
	if err != nil {
		writeError(w, err)
		return
	}
	defer release()

	var buf bytes.Buffer
	err = sgu.Export(&buf, format, scene, s.storage, path.Dir(vfs.CleanPath(file)))
	if err != nil {
		log.Printf("[web] Export of %q to %s failed: %v", file, format, err)
		webutils.WriteError(w, errors.Wrapf(err, "Export to %s failed", format))
		return
	}
	status.Info("Exported %s to %s", file, name)
	webutils.WriteFile(w, &buf, name)
}

// HandlerUploadFile replaces or creates storage file. Scenes and models
// are parsed before writing, broken files are rejected.
func (s *Server) HandlerUploadFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	data, err := webutils.ReadFormFile(r, "data")
	if err != nil {
		webutils.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	switch sgu.GetFileKind(file) {
	case sgu.KindScene:
		_, err = sgu.ReadScene(bytes.NewReader(data), file, nil, 0)
	case sgu.KindModel:
		_, err = sgu.ReadModel(bytes.NewReader(data), file)
	}
	if err != nil {
		webutils.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	f, err := vfs.CreateFile(s.storage, file)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := vfs.OpenFileAndCopy(f, bytes.NewReader(data)); err != nil {
		writeError(w, err)
		return
	}
	s.invalidate(file)

	log.Printf("[web] Uploaded %q (%d bytes)", file, len(data))
	status.Info("Uploaded %s", file)
	webutils.WriteJson(w, fileInfo{Path: vfs.CleanPath(file), Size: int64(len(data)), Kind: sgu.GetFileKind(file).String()})
}

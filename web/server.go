package web

import (
	"log"
	"net/http"
	"os"
	"path"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/sync/singleflight"

	"github.com/mogaika/scene_browser/config"
	"github.com/mogaika/scene_browser/sg"
	"github.com/mogaika/scene_browser/sgu"
	"github.com/mogaika/scene_browser/status"
	"github.com/mogaika/scene_browser/vfs"
)

// Server serves scenes of storage. Loaded scenes are cached until the
// scene or any model changes, either by upload or on disk when models
// cache is watched.
type Server struct {
	storage vfs.Directory
	models  *sgu.ModelCache
	flags   config.LoadFlags

	mu      sync.Mutex
	scenes  map[string]*sg.Scene
	gen     uint64 // incremented by every scene cache invalidation
	loading singleflight.Group
	// guards animation state of cached scenes
	stateMu sync.Mutex
}

func NewServer(storage vfs.Directory, models *sgu.ModelCache, flags config.LoadFlags) *Server {
	if models == nil {
		models = sgu.NewModelCache(storage)
	}
	s := &Server{
		storage: storage,
		models:  models,
		flags:   flags,
		scenes:  make(map[string]*sg.Scene),
	}
	models.OnInvalidate(s.dropScenes)
	return s
}

// Router returns api routes. Static files are served by StartServer only.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/json/files", s.HandlerAjaxFiles).Methods("GET")
	r.HandleFunc("/json/scene/{file:.+}", s.HandlerAjaxScene).Methods("GET")
	r.HandleFunc("/json/trace/{file:.+}", s.HandlerAjaxTrace).Methods("GET")
	r.HandleFunc("/dump/{file:.+}", s.HandlerDumpFile).Methods("GET")
	r.HandleFunc("/export/{format}/{file:.+}", s.HandlerExportScene).Methods("GET")
	r.HandleFunc("/upload/{file:.+}", s.HandlerUploadFile).Methods("POST")
	r.HandleFunc("/ws/status", status.ServeWs)
	return r
}

func StartServer(addr string, s *Server, webPath string) error {
	r := s.Router()
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(path.Join(webPath, "data"))))

	h := handlers.LoggingHandler(os.Stdout, r)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}

// Package server exposes printkit sessions over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	printkit "github.com/porticus-lab/go-printkit"
	"github.com/porticus-lab/go-printkit/kv"
	"github.com/porticus-lab/go-printkit/tools"
)

// Config holds server configuration.
type Config struct {
	// CORSOrigins lists allowed origins; "*" allows all.
	CORSOrigins []string
	// BaseURL prefixes share links. Empty derives it from the request.
	BaseURL string
	// Debounce and Autosave are applied to every session.
	Debounce time.Duration
	Autosave time.Duration
	// MaxImageBytes caps uploads for tools that set no limit of their own.
	MaxImageBytes int64
}

// Server serves document sessions.
type Server struct {
	cfg       Config
	tools     *tools.Registry
	store     kv.Store
	exporters printkit.Exporters
	logger    *zap.Logger
	router    chi.Router
	origins   []string
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool

	httpServer *http.Server
}

type entry struct {
	tool    *tools.Tool
	session *printkit.Session
	stop    context.CancelFunc
}

// New creates a server. store may be nil, in which case sessions are
// not persisted. exporters defaults to the browserless set.
func New(cfg Config, reg *tools.Registry, store kv.Store, exporters printkit.Exporters, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exporters == nil {
		exporters = printkit.NewExporters(nil)
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = printkit.DefaultMaxImageBytes
	}
	s := &Server{
		cfg:       cfg,
		tools:     reg,
		store:     store,
		exporters: exporters,
		logger:    logger,
		sessions:  make(map[string]*entry),
		origins:   cfg.CORSOrigins,
	}
	if len(s.origins) == 0 {
		s.origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.originAllowed}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/share/{tool}", s.handleShareView)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tools", s.handleTools)
		r.Post("/sessions", s.handleCreate)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.withSession(s.handleGet))
			r.Delete("/", s.handleDelete)
			r.Put("/fields/{name}", s.withSession(s.handleSetField))
			r.Put("/prefs/{key}", s.withSession(s.handleSetPref))
			r.Post("/images/{name}", s.withSession(s.handleImage))
			r.Post("/imports/{name}", s.withSession(s.handleImport))
			r.Get("/preview", s.withSession(s.handlePreview))
			r.Get("/live", s.withSession(s.handleLive))
			r.Post("/export", s.withSession(s.handleExport))
			r.Post("/save", s.withSession(s.handleSave))
			r.Get("/share", s.withSession(s.handleShare))
		})
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("printkit server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener and closes every open session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.Close()
	return err
}

// Close closes every open session. Dirty sessions are saved first.
func (s *Server) Close() {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*entry)
	s.closed = true
	s.mu.Unlock()

	for id, e := range entries {
		s.closeEntry(id, e)
	}
}

func (s *Server) closeEntry(id string, e *entry) {
	e.stop()
	if s.store != nil && e.session.State() == printkit.StateDirty {
		if err := e.session.Save(context.Background()); err != nil {
			s.logger.Warn("final save failed", zap.String("session", id), zap.Error(err))
		}
	}
	e.session.Close()
}

// originAllowed applies the CORS origin list to websocket handshakes,
// which browsers send cross-origin without a preflight. Requests without
// an Origin header do not come from a browser page and are allowed.
func (s *Server) originAllowed(r *http.Request) bool {
	origin := strings.ToLower(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, o := range s.origins {
		o = strings.ToLower(o)
		if o == "*" || o == origin {
			return true
		}
		if ok, _ := doublestar.Match(o, origin); ok {
			return true
		}
	}
	return false
}

func (s *Server) lookup(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	return e, ok
}

// requestLogger logs one line per request with zap.
func requestLogger(l *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				l.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("took", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

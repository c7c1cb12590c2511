package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ThreadBot/core"
	"ThreadBot/core/dispatch"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type commandInfo struct {
	Name       string        `json:"name"`
	Aliases    []string      `json:"aliases,omitempty"`
	Category   string        `json:"category,omitempty"`
	Permission string        `json:"permission"`
	Cooldown   time.Duration `json:"cooldown_ms"`
	Help       string        `json:"help,omitempty"`
	Usage      string        `json:"usage,omitempty"`
}

// StatusServer exposes health, the command table and dispatch metrics over HTTP.
type StatusServer struct {
	dispatcher *dispatch.Dispatcher
	srv        *http.Server
}

func NewStatusServer(addr string, d *dispatch.Dispatcher) *StatusServer {
	s := &StatusServer{dispatcher: d}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *StatusServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.health)
	r.Get("/commands", s.commands)
	r.Get("/stats", s.stats)
	return r
}

// Start serves in the background until Shutdown is called.
func (s *StatusServer) Start() {
	go func() {
		core.LogInfoF("Status server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			core.LogErrorF("Status server stopped: %s", err)
		}
	}()
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *StatusServer) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *StatusServer) commands(w http.ResponseWriter, _ *http.Request) {
	list := s.dispatcher.Registry().List()
	out := make([]commandInfo, 0, len(list))
	for _, cmd := range list {
		out = append(out, commandInfo{
			Name:       cmd.Name,
			Aliases:    cmd.Aliases,
			Category:   cmd.Category,
			Permission: cmd.Permission.String(),
			Cooldown:   s.dispatcher.Cooldowns().Duration(cmd) / time.Millisecond,
			Help:       cmd.Help,
			Usage:      cmd.Usage,
		})
	}
	writeJSON(w, out)
}

func (s *StatusServer) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.dispatcher.Metrics().Snapshot())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		core.LogErrorF("Failed to encode status response: %s", err)
	}
}

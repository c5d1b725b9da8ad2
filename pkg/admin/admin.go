// Package admin is a small operator-facing HTTP surface alongside the
// game transport: liveness and a per-room snapshot, grounded in the
// teacher's pkg/api/server.go Start/Stop/TLS shape but routed with
// gorilla/mux instead of the stdlib pattern mux, since the admin surface
// is meant to grow path variables (e.g. /rooms/{name}) over time.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/solstice-games/syncstep/pkg/log"
	"github.com/solstice-games/syncstep/pkg/server"
)

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// Options configures a Server.
type Options struct {
	Port   int
	TLS    *TLSConfig
	Server *server.Server
}

// Server is the admin HTTP surface.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	tls        *TLSConfig
}

func New(opts Options) *Server {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/rooms", handleRooms(opts.Server)).Methods(http.MethodGet)

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", opts.Port),
			Handler: r,
		},
		router: r,
		tls:    opts.TLS,
	}
}

// Handler returns the underlying http.Handler, for tests that want to
// drive requests without binding a real listener.
func (s *Server) Handler() http.Handler { return s.router }

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func handleRooms(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.RoomSummaries()); err != nil {
			log.Error("admin: encoding room summary: %v", err)
		}
	}
}

// Start runs the admin HTTP server until it is stopped, blocking the
// calling goroutine.
func (s *Server) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("admin server listening on %s with TLS", s.httpServer.Addr)
		listenAndServe = func() error {
			return s.httpServer.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("admin server listening on %s", s.httpServer.Addr)
		listenAndServe = s.httpServer.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("admin server closed")
			return
		}
		log.Error("admin server error: %v", err)
	}
}

// Stop gracefully shuts the admin server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

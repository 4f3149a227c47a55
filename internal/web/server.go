// Package web provides the node's HTTP status and provisioning server.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/envnode/internal/provision"
	"github.com/sweeney/envnode/internal/status"
)

// Submitter accepts credentials while a provisioning window is open.
type Submitter interface {
	Submit(ssid, password string) error
}

// Server serves the status pages over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	submitter  Submitter
}

// New creates a Server that reads state from the given tracker. submitter
// may be nil, in which case /provision always reports the window closed.
func New(addr string, tracker *status.Tracker, submitter Submitter) *Server {
	s := &Server{tracker: tracker, submitter: submitter}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/provision", s.handleProvision)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if s.submitter == nil {
		http.Error(w, provision.ErrNotOpen.Error(), http.StatusConflict)
		return
	}

	err := s.submitter.Submit(r.PostForm.Get("ssid"), r.PostForm.Get("password"))
	switch {
	case err == nil:
		log.Info().Str("component", "web").Str("ssid", r.PostForm.Get("ssid")).Msg("credentials received")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("saved\n"))
	case errors.Is(err, provision.ErrNotOpen):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, provision.ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error().Str("component", "web").Err(err).Msg("provisioning failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

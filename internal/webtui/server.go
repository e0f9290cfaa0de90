// Package webtui serves the terminal editor to a browser over a websocket-backed pty.
package webtui

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var assetsFS embed.FS

type ServerConfig struct {
	Addr string
	// File is passed to each session as --file.
	File   string
	Logger *zap.Logger
}

type Server struct {
	cfg  ServerConfig
	tmpl *template.Template
	log  *zap.Logger
	// command builds the session process; tests replace it.
	command func() (string, []string, error)
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.File = strings.TrimSpace(cfg.File)
	if cfg.Addr == "" {
		return nil, errors.New("webtui: missing addr")
	}
	tmpl, err := template.ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{cfg: cfg, tmpl: tmpl, log: log}
	s.command = s.selfCommand
	return s, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/terminal", http.StatusFound)
	})
	mux.HandleFunc("GET /terminal", s.handleTerminal)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

type terminalVM struct {
	File string
}

func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "terminal.html", terminalVM{File: s.cfg.File}); err != nil {
		s.log.Error("render terminal page", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Package web serves a read-mostly HTTP view of one tree file. Open pages follow
// changes live over a datastar event stream.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"treegrid-cli/internal/document"
	"treegrid-cli/internal/export"
	"treegrid-cli/internal/layout"
	"treegrid-cli/internal/model"
	"treegrid-cli/internal/mutate"
	"treegrid-cli/internal/savefile"
	"treegrid-cli/internal/tree"
	"treegrid-cli/internal/watch"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var assetsFS embed.FS

const maxOpBody = 1 << 20

type ServerConfig struct {
	Addr string
	// ReadOnly rejects POST /api/ops.
	ReadOnly bool
	Logger   *zap.Logger
}

type Server struct {
	mu   sync.RWMutex
	cfg  ServerConfig
	doc  *document.Document
	tmpl *template.Template
	log  *zap.Logger

	hub *changeHub
	// version counts document changes; pages use it to refetch the SVG.
	version uint64
}

func NewServer(cfg ServerConfig, doc *document.Document) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if doc == nil {
		return nil, errors.New("web: no document")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tmpl, err := template.New("base").ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, doc: doc, tmpl: tmpl, log: log, hub: newChangeHub()}, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/", s.handleHome)
	r.Get("/health", s.handleHealth)
	r.Get("/tree.svg", s.handleSVG)
	r.Get("/events", s.handleEvents)
	r.Route("/api", func(r chi.Router) {
		r.Get("/tree", s.handleTree)
		r.Get("/layout", s.handleLayout)
		r.Get("/check", s.handleCheck)
		r.Get("/nodes/{level}/{index}", s.handleNode)
		r.Post("/ops", s.handleOps)
	})
	return r
}

// ListenAndServe runs the server until ctx is cancelled. When the document has a
// path, edits other processes make to the file are reloaded unless there are unsaved
// changes.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end with ctx instead of holding up Shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	if path := s.docPath(); path != "" {
		w, err := watch.New(path, 0)
		if err != nil {
			s.log.Warn("file watch disabled", zap.String("path", path), zap.Error(err))
		} else {
			go w.Run(ctx)
			go s.reloadLoop(ctx, w)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) docPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Path
}

func (s *Server) reloadLoop(ctx context.Context, w *watch.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.Errors():
			s.log.Warn("file watch", zap.Error(err))
		case <-w.Changed():
			s.reloadFromDisk()
		}
	}
}

func (s *Server) reloadFromDisk() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Edited {
		s.log.Info("file changed on disk; keeping unsaved edits", zap.String("path", s.doc.Path))
		return
	}
	changed, err := s.doc.ReloadIfChanged()
	if err != nil {
		s.log.Warn("reload failed", zap.String("path", s.doc.Path), zap.Error(err))
		return
	}
	if !changed {
		return
	}
	s.changedLocked()
	s.log.Info("reloaded", zap.String("path", s.doc.Path), zap.Int("nodes", s.doc.Tree.Len()))
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

func writeData(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, envelope{Data: v})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), envelope{Error: err.Error()})
}

func statusFor(err error) int {
	var (
		inUse     *tree.CoordinateInUseError
		violation *tree.InvariantViolation
		malformed *savefile.MalformedLineError
		unknown   mutate.UnknownKindError
		missing   mutate.MissingFieldError
	)
	switch {
	case errors.Is(err, tree.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tree.ErrDuplicateRoot), errors.As(err, &inUse), errors.As(err, &violation):
		return http.StatusConflict
	case errors.As(err, &malformed), errors.As(err, &unknown), errors.As(err, &missing):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type treeVM struct {
	Name        string         `json:"name"`
	Path        string         `json:"path,omitempty"`
	Edited      bool           `json:"edited"`
	Nodes       []model.Node   `json:"nodes"`
	LevelCounts map[string]int `json:"levelCounts"`
}

func levelCountsJSON(t *tree.Store) map[string]int {
	out := map[string]int{}
	for level, n := range t.LevelCounts() {
		out[strconv.Itoa(level)] = n
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	vm := treeVM{
		Name:        s.doc.Name,
		Path:        s.doc.Path,
		Edited:      s.doc.Edited,
		Nodes:       s.doc.Tree.Nodes(),
		LevelCounts: levelCountsJSON(s.doc.Tree),
	}
	s.mu.RUnlock()
	writeData(w, vm)
}

type layoutVM struct {
	Rows       int                `json:"rows"`
	Columns    int                `json:"columns"`
	Placements []layout.Placement `json:"placements"`
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	plan := s.doc.Plan()
	s.mu.RUnlock()
	writeData(w, layoutVM{Rows: plan.Rows, Columns: plan.Columns, Placements: plan.Placements()})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	vs := s.doc.Tree.Check()
	s.mu.RUnlock()
	if vs == nil {
		vs = []tree.InvariantViolation{}
	}
	writeData(w, map[string]any{"ok": len(vs) == 0, "violations": vs})
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	level, err1 := strconv.Atoi(chi.URLParam(r, "level"))
	index, err2 := strconv.Atoi(chi.URLParam(r, "index"))
	if err1 != nil || err2 != nil || level < 0 || index < 0 {
		writeJSON(w, http.StatusBadRequest, envelope{Error: "level and index must be non-negative integers"})
		return
	}
	s.mu.RLock()
	n, err := s.doc.Tree.GetNode(model.Coordinate{Level: level, Index: index})
	s.mu.RUnlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, n)
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	nodes := s.doc.Tree.Nodes()
	scene := export.NewScene(s.doc.Plan(), nodes, s.doc.Label())
	s.mu.RUnlock()

	var b bytes.Buffer
	if err := export.RenderSVG(&b, scene); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(b.Bytes())
}

func (s *Server) handleOps(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ReadOnly {
		writeJSON(w, http.StatusForbidden, envelope{Error: "server is read-only"})
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxOpBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Error: err.Error()})
		return
	}
	op, err := mutate.Decode(raw)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, envelope{Error: err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.doc.Commit(op)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			s.log.Error("save after op failed; op rolled back", zap.String("path", s.doc.Path), zap.Error(err))
		}
		writeError(w, err)
		return
	}
	if res.Changed {
		s.changedLocked()
	}
	s.log.Info("applied op", zap.String("kind", string(res.Kind)), zap.Stringer("coord", res.Coord), zap.Bool("changed", res.Changed))
	writeData(w, res)
}

type nodeRow struct {
	Coord       string
	Title       string
	Parent      string
	Description template.HTML
}

type homeVM struct {
	Version    uint64
	Label      string
	NodeCount  int
	Levels     int
	Violations []tree.InvariantViolation
	Rows       []nodeRow
}

func (s *Server) homeViewModel() homeVM {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vm := homeVM{
		Version:    s.version,
		Label:      s.doc.Label(),
		NodeCount:  s.doc.Tree.Len(),
		Levels:     len(s.doc.Tree.Levels()),
		Violations: s.doc.Tree.Check(),
	}
	for _, n := range s.doc.Tree.Nodes() {
		row := nodeRow{Coord: n.Coord.String(), Title: n.Title, Description: renderDescription(n.Description)}
		if n.Parent != nil {
			row.Parent = n.Parent.String()
		}
		vm.Rows = append(vm.Rows, row)
	}
	return vm
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	html, err := s.renderTemplate("index.html", s.homeViewModel())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

package web

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/starfederation/datastar-go/datastar"
)

const (
	mainSelector    = "#tree-main"
	liveKeepAlive   = 25 * time.Second
	liveSubscribers = 8
)

// changeHub fans out "the document changed" to every open /events stream.
type changeHub struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newChangeHub() *changeHub {
	return &changeHub{subs: map[chan struct{}]struct{}{}}
}

func (h *changeHub) subscribe() (ch chan struct{}, cancel func()) {
	ch = make(chan struct{}, liveSubscribers)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}
}

func (h *changeHub) broadcast() {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

// changedLocked bumps the page version and wakes every stream. s.mu must be held
// for writing.
func (s *Server) changedLocked() {
	s.version++
	s.hub.broadcast()
}

// handleEvents streams a fresh #tree-main whenever the document changes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ch, cancel := s.hub.subscribe()
	defer cancel()

	sse := datastar.NewSSE(w, r)
	_ = sse.MarshalAndPatchSignals(map[string]any{"version": s.currentVersion()})

	keepAlive := time.NewTicker(liveKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case <-ch:
			html, err := s.renderTemplate("main", s.homeViewModel())
			if err != nil {
				_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
				continue
			}
			if strings.TrimSpace(html) == "" {
				continue
			}
			_ = sse.PatchElements(html, datastar.WithSelector(mainSelector), datastar.WithMode(datastar.ElementPatchModeOuter))
			_ = sse.MarshalAndPatchSignals(map[string]any{"version": s.currentVersion()})
		}
	}
}

func (s *Server) currentVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Server) renderTemplate(name string, data any) (string, error) {
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

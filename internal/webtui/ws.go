package webtui

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type controlMsg struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin allows requests without an Origin header and those whose origin
// names the request host.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	return strings.HasSuffix(origin, "://"+strings.TrimSpace(r.Host))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ptmx, cleanup, err := s.startSession()
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("failed to start session: "+err.Error()))
		return
	}
	defer cleanup()
	s.log.Info("terminal session started", zap.String("remoteAddr", r.RemoteAddr))

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- copyPTYToWS(ctx, ptmx, conn)
	}()
	go func() {
		defer wg.Done()
		errCh <- copyWSToPTY(ctx, conn, ptmx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			s.log.Debug("terminal session ended", zap.Error(err))
		}
	}
	cancel()
	cleanup()
	wg.Wait()
}

// selfCommand re-runs this binary with no subcommand, which opens the editor.
func (s *Server) selfCommand() (string, []string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", nil, err
	}
	var args []string
	if s.cfg.File != "" {
		args = append(args, "--file", s.cfg.File)
	}
	return exe, args, nil
}

func (s *Server) startSession() (*os.File, func(), error) {
	name, args, err := s.command()
	if err != nil {
		return nil, nil, err
	}
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: 120, Rows: 40})
	if err != nil {
		return nil, nil, err
	}
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			_ = ptmx.Close()
			_ = cmd.Process.Kill()
			_, _ = cmd.Process.Wait()
		})
	}
	return ptmx, cleanup, nil
}

func copyPTYToWS(ctx context.Context, ptmx *os.File, conn *websocket.Conn) error {
	buf := make([]byte, 32*1024)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := ptmx.Read(buf)
		if n > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func copyWSToPTY(ctx context.Context, conn *websocket.Conn, ptmx *os.File) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if len(data) == 0 {
			continue
		}
		// Text frames starting with '{' are control messages; everything else is input.
		if mt == websocket.TextMessage && data[0] == '{' {
			var m controlMsg
			if json.Unmarshal(data, &m) == nil && strings.EqualFold(m.Type, "resize") && m.Cols > 0 && m.Rows > 0 {
				_ = pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(m.Cols), Rows: uint16(m.Rows)})
			}
			continue
		}
		if _, err := ptmx.Write(data); err != nil {
			return err
		}
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"treegrid-cli/internal/document"
	"treegrid-cli/internal/savefile"
	"treegrid-cli/internal/web"
	"treegrid-cli/internal/webtui"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var readOnly, open bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tree over HTTP (HTML view, SVG and a JSON API)",
		Long: strings.TrimSpace(`
Serve one tree file from a local HTTP server.

  GET  /               server-rendered grid (no JavaScript)
  GET  /tree.svg       the grid as a picture
  GET  /api/tree       every node
  GET  /api/layout     the layout plan
  GET  /api/check      invariant report
  GET  /api/nodes/L/I  one node
  POST /api/ops        apply one operation (see ` + "`treegrid apply --help`" + `)

Edits made through the API are saved to --file. When the file changes on disk
the server reloads it unless it holds unsaved edits.
`),
		Example: strings.TrimSpace(`
  treegrid --file plan.sav serve --addr 127.0.0.1:3335
  treegrid --file plan.sav serve --read-only --open=false
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := openOrNew(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			srv, err := web.NewServer(web.ServerConfig{
				Addr:     strings.TrimSpace(addr),
				ReadOnly: readOnly,
				Logger:   app.log,
			}, doc)
			if err != nil {
				return writeErr(cmd, err)
			}

			url := "http://" + displayAddr(srv.Addr()) + "/"
			opened := false
			openErr := ""
			if open {
				if err := openPath(url); err != nil {
					openErr = err.Error()
				} else {
					opened = true
				}
			}
			hints := []string{}
			if !opened {
				hints = append(hints, "open "+url)
			}
			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      srv.Addr(),
					"url":       url,
					"file":      doc.Path,
					"readOnly":  readOnly,
					"opened":    opened,
					"openError": openErr,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				"_hints": hints,
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "treegrid serve running at %s (file=%s)\n", url, doc.Path)

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3335", "Bind address (host:port or :port)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Reject POST /api/ops")
	cmd.Flags().BoolVar(&open, "open", true, "Open the page in your default browser")
	return cmd
}

func newWebTUICmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "webtui",
		Short: "Run the terminal editor in your browser (PTY + WebSocket, experimental)",
		Long: strings.TrimSpace(`
Run the terminal editor over the web via a server-side PTY and a browser terminal emulator.

Notes:
- Experimental, no auth. Bind to localhost.
- Each browser tab starts its own editor process on --file.
`),
		Example: strings.TrimSpace(`
  treegrid --file plan.sav webtui --addr 127.0.0.1:3334
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := webtui.NewServer(webtui.ServerConfig{
				Addr:   strings.TrimSpace(addr),
				File:   app.filePath(),
				Logger: app.log,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			listenAddr := srv.Addr()

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      listenAddr,
					"file":      app.filePath(),
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				"_hints": []string{
					"open http://" + displayAddr(listenAddr),
				},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "treegrid webtui running at http://%s\n", displayAddr(listenAddr))

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			hs := &http.Server{Addr: listenAddr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return hs.Shutdown(shutdownCtx)
			})
			if err := g.Wait(); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3334", "Bind address (host:port or :port)")
	return cmd
}

// openOrNew opens --file, or starts an empty tree that will be saved there. Without
// --file the tree lives only in memory.
func openOrNew(app *App) (*document.Document, error) {
	doc := document.New()
	path := app.filePath()
	if path == "" {
		return doc, nil
	}
	d, err := document.Open(path)
	switch {
	case err == nil:
		app.recordRecent(path)
		return d, nil
	case errors.Is(err, fs.ErrNotExist):
		doc.Path = path
		doc.Name = savefile.BaseName(path)
		return doc, nil
	default:
		return nil, withRenumberHint(err)
	}
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	return addr
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

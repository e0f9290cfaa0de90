package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"treegrid-cli/internal/document"
	"treegrid-cli/internal/format"
	"treegrid-cli/internal/logging"
	"treegrid-cli/internal/mutate"
	"treegrid-cli/internal/savefile"
	"treegrid-cli/internal/store"
	"treegrid-cli/internal/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	envFile   = "TREEGRID_FILE"
	envFormat = "TREEGRID_FORMAT"
)

type App struct {
	File       string
	PrettyJSON bool
	Format     string

	cfg *store.Config
	log *zap.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "treegrid",
		Short:        "Edit level-ordered trees in a grid (TUI + scriptable CLI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive editor on a file
  treegrid --file plan.sav

  # Scriptable commands
  treegrid --file plan.sav new --title "Start"
  treegrid --file plan.sav nodes add --parent 0,0 --title "Left"
  treegrid --file plan.sav layout --text
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			return runTUI(app)
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, err := format.Parse(app.Format); err != nil {
			return writeErr(cmd, err)
		}
		cfg, err := store.LoadConfig()
		if err != nil {
			return writeErr(cmd, fmt.Errorf("load config: %w", err))
		}
		app.cfg = cfg
		log, err := logging.New(logging.Resolve(cfg.DebugLog))
		if err != nil {
			return writeErr(cmd, fmt.Errorf("open debug log: %w", err))
		}
		app.log = log.With(zap.String("cmd", cmd.CommandPath()))
		return nil
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.log != nil {
			_ = app.log.Sync()
		}
		return nil
	}

	cmd.PersistentFlags().StringVarP(&app.File, "file", "f", envOr(envFile, ""), "Tree file (.sav)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr(envFormat, "json"), "Output format (json|edn)")

	cmd.AddCommand(newNewCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newNodesCmd(app))
	cmd.AddCommand(newLinksCmd(app))
	cmd.AddCommand(newApplyCmd(app))
	cmd.AddCommand(newRenumberCmd(app))
	cmd.AddCommand(newLayoutCmd(app))
	cmd.AddCommand(newCheckCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newPublishCmd(app))
	cmd.AddCommand(newLibraryCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newWebTUICmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

func runTUI(app *App) error {
	doc := document.New()
	if path := app.filePath(); path != "" {
		d, err := document.Open(path)
		switch {
		case err == nil:
			doc = d
			app.recordRecent(path)
		case errors.Is(err, fs.ErrNotExist):
			// A new file: the first save creates it.
			doc.Path = path
			doc.Name = savefile.BaseName(path)
		default:
			return err
		}
	}
	return tui.Run(doc, tui.Options{Config: app.cfg, Logger: app.log})
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// filePath is --file resolved against the configured save dir, with .sav added when
// the name has no extension.
func (app *App) filePath() string {
	p := strings.TrimSpace(app.File)
	if p == "" {
		return ""
	}
	return app.cfg.ResolveSavePath(savefile.WithExt(p))
}

// loadDocument opens --file. It fails when no file was given.
func loadDocument(app *App) (*document.Document, error) {
	path := app.filePath()
	if path == "" {
		return nil, errMissingFile
	}
	doc, err := document.Open(path)
	if err != nil {
		return nil, withRenumberHint(err)
	}
	return doc, nil
}

// applyAndSave runs op on --file and writes it back when it changed.
func applyAndSave(app *App, op mutate.Op) (*document.Document, mutate.Result, error) {
	doc, err := loadDocument(app)
	if err != nil {
		return nil, mutate.Result{}, err
	}
	res, err := doc.Apply(op)
	if err != nil {
		app.log.Info("op rejected", zap.String("kind", string(op.Kind())), zap.Error(err))
		return doc, res, err
	}
	app.log.Info("op applied",
		zap.String("kind", string(res.Kind)),
		zap.Stringer("coord", res.Coord),
		zap.Bool("changed", res.Changed),
		zap.Any("payload", res.EventPayload),
	)
	if res.Changed {
		if err := doc.Save(""); err != nil {
			return doc, res, err
		}
		app.recordRecent(doc.Path)
	}
	return doc, res, nil
}

func (app *App) recordRecent(path string) {
	if err := store.RecordRecent(path); err != nil {
		app.log.Debug("record recent failed", zap.String("path", path), zap.Error(err))
	}
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

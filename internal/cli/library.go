package cli

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"treegrid-cli/internal/savefile"
	"treegrid-cli/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLibraryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Keep named copies of trees in the local library",
	}
	cmd.AddCommand(newLibrarySaveCmd(app))
	cmd.AddCommand(newLibraryListCmd(app))
	cmd.AddCommand(newLibraryOpenCmd(app))
	cmd.AddCommand(newLibraryDeleteCmd(app))
	return cmd
}

func withLibrary(ctx context.Context, app *App, fn func(*store.Library) error) error {
	dir, err := app.cfg.Library()
	if err != nil {
		return err
	}
	lib, err := store.OpenLibrary(ctx, dir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lib.Close(); err != nil {
			app.log.Warn("close library", zap.Error(err))
		}
	}()
	return fn(lib)
}

func newLibrarySaveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "save [name]",
		Short: "Store --file in the library (default name: the file's save name)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			name := doc.Name
			if len(args) == 1 {
				name = args[0]
			}
			var (
				entry   store.LibraryEntry
				changed bool
			)
			err = withLibrary(cmd.Context(), app, func(lib *store.Library) error {
				entry, changed, err = lib.Put(cmd.Context(), name, doc.Tree)
				return err
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			app.log.Info("library save", zap.String("name", entry.Name), zap.Bool("changed", changed))
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"entry": entry, "changed": changed}})
		},
	}
}

func newLibraryListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List library entries, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []store.LibraryEntry
			err := withLibrary(cmd.Context(), app, func(lib *store.Library) error {
				var err error
				entries, err = lib.List(cmd.Context())
				return err
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": entries})
		},
	}
}

func newLibraryOpenCmd(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "open <name>",
		Short: "Write a library entry to --file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.filePath()
			if path == "" {
				return writeErr(cmd, errMissingFile)
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return writeErr(cmd, fileExistsError{path: path})
				} else if !errors.Is(err, fs.ErrNotExist) {
					return writeErr(cmd, err)
				}
			}
			var entry store.LibraryEntry
			err := withLibrary(cmd.Context(), app, func(lib *store.Library) error {
				t, e, err := lib.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				entry = e
				return savefile.WriteFile(path, t)
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			app.recordRecent(path)
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"entry": entry, "path": path}})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite --file when it exists")
	return cmd
}

func newLibraryDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a library entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withLibrary(cmd.Context(), app, func(lib *store.Library) error {
				return lib.Delete(cmd.Context(), args[0])
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"deleted": args[0]}})
		},
	}
}

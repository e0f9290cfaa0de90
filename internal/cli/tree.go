package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"treegrid-cli/internal/document"
	"treegrid-cli/internal/layout"
	"treegrid-cli/internal/mutate"
	"treegrid-cli/internal/savefile"
	"treegrid-cli/internal/tree"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// textCellWidth is the `layout --text` column width when neither the flag nor the
// config sets one.
const textCellWidth = 20

func newNewCmd(app *App) *cobra.Command {
	var title, description string
	var force bool

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a tree file with a root node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.filePath()
			if path == "" {
				return writeErr(cmd, errMissingFile)
			}
			if strings.TrimSpace(title) == "" {
				return writeErr(cmd, errors.New("missing --title"))
			}
			if _, err := os.Stat(path); err == nil && !force {
				return writeErr(cmd, fileExistsError{path: path})
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return writeErr(cmd, err)
			}

			doc := document.New()
			res, err := doc.Apply(mutate.AddNode{Title: title, Description: description})
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := doc.Save(path); err != nil {
				return writeErr(cmd, err)
			}
			app.recordRecent(doc.Path)
			app.log.Info("tree created", zap.String("path", doc.Path))

			root, _ := doc.Tree.GetNode(res.Coord)
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"path": doc.Path,
				"name": doc.Name,
				"root": root,
			}})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Root title")
	cmd.Flags().StringVar(&description, "description", "", "Root description")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func levelCountsJSON(t *tree.Store) map[string]int {
	out := map[string]int{}
	for level, n := range t.LevelCounts() {
		out[strconv.Itoa(level)] = n
	}
	return out
}

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show every node and the per-level counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"name":        doc.Name,
				"path":        doc.Path,
				"nodes":       doc.Tree.Nodes(),
				"levelCounts": levelCountsJSON(doc.Tree),
			}})
		},
	}
}

func newRenumberCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "renumber [level]",
		Short: "Close index gaps left by deletes with --keep-gaps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.filePath()
			if path == "" {
				return writeErr(cmd, errMissingFile)
			}
			doc, err := document.OpenWith(path, savefile.ReadOptions{AllowGaps: true})
			if err != nil {
				return writeErr(cmd, err)
			}

			levels := doc.Tree.Levels()
			if len(args) == 1 {
				level, err := strconv.Atoi(strings.TrimSpace(args[0]))
				if err != nil || level < 0 {
					return writeErr(cmd, fmt.Errorf("invalid level %q", args[0]))
				}
				levels = []int{level}
			}

			moved := 0
			for _, level := range levels {
				moved += doc.Tree.Renumber(level)
			}
			if moved > 0 {
				doc.Edited = true
				if err := doc.Save(""); err != nil {
					return writeErr(cmd, err)
				}
				app.log.Info("renumbered", zap.Ints("levels", levels), zap.Int("moved", moved))
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"levels": levels,
				"moved":  moved,
			}})
		},
	}
}

type layoutVM struct {
	Rows       int                `json:"rows"`
	Columns    int                `json:"columns"`
	Placements []layout.Placement `json:"placements"`
}

func newLayoutCmd(app *App) *cobra.Command {
	var text bool
	var cellWidth int

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Show the grid placement of every node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			plan := doc.Plan()
			if text {
				w := cellWidth
				if w <= 0 {
					w = app.cfg.CellWidth(textCellWidth)
				}
				_, err := fmt.Fprint(cmd.OutOrStdout(), renderTextGrid(plan, w))
				return err
			}
			return writeOut(cmd, app, map[string]any{"data": layoutVM{
				Rows:       plan.Rows,
				Columns:    plan.Columns,
				Placements: plan.Placements(),
			}})
		},
	}

	cmd.Flags().BoolVar(&text, "text", false, "Print a plain-text grid instead of JSON")
	cmd.Flags().IntVar(&cellWidth, "cell-width", 0, "Cell width for --text (default from config, else 20)")
	return cmd
}

// renderTextGrid draws plan as fixed-width columns. Rows a node spans below its own cell
// show "|".
func renderTextGrid(plan layout.Plan, width int) string {
	width = max(width, 4)
	var b strings.Builder
	for r := 0; r < plan.Rows; r++ {
		var line strings.Builder
		for c := 0; c < plan.Columns; c++ {
			cell := ""
			if at, ok := plan.At(r, c); ok {
				cell = at.String() + " " + plan.Title(at)
			} else if spannedBy(plan, r, c) {
				cell = "|"
			}
			cell = xansi.Truncate(cell, width, "~")
			line.WriteString(cell)
			line.WriteString(strings.Repeat(" ", width-xansi.StringWidth(cell)+1))
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteString("\n")
	}
	return b.String()
}

func spannedBy(plan layout.Plan, row, column int) bool {
	for c, cell := range plan.Cells {
		if cell.Column == column && row > cell.Row && row < cell.Row+plan.Weights[c] {
			return true
		}
	}
	return false
}

type checkVM struct {
	OK         bool                      `json:"ok"`
	Nodes      int                       `json:"nodes"`
	Violations []tree.InvariantViolation `json:"violations"`
}

func newCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report invariant violations (exit status 1 when any)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.filePath()
			if path == "" {
				return writeErr(cmd, errMissingFile)
			}
			// Gaps are reported, not fatal, here.
			doc, err := document.OpenWith(path, savefile.ReadOptions{AllowGaps: true})
			if err != nil {
				return writeErr(cmd, err)
			}
			vs := doc.Tree.Check()
			if vs == nil {
				vs = []tree.InvariantViolation{}
			}
			if err := writeOut(cmd, app, map[string]any{"data": checkVM{OK: len(vs) == 0, Nodes: doc.Tree.Len(), Violations: vs}}); err != nil {
				return err
			}
			if len(vs) > 0 {
				return writeErr(cmd, problemsError{count: len(vs)})
			}
			return nil
		},
	}
}

// withRenumberHint points at the fix when a file was rejected for index gaps.
func withRenumberHint(err error) error {
	var iv *tree.InvariantViolation
	if errors.As(err, &iv) && iv.Rule == tree.RuleContiguous {
		return fmt.Errorf("%w (run `treegrid renumber` to close the gap)", err)
	}
	return err
}

package cli

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"

	"treegrid-cli/internal/model"
	"treegrid-cli/internal/mutate"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLinksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Cross-link commands (links are symmetric)",
	}
	cmd.AddCommand(newLinkOpCmd(app, "add", "Link two nodes", func(a, b model.Coordinate) mutate.Op {
		return mutate.AddLink{A: a, B: b}
	}))
	cmd.AddCommand(newLinkOpCmd(app, "delete", "Remove the link between two nodes", func(a, b model.Coordinate) mutate.Op {
		return mutate.DeleteLink{A: a, B: b}
	}))
	return cmd
}

func newLinkOpCmd(app *App, use, short string, build func(a, b model.Coordinate) mutate.Op) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <level,index> <level,index>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := model.ParseCoordinate(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := model.ParseCoordinate(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			_, res, err := applyAndSave(app, build(a, b))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, opOutput(res, nil))
		},
	}
}

func newApplyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "apply [op-json]",
		Short: "Apply JSON operations (one per line on stdin when no argument is given)",
		Long: strings.TrimSpace(`
Apply operations in the same JSON shape POST /api/ops accepts, e.g.

  {"kind":"add-node","parent":{"level":0,"index":0},"title":"Left"}
  {"kind":"delete-node","coord":{"level":1,"index":0}}

Operations run in order and the file is saved once at the end. The first failing
operation aborts the batch and nothing is written.
`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var lines [][]byte
			if len(args) == 1 {
				lines = [][]byte{[]byte(args[0])}
			} else {
				read, err := readOpLines(cmd.InOrStdin())
				if err != nil {
					return writeErr(cmd, err)
				}
				lines = read
			}
			if len(lines) == 0 {
				return writeErr(cmd, errors.New("no operations given"))
			}

			doc, err := loadDocument(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			results := make([]mutate.Result, 0, len(lines))
			changed := false
			for i, raw := range lines {
				op, err := mutate.Decode(raw)
				if err != nil {
					return writeErr(cmd, opLineError{line: i + 1, err: err})
				}
				res, err := doc.Apply(op)
				if err != nil {
					return writeErr(cmd, opLineError{line: i + 1, err: err})
				}
				app.log.Info("op applied", zap.String("kind", string(res.Kind)), zap.Stringer("coord", res.Coord))
				changed = changed || res.Changed
				results = append(results, res)
			}
			if changed {
				if err := doc.Save(""); err != nil {
					return writeErr(cmd, err)
				}
				app.recordRecent(doc.Path)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"results": results, "saved": changed}})
		},
	}
}

func readOpLines(r io.Reader) ([][]byte, error) {
	var out [][]byte
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		ln := bytes.TrimSpace(sc.Bytes())
		if len(ln) == 0 || ln[0] == '#' {
			continue
		}
		out = append(out, append([]byte(nil), ln...))
	}
	return out, sc.Err()
}

package cli

import (
	"strings"

	"treegrid-cli/internal/export"

	"github.com/spf13/cobra"
)

func newExportCmd(app *App) *cobra.Command {
	var out, imageFormat, title string
	var open bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Draw the layout grid as an SVG or PNG picture",
		Example: strings.TrimSpace(`
  treegrid --file plan.sav export --out plan.svg
  treegrid --file plan.sav export --out plan --image png
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if strings.TrimSpace(out) == "" {
				out = doc.Name
			}
			opts := export.Options{Path: out, Format: imageFormat, Title: title}
			path, err := export.OutputPath(opts)
			if err != nil {
				return writeErr(cmd, err)
			}
			plan := doc.Plan()
			if err := export.Save(export.NewScene(plan, doc.Tree.Nodes(), doc.Name), opts); err != nil {
				return writeErr(cmd, err)
			}
			w, h := export.Size(plan)

			opened := false
			openErr := ""
			if open {
				if err := openPath(path); err != nil {
					openErr = err.Error()
				} else {
					opened = true
				}
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"exportedTo": path,
				"width":      w,
				"height":     h,
				"opened":     opened,
				"openError":  openErr,
			}})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: the tree name; .svg when no extension)")
	cmd.Flags().StringVar(&imageFormat, "image", "", "Image format (svg|png); default from the --out extension")
	cmd.Flags().StringVar(&title, "title", "", "Heading drawn above the grid (default: the tree name)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the picture with the system viewer")
	return cmd
}

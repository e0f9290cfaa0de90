package cli

import (
	"treegrid-cli/internal/publish"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPublishCmd(app *App) *cobra.Command {
	var to string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Write the tree as linked markdown pages (index.md + one page per node)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := publish.WriteTree(doc.Tree, doc.Name, to, publish.WriteOptions{Overwrite: overwrite})
			if err != nil {
				return writeErr(cmd, err)
			}
			app.log.Info("published", zap.String("dir", res.Dir), zap.Int("files", len(res.Written)))
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Output directory (pages go in <to>/<tree name>/)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing pages")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

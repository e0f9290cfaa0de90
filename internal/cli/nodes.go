package cli

import (
	"errors"

	"treegrid-cli/internal/model"
	"treegrid-cli/internal/mutate"

	"github.com/spf13/cobra"
)

func newNodesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Node commands",
	}
	cmd.AddCommand(newNodesAddCmd(app))
	cmd.AddCommand(newNodesDeleteCmd(app))
	cmd.AddCommand(newNodesEditCmd(app))
	cmd.AddCommand(newNodesGetCmd(app))
	cmd.AddCommand(newNodesLinksCmd(app))
	return cmd
}

// opOutput is the envelope payload of every mutating command.
func opOutput(res mutate.Result, node any) map[string]any {
	data := map[string]any{"result": res}
	if node != nil {
		data["node"] = node
	}
	return map[string]any{"data": data}
}

func newNodesAddCmd(app *App) *cobra.Command {
	var parent, title, description string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a child of --parent, or the root when --parent is omitted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("title") {
				return writeErr(cmd, errors.New("missing --title"))
			}
			op := mutate.AddNode{Title: title, Description: description}
			if parent != "" {
				p, err := model.ParseCoordinate(parent)
				if err != nil {
					return writeErr(cmd, err)
				}
				op.Parent = &p
			}
			doc, res, err := applyAndSave(app, op)
			if err != nil {
				return writeErr(cmd, err)
			}
			node, _ := doc.Tree.GetNode(res.Coord)
			return writeOut(cmd, app, opOutput(res, node))
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "Parent coordinate (LEVEL,INDEX)")
	cmd.Flags().StringVar(&title, "title", "", "Title")
	cmd.Flags().StringVar(&description, "description", "", "Description (markdown)")
	return cmd
}

func newNodesDeleteCmd(app *App) *cobra.Command {
	var keepGaps bool

	cmd := &cobra.Command{
		Use:   "delete <level,index>",
		Short: "Delete a node; its children become orphans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := model.ParseCoordinate(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			_, res, err := applyAndSave(app, mutate.DeleteNode{Coord: c, KeepGaps: keepGaps})
			if err != nil {
				return writeErr(cmd, err)
			}
			out := opOutput(res, nil)
			if keepGaps {
				out["_hints"] = []string{"run `treegrid renumber` to close the gap before editing further"}
			}
			return writeOut(cmd, app, out)
		},
	}

	cmd.Flags().BoolVar(&keepGaps, "keep-gaps", false, "Leave the index gap instead of shifting later siblings down")
	return cmd
}

func newNodesEditCmd(app *App) *cobra.Command {
	var title, description string

	cmd := &cobra.Command{
		Use:   "edit <level,index>",
		Short: "Change a node's title and/or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := model.ParseCoordinate(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			setTitle, setDesc := cmd.Flags().Changed("title"), cmd.Flags().Changed("description")
			if !setTitle && !setDesc {
				return writeErr(cmd, errors.New("nothing to change: pass --title and/or --description"))
			}
			doc, err := loadDocument(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			cur, err := doc.Tree.GetNode(c)
			if err != nil {
				return writeErr(cmd, err)
			}
			op := mutate.EditNode{Coord: c, Title: cur.Title, Description: cur.Description}
			if setTitle {
				op.Title = title
			}
			if setDesc {
				op.Description = description
			}
			doc, res, err := applyAndSave(app, op)
			if err != nil {
				return writeErr(cmd, err)
			}
			node, _ := doc.Tree.GetNode(c)
			return writeOut(cmd, app, opOutput(res, node))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	return cmd
}

func newNodesGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <level,index>",
		Short: "Show one node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := model.ParseCoordinate(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			doc, err := loadDocument(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := doc.Tree.GetNode(c)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": n})
		},
	}
}

func newNodesLinksCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "links <level,index>",
		Short: "List the coordinates linked to a node (parent and children included)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := model.ParseCoordinate(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			doc, err := loadDocument(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			links, err := doc.Tree.GetLinks(c)
			if err != nil {
				return writeErr(cmd, err)
			}
			if links == nil {
				links = []model.Coordinate{}
			}
			return writeOut(cmd, app, map[string]any{"data": links})
		},
	}
}

package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newDepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps <entry>",
		Short: "List every module of the bundle in emission order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Deps(cmd.Context(), args[0], buildOptions(cmd), cmd.OutOrStdout())
		},
	}
	addGraphFlags(cmd)
	return cmd
}

func (c *CLI) newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <entry>",
		Short: "Print the dependency graph in Graphviz DOT format",
		Long: "Print the dependency graph in Graphviz DOT format.\n\n" +
			"Remote modules are drawn as eggs, local modules as boxes and the entry in red.\n" +
			"Render it with, for example: knit graph app.js | dot -Tpng -o graph.png",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Graph(cmd.Context(), args[0], buildOptions(cmd), cmd.OutOrStdout())
		},
	}
	addGraphFlags(cmd)
	return cmd
}

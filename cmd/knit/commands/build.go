package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/knit/internal/app"
)

// addGraphFlags registers the flags of every command that builds a graph.
func addGraphFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("no-cache", "n", false, "Fetch remote modules even when they are cached")
	cmd.Flags().IntP("concurrency", "j", 0, "Maximum fetches in flight (default: config or number of CPUs)")
	cmd.Flags().Duration("timeout", 0, "Deadline for one remote fetch including retries (default: config or 30s)")
}

// addBundleFlags registers the flags of commands that write a bundle.
func addBundleFlags(cmd *cobra.Command) {
	addGraphFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "Bundle destination, - for stdout (default: <entry>.bundle.js)")
	cmd.Flags().Bool("optimize", false, "Run the optimizer on the bundle")
	cmd.Flags().Bool("no-optimize", false, "Skip the optimizer even when it is enabled in knit.yaml")
	cmd.MarkFlagsMutuallyExclusive("optimize", "no-optimize")
}

func buildOptions(cmd *cobra.Command) app.BuildOptions {
	flags := cmd.Flags()
	noCache, _ := flags.GetBool("no-cache")
	concurrency, _ := flags.GetInt("concurrency")
	timeout, _ := flags.GetDuration("timeout")

	opts := app.BuildOptions{
		NoCache:     noCache,
		Concurrency: concurrency,
		Timeout:     timeout,
	}

	if flags.Lookup("output") != nil {
		opts.Output, _ = flags.GetString("output")
	}
	if flags.Changed("optimize") {
		v, _ := flags.GetBool("optimize")
		opts.Optimize = &v
	}
	if flags.Changed("no-optimize") {
		v, _ := flags.GetBool("no-optimize")
		v = !v
		opts.Optimize = &v
	}
	return opts
}

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <entry>",
		Short: "Bundle an entry module and everything it imports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.app.Build(cmd.Context(), args[0], buildOptions(cmd))
			return err
		},
	}
	addBundleFlags(cmd)
	return cmd
}

func (c *CLI) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <entry>",
		Short: "Rebuild the bundle whenever a local module changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Watch(cmd.Context(), args[0], buildOptions(cmd))
		},
	}
	addBundleFlags(cmd)
	return cmd
}

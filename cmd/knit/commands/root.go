// Package commands implements the CLI commands for the knit bundler.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/knit/internal/app"
	"go.trai.ch/knit/internal/build"
)

// CLI represents the command line interface for knit.
type CLI struct {
	app     Application
	logging LogConfigurer
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Build(ctx context.Context, entry string, opts app.BuildOptions) (*app.BuildResult, error)
	Deps(ctx context.Context, entry string, opts app.BuildOptions, w io.Writer) error
	Graph(ctx context.Context, entry string, opts app.BuildOptions, w io.Writer) error
	Watch(ctx context.Context, entry string, opts app.BuildOptions) error
	CacheList(w io.Writer) error
	Clean(ctx context.Context) error
	Doctor(ctx context.Context, w io.Writer) error
}

// LogConfigurer applies the global logging flags.
type LogConfigurer interface {
	ConfigureLogging(verbose, json bool)
}

// Option configures a CLI.
type Option func(*CLI)

// WithLogging applies --verbose and --json to l before any command runs.
func WithLogging(l LogConfigurer) Option {
	return func(c *CLI) {
		c.logging = l
	}
}

// New creates a new CLI instance with the given app.
func New(a Application, opts ...Option) *CLI {
	rootCmd := &cobra.Command{
		Use:           "knit",
		Short:         "Bundle native JavaScript modules into one script",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages, including stage timings")
	rootCmd.PersistentFlags().Bool("json", false, "Log in JSON format")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}
	for _, opt := range opts {
		opt(c)
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if c.logging == nil {
			return
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		json, _ := cmd.Flags().GetBool("json")
		c.logging.ConfigureLogging(verbose, json)
	}

	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newDepsCmd())
	rootCmd.AddCommand(c.newGraphCmd())
	rootCmd.AddCommand(c.newWatchCmd())
	rootCmd.AddCommand(c.newCacheCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newDoctorCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

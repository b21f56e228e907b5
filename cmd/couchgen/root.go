package main

import (
	"github.com/spf13/cobra"

	"github.com/kuitang/couchgen/internal/config"
	"github.com/kuitang/couchgen/internal/obs"
	"github.com/kuitang/couchgen/pkg/exampledb"
)

// rootOptions holds global flags and the configuration resolved from them.
type rootOptions struct {
	dbURL    string
	logLevel string

	cfg *config.Config
}

// NewRootCommand creates the couchgen command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "couchgen",
		Short: "Random CouchDB documents and a shared example store",
		Long: `couchgen draws random CouchDB documents from YAML templates and manages
the example database that stores interesting values between test runs.

The database is configured through COUCHGEN_DB_URL, COUCHGEN_DB_USER,
COUCHGEN_DB_PASSWORD, COUCHGEN_DB_RPS, COUCHGEN_DB_BURST and
COUCHGEN_DB_TIMEOUT.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.dbURL, "db-url", "", "example database URL (overrides "+config.EnvDBURL+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides "+config.EnvLogLevel+")")

	cmd.AddCommand(newSampleCommand(opts))
	cmd.AddCommand(newExamplesCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))

	return cmd
}

func (o *rootOptions) resolve(cmd *cobra.Command) error {
	cfg := config.FromEnv()
	if cmd.Flags().Changed("db-url") {
		cfg.DBURL = o.dbURL
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg

	obs.Init()
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))
	cmd.SetContext(obs.WithCorrelation(cmd.Context(), obs.Correlation{Command: cmd.CommandPath()}))
	return nil
}

func (o *rootOptions) openDB() (*exampledb.DB, error) {
	return exampledb.New(o.cfg.Store())
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.cfg.PrintSummary(cmd.OutOrStdout())
			return nil
		},
	}
}

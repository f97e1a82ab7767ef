// Package cli implements the pgmerge command line: export, upsert and
// inspect. Commands write their reports to stdout; logs go to stderr.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/pgmerge/internal/config"
	"github.com/JonMunkholm/pgmerge/internal/logging"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	URI      string
	DBName   string
	Host     string
	Port     int
	Username string
	Password string
	Schema   string
	Config   string
	LogLevel string

	env *config.Config
}

// NewRootCommand creates the root command. env supplies the defaults that
// flags override.
func NewRootCommand(env *config.Config) *cobra.Command {
	opts := &RootOptions{env: env}

	cmd := &cobra.Command{
		Use:     "pgmerge",
		Short:   "Export and merge table data as CSV files",
		Long:    "pgmerge exports every table of a schema to CSV and merges CSV snapshots back,\nprocessing tables in foreign key order.",
		Version: Version,

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := opts.LogLevel
			if level == "" {
				level = env.Logging.Level
			}
			logging.Setup(level, env.Logging.Format, cmd.ErrOrStderr())
			cmd.SetContext(logging.ContextWithRunID(cmd.Context()))
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.URI, "uri", "", "connection URL (postgres://, sqlite://); overrides DATABASE_URL")
	flags.StringVarP(&opts.DBName, "dbname", "d", "", "database name to connect to")
	flags.StringVar(&opts.Host, "host", "localhost", "database server host or socket directory")
	flags.IntVarP(&opts.Port, "port", "p", 5432, "database server port")
	flags.StringVarP(&opts.Username, "username", "U", defaultUser(), "database user name")
	flags.StringVarP(&opts.Password, "password", "W", "", "database password")
	flags.StringVarP(&opts.Schema, "schema", "s", "", "database schema to use (default from PGMERGE_SCHEMA, else public)")
	flags.StringVarP(&opts.Config, "config", "c", "", "YAML file with per-table columns and alternate keys")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL)")

	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewUpsertCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))

	return cmd
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "postgres"
}

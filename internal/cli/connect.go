package cli

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/pgmerge/internal/config"
	"github.com/JonMunkholm/pgmerge/internal/core"
	"github.com/JonMunkholm/pgmerge/internal/graph"
	"github.com/JonMunkholm/pgmerge/internal/logging"
	"github.com/JonMunkholm/pgmerge/internal/postgres"
	"github.com/JonMunkholm/pgmerge/internal/schema"
	"github.com/JonMunkholm/pgmerge/internal/sqlite"
	"github.com/JonMunkholm/pgmerge/internal/store"
)

// session is an open database with its loaded schema and table config.
type session struct {
	db         store.Database
	schemaName string
	schema     *schema.Schema
	tables     config.Tables
	env        *config.Config
}

func (s *session) Close() error {
	return s.db.Close()
}

// databaseURL resolves the connection URL: --uri, then DATABASE_URL, then a
// postgres URL built from the individual connection flags.
func (o *RootOptions) databaseURL() (string, error) {
	raw := o.URI
	if raw == "" {
		raw = o.env.Database.URL
	}

	if raw != "" {
		if o.DBName == "" || !isPostgresURL(raw) {
			return raw, nil
		}
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse database URL: %w", err)
		}
		if strings.Trim(u.Path, "/") == "" {
			u.Path = "/" + o.DBName
		}
		return u.String(), nil
	}

	if o.DBName == "" {
		return "", NewExitError(ExitUsage, "no database given: set --uri, DATABASE_URL or --dbname")
	}
	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(o.Host, strconv.Itoa(o.Port)),
		Path:   "/" + o.DBName,
	}
	if o.Password != "" {
		u.User = url.UserPassword(o.Username, o.Password)
	} else {
		u.User = url.User(o.Username)
	}
	return u.String(), nil
}

func isPostgresURL(raw string) bool {
	return strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://")
}

// sqlitePath returns the database path of a sqlite URL, or false.
func sqlitePath(raw string) (string, bool) {
	switch {
	case strings.HasPrefix(raw, "sqlite://"):
		return strings.TrimPrefix(raw, "sqlite://"), true
	case strings.HasPrefix(raw, "sqlite:"):
		return strings.TrimPrefix(raw, "sqlite:"), true
	case strings.HasPrefix(raw, "file:"):
		return raw, true
	}
	return "", false
}

// connect opens the database, loads the schema and validates the table
// config against it.
func (o *RootOptions) connect(ctx context.Context) (*session, error) {
	raw, err := o.databaseURL()
	if err != nil {
		return nil, err
	}

	var (
		db         store.Database
		schemaName string
	)
	if path, ok := sqlitePath(raw); ok {
		db, err = sqlite.Open(ctx, path, o.env.Transfer.BatchSize)
		schemaName = sqlite.SchemaName
	} else if isPostgresURL(raw) {
		db, err = postgres.Open(ctx, raw, postgres.Options{
			MaxConns:       o.env.Database.MaxConns,
			ConnectTimeout: o.env.Database.ConnectTimeout,
		})
		schemaName = o.Schema
		if schemaName == "" {
			schemaName = o.env.Database.Schema
		}
	} else {
		return nil, NewExitError(ExitUsage, "unsupported database URL: expected postgres://, postgresql://, sqlite:// or file:")
	}
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug("loading schema", "dialect", db.Dialect(), "schema", schemaName)
	s, err := schema.Load(ctx, db.Introspector(schemaName), schemaName)
	if err != nil {
		db.Close()
		return nil, err
	}

	path := o.Config
	if path == "" {
		path = o.env.Transfer.TablesFile
	}
	tables, err := config.LoadTables(path)
	if err == nil {
		err = tables.Validate(s)
	}
	if err != nil {
		db.Close()
		return nil, err
	}

	return &session{db: db, schemaName: schemaName, schema: s, tables: tables, env: o.env}, nil
}

// plan orders the selected tables and logs every reference the plan had
// to ignore.
func (s *session) plan(ctx context.Context, tables []string, includeDependencies bool) (*graph.Plan, error) {
	plan, err := graph.NewPlan(s.schema, tables, graph.PlanOptions{IncludeDependencies: includeDependencies})
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)
	for _, d := range plan.Dropped {
		logger.Warn("foreign key leaves the table selection", "reference", d.String())
	}
	for _, b := range plan.Broken {
		logger.Warn("foreign key cycle broken", "edge", b.String())
	}
	return plan, nil
}

func (s *session) service() *core.Service {
	return core.NewService(s.db, core.Options{
		Schema:       s.schemaName,
		Null:         s.env.Transfer.Null,
		TableTimeout: s.env.Transfer.TableTimeout,
		Tables:       s.tables,
	})
}

// directoryArg validates that the first argument names an existing directory.
func directoryArg(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return NewExitError(ExitUsage, "missing directory argument")
	}
	info, err := os.Stat(args[0])
	if err != nil {
		return WrapExitError(ExitUsage, fmt.Sprintf("invalid directory %q", args[0]), err)
	}
	if !info.IsDir() {
		return NewExitError(ExitUsage, fmt.Sprintf("invalid directory %q: not a directory", args[0]))
	}
	return nil
}

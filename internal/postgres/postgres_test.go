package postgres

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JonMunkholm/pgmerge/internal/core"
	"github.com/JonMunkholm/pgmerge/internal/graph"
	"github.com/JonMunkholm/pgmerge/internal/schema"
	"github.com/JonMunkholm/pgmerge/internal/store"
)

func TestCopyStatement(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		opts      store.CopyOptions
		want      string
	}{
		{
			name:      "copy in with header",
			direction: "FROM STDIN",
			opts:      store.CopyOptions{Header: true},
			want:      `COPY "public"."country" ("code", "name") FROM STDIN WITH (FORMAT csv, HEADER true, NULL '', ENCODING 'UTF8')`,
		},
		{
			name:      "copy out with null marker",
			direction: "TO STDOUT",
			opts:      store.CopyOptions{Null: `\N`},
			want:      `COPY "public"."country" ("code", "name") TO STDOUT WITH (FORMAT csv, HEADER false, NULL '\N', ENCODING 'UTF8')`,
		},
		{
			name:      "quote in null marker",
			direction: "TO STDOUT",
			opts:      store.CopyOptions{Null: "n'a"},
			want:      `COPY "public"."country" ("code", "name") TO STDOUT WITH (FORMAT csv, HEADER false, NULL 'n''a', ENCODING 'UTF8')`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := copyStatement(`"public"."country"`, []string{"code", "name"}, tt.direction, tt.opts)
			if got != tt.want {
				t.Errorf("copyStatement() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

const integrationDDL = `
CREATE TABLE country (code text PRIMARY KEY, name text);
CREATE TABLE city (
	id integer PRIMARY KEY,
	country_code text NOT NULL REFERENCES country(code),
	name text NOT NULL,
	CONSTRAINT city_name_key UNIQUE (country_code, name)
);
CREATE TABLE staff (id integer PRIMARY KEY, store_id integer);
CREATE TABLE store (id integer PRIMARY KEY, manager_id integer REFERENCES staff(id));
ALTER TABLE staff ADD CONSTRAINT staff_store_fk FOREIGN KEY (store_id) REFERENCES store(id);

INSERT INTO country (code, name) VALUES ('CI', 'Côte d''Ivoire'), ('EG', 'Egypt'), ('RE', 'Réunion');
`

// startPostgres runs a disposable server and returns its connection URL.
// Set PGMERGE_INTEGRATION=1 to enable; Docker must be available.
func startPostgres(t *testing.T) string {
	t.Helper()
	if os.Getenv("PGMERGE_INTEGRATION") != "1" {
		t.Skip("set PGMERGE_INTEGRATION=1 to run PostgreSQL integration tests")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "user",
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "pgmerge",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("postgres://user:password@%s:%s/pgmerge?sslmode=disable", host, port.Port())
}

func openFixture(t *testing.T) (*DB, *schema.Schema) {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, startPostgres(t), Options{MaxConns: 2, ConnectTimeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.pool.Exec(ctx, integrationDDL); err != nil {
		t.Fatalf("create fixture: %v", err)
	}

	s, err := schema.Load(ctx, db.Introspector("public"), "public")
	if err != nil {
		t.Fatalf("schema.Load() error = %v", err)
	}
	return db, s
}

func TestIntegration(t *testing.T) {
	db, s := openFixture(t)
	ctx := context.Background()

	t.Run("introspection", func(t *testing.T) {
		if got := s.TableNames(); !reflect.DeepEqual(got, []string{"city", "country", "staff", "store"}) {
			t.Errorf("TableNames() = %v", got)
		}

		city, _ := s.Table("city")
		if !reflect.DeepEqual(city.PrimaryKey, []string{"id"}) {
			t.Errorf("city.PrimaryKey = %v, want [id]", city.PrimaryKey)
		}
		if len(city.UniqueKeys) != 1 || !reflect.DeepEqual(city.UniqueKeys[0].Columns, []string{"country_code", "name"}) {
			t.Errorf("city.UniqueKeys = %+v", city.UniqueKeys)
		}
		if len(city.ForeignKeys) != 1 || city.ForeignKeys[0].ToTable != "country" {
			t.Errorf("city.ForeignKeys = %+v", city.ForeignKeys)
		}
	})

	t.Run("cycle broken", func(t *testing.T) {
		plan, err := graph.NewPlan(s, nil, graph.PlanOptions{})
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		if len(plan.Broken) != 1 {
			t.Fatalf("Broken = %v, want one edge", plan.Broken)
		}
		if got := plan.InsertionOrder; !reflect.DeepEqual(got, []string{"country", "city", "staff", "store"}) &&
			!reflect.DeepEqual(got, []string{"country", "city", "store", "staff"}) {
			t.Errorf("InsertionOrder = %v", got)
		}
	})

	t.Run("merge", func(t *testing.T) {
		country, _ := s.Table("country")
		tx, err := db.Begin(ctx, store.TxOptions{})
		if err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		defer tx.Rollback(ctx)

		snapshot := "code,name\nEG,Egypt\nRE,Re-union\nST,São Tomé and Príncipe\n"
		got, err := core.NewEngine("").Merge(ctx, tx, core.MergeRequest{
			Schema: "public",
			Table:  country,
			Key:    country.IdentityKey(),
			Source: strings.NewReader(snapshot),
		})
		if err != nil {
			t.Fatalf("Merge() error = %v", err)
		}
		if want := (core.MergeOutcome{Skipped: 1, Inserted: 1, Updated: 1, Staged: 3}); got != want {
			t.Errorf("Merge() = %+v, want %+v", got, want)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}

		var name string
		if err := db.pool.QueryRow(ctx, `SELECT name FROM country WHERE code = 'RE'`).Scan(&name); err != nil {
			t.Fatalf("query: %v", err)
		}
		if name != "Re-union" {
			t.Errorf("RE name = %q, want Re-union", name)
		}
	})

	t.Run("export and merge back", func(t *testing.T) {
		plan, err := graph.NewPlan(s, []string{"country"}, graph.PlanOptions{})
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		svc := core.NewService(db, core.Options{Schema: "public"})
		dir := t.TempDir()

		result, err := svc.Export(ctx, dir, plan)
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if result.Rows != 4 {
			t.Errorf("exported rows = %d, want 4", result.Rows)
		}

		report, err := svc.Upsert(ctx, dir, plan, core.UpsertOptions{SingleTransaction: true})
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if want := (core.MergeOutcome{Skipped: 4, Staged: 4}); report.Total != want {
			t.Errorf("Total = %+v, want %+v", report.Total, want)
		}
	})
}

package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/JonMunkholm/pgmerge/internal/schema"
	"github.com/JonMunkholm/pgmerge/internal/sqlite"
	"github.com/JonMunkholm/pgmerge/internal/store"
)

const fixtureDDL = `
CREATE TABLE country (code TEXT PRIMARY KEY, name TEXT);
CREATE TABLE city (
	id INTEGER PRIMARY KEY,
	country_code TEXT NOT NULL REFERENCES country(code),
	name TEXT NOT NULL,
	population INTEGER
);
CREATE TABLE film_actor (film_id INTEGER, actor_id INTEGER, PRIMARY KEY (film_id, actor_id));
CREATE TABLE tag (slug TEXT NOT NULL UNIQUE, label TEXT);
CREATE TABLE note (body TEXT);

INSERT INTO country (code, name) VALUES
	('CI', 'Côte d''Ivoire'),
	('EG', 'Egypt'),
	('RE', 'Réunion');
`

// testEnv is a SQLite database seeded with fixtureDDL and its loaded schema.
type testEnv struct {
	db     *sqlite.DB
	schema *schema.Schema
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "merge.db"), 2)
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.SQLX().ExecContext(ctx, fixtureDDL); err != nil {
		t.Fatalf("create fixture: %v", err)
	}

	s, err := schema.Load(ctx, db.Introspector(sqlite.SchemaName), sqlite.SchemaName)
	if err != nil {
		t.Fatalf("schema.Load() error = %v", err)
	}
	return &testEnv{db: db, schema: s}
}

func (e *testEnv) table(t *testing.T, name string) *schema.Table {
	t.Helper()
	tbl, ok := e.schema.Table(name)
	if !ok {
		t.Fatalf("table %s not in schema", name)
	}
	return tbl
}

// merge runs one Engine.Merge in its own transaction and commits on success.
func (e *testEnv) merge(t *testing.T, req MergeRequest) (MergeOutcome, error) {
	t.Helper()
	ctx := context.Background()

	tx, err := e.db.Begin(ctx, store.TxOptions{})
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer tx.Rollback(ctx)

	if req.Schema == "" {
		req.Schema = sqlite.SchemaName
	}
	outcome, err := NewEngine("").Merge(ctx, tx, req)
	if err != nil {
		return outcome, err
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return outcome, nil
}

// rows returns every row of table as "a|b|c" strings ordered by the first column.
func (e *testEnv) rows(t *testing.T, table string) []string {
	t.Helper()
	rows, err := e.db.SQLX().Queryx(`SELECT * FROM "` + table + `" ORDER BY 1, 2`)
	if err != nil {
		t.Fatalf("query %s: %v", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			t.Fatalf("scan %s: %v", table, err)
		}
		fields := make([]string, len(values))
		for i, v := range values {
			switch val := v.(type) {
			case nil:
				fields[i] = "NULL"
			case []byte:
				fields[i] = string(val)
			default:
				fields[i] = fmt.Sprint(val)
			}
		}
		out = append(out, strings.Join(fields, "|"))
	}
	return out
}

func TestMerge_Country(t *testing.T) {
	env := newTestEnv(t)
	country := env.table(t, "country")

	snapshot := "code,name\nEG,Egypt\nRE,Re-union\nST,São Tomé and Príncipe\n"
	got, err := env.merge(t, MergeRequest{Table: country, Key: country.IdentityKey(), Source: strings.NewReader(snapshot)})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	want := MergeOutcome{Skipped: 1, Inserted: 1, Updated: 1, Staged: 3}
	if got != want {
		t.Errorf("Merge() = %+v, want %+v", got, want)
	}

	wantRows := []string{
		"CI|Côte d'Ivoire",
		"EG|Egypt",
		"RE|Re-union",
		"ST|São Tomé and Príncipe",
	}
	if rows := env.rows(t, "country"); !reflect.DeepEqual(rows, wantRows) {
		t.Errorf("country rows = %v, want %v", rows, wantRows)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	country := env.table(t, "country")
	snapshot := "code,name\nEG,Egypt\nRE,Re-union\nST,São Tomé and Príncipe\n"

	if _, err := env.merge(t, MergeRequest{Table: country, Key: country.IdentityKey(), Source: strings.NewReader(snapshot)}); err != nil {
		t.Fatalf("first Merge() error = %v", err)
	}
	got, err := env.merge(t, MergeRequest{Table: country, Key: country.IdentityKey(), Source: strings.NewReader(snapshot)})
	if err != nil {
		t.Fatalf("second Merge() error = %v", err)
	}

	want := MergeOutcome{Skipped: 3, Staged: 3}
	if got != want {
		t.Errorf("second Merge() = %+v, want %+v", got, want)
	}
}

func TestMerge_NullAwareSkip(t *testing.T) {
	env := newTestEnv(t)
	country := env.table(t, "country")
	if _, err := env.db.SQLX().Exec(`INSERT INTO country (code, name) VALUES ('XX', NULL)`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := env.merge(t, MergeRequest{Table: country, Key: country.IdentityKey(), Source: strings.NewReader("code,name\nXX,\n")})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if got.Skipped != 1 || got.Updated != 0 || got.Inserted != 0 {
		t.Errorf("Merge() = %+v, want one skipped row", got)
	}
}

func TestMerge_NullReplacesValue(t *testing.T) {
	env := newTestEnv(t)
	country := env.table(t, "country")

	got, err := env.merge(t, MergeRequest{Table: country, Key: country.IdentityKey(), Source: strings.NewReader("code,name\nEG,\n")})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if got.Updated != 1 {
		t.Errorf("Merge() = %+v, want one updated row", got)
	}
}

func TestMerge_HeaderOrderAndBOM(t *testing.T) {
	env := newTestEnv(t)
	country := env.table(t, "country")

	src := NewSnapshotReader(strings.NewReader("\ufeffname,code\nEgypt,EG\nFrance,FR\n"), 0)
	got, err := env.merge(t, MergeRequest{Table: country, Key: country.IdentityKey(), Source: src})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	want := MergeOutcome{Skipped: 1, Inserted: 1, Staged: 2}
	if got != want {
		t.Errorf("Merge() = %+v, want %+v", got, want)
	}
}

func TestMerge_ColumnSubset(t *testing.T) {
	env := newTestEnv(t)
	city := env.table(t, "city")
	if _, err := env.db.SQLX().Exec(`INSERT INTO city (id, country_code, name, population) VALUES (1, 'EG', 'Cairo', 9500000)`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := env.merge(t, MergeRequest{
		Table:   city,
		Columns: []string{"id", "country_code", "name"},
		Key:     city.IdentityKey(),
		Source:  strings.NewReader("id,country_code,name\n1,EG,Al Qahirah\n"),
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if got.Updated != 1 {
		t.Errorf("Merge() = %+v, want one updated row", got)
	}

	// population is outside the subset and keeps its value
	if rows := env.rows(t, "city"); !reflect.DeepEqual(rows, []string{"1|EG|Al Qahirah|9500000"}) {
		t.Errorf("city rows = %v", rows)
	}
}

func TestMerge_AlternateKey(t *testing.T) {
	env := newTestEnv(t)
	tag := env.table(t, "tag")
	if _, err := env.db.SQLX().Exec(`INSERT INTO tag (slug, label) VALUES ('go', 'Go')`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if got := tag.IdentityKey(); !reflect.DeepEqual(got, []string{"slug"}) {
		t.Fatalf("tag.IdentityKey() = %v, want [slug]", got)
	}

	got, err := env.merge(t, MergeRequest{Table: tag, Key: []string{"slug"}, Source: strings.NewReader("slug,label\ngo,Golang\nsql,SQL\n")})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	want := MergeOutcome{Inserted: 1, Updated: 1, Staged: 2}
	if got != want {
		t.Errorf("Merge() = %+v, want %+v", got, want)
	}
}

func TestMerge_AllKeyColumns(t *testing.T) {
	env := newTestEnv(t)
	fa := env.table(t, "film_actor")

	got, err := env.merge(t, MergeRequest{Table: fa, Key: fa.IdentityKey(), Source: strings.NewReader("film_id,actor_id\n1,1\n1,2\n")})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if got != (MergeOutcome{Inserted: 2, Staged: 2}) {
		t.Errorf("Merge() = %+v, want two inserted rows", got)
	}
}

func TestMerge_Errors(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		columns  []string
		key      []string
		snapshot string
		wantKind error
	}{
		{
			name:     "no identity key",
			table:    "note",
			snapshot: "body\nhello\n",
			wantKind: ErrMissingIdentityKey,
		},
		{
			name:     "missing column in header",
			table:    "country",
			key:      []string{"code"},
			snapshot: "code\nEG\n",
			wantKind: ErrShapeMismatch,
		},
		{
			name:     "unexpected column in header",
			table:    "country",
			key:      []string{"code"},
			snapshot: "code,name,capital\nEG,Egypt,Cairo\n",
			wantKind: ErrShapeMismatch,
		},
		{
			name:     "repeated header column",
			table:    "country",
			key:      []string{"code"},
			snapshot: "code,code\nEG,EG\n",
			wantKind: ErrShapeMismatch,
		},
		{
			name:     "empty file",
			table:    "country",
			key:      []string{"code"},
			snapshot: "",
			wantKind: ErrShapeMismatch,
		},
		{
			name:     "subset without key",
			table:    "country",
			columns:  []string{"name"},
			key:      []string{"code"},
			snapshot: "name\nEgypt\n",
			wantKind: ErrShapeMismatch,
		},
		{
			name:     "ragged row",
			table:    "country",
			key:      []string{"code"},
			snapshot: "code,name\nEG,Egypt\nXX\n",
			wantKind: ErrTransfer,
		},
		{
			name:     "foreign key violation",
			table:    "city",
			key:      []string{"id"},
			snapshot: "id,country_code,name,population\n1,ZZ,Nowhere,\n",
			wantKind: ErrTransfer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			before := env.rows(t, "country")

			_, err := env.merge(t, MergeRequest{
				Table:   env.table(t, tt.table),
				Columns: tt.columns,
				Key:     tt.key,
				Source:  strings.NewReader(tt.snapshot),
			})
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("Merge() error = %v, want %v", err, tt.wantKind)
			}

			var te *TableError
			if !errors.As(err, &te) || te.Table != tt.table {
				t.Errorf("error is not a TableError for %s: %v", tt.table, err)
			}
			if after := env.rows(t, "country"); !reflect.DeepEqual(after, before) {
				t.Errorf("country changed after failed merge: %v", after)
			}
		})
	}
}

func TestStatements(t *testing.T) {
	st := newStatements("public", "country", "_stage_1", []string{"code", "name"}, []string{"code"})

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "create",
			got:  st.createStage(),
			want: `CREATE TEMP TABLE "_stage_1" AS SELECT "code", "name" FROM "public"."country" LIMIT 0`,
		},
		{
			name: "skip",
			got:  st.deleteIdentical(),
			want: `DELETE FROM "_stage_1" AS s WHERE EXISTS (SELECT 1 FROM "public"."country" AS t WHERE ` +
				`(t."code" = s."code" OR (t."code" IS NULL AND s."code" IS NULL)) AND ` +
				`(t."name" = s."name" OR (t."name" IS NULL AND s."name" IS NULL)))`,
		},
		{
			name: "update",
			got:  st.updateChanged(),
			want: `UPDATE "public"."country" AS t SET "name" = s."name" FROM "_stage_1" AS s WHERE t."code" = s."code"`,
		},
		{
			name: "insert",
			got:  st.insertNew(),
			want: `INSERT INTO "public"."country" ("code", "name") SELECT s."code", s."name" FROM "_stage_1" AS s ` +
				`WHERE NOT EXISTS (SELECT 1 FROM "public"."country" AS t WHERE t."code" = s."code")`,
		},
		{
			name: "drop",
			got:  st.dropStage(),
			want: `DROP TABLE "_stage_1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got  %s\nwant %s", tt.got, tt.want)
			}
		})
	}

	allKey := newStatements("", "film_actor", "_stage_2", []string{"film_id", "actor_id"}, []string{"film_id", "actor_id"})
	if got := allKey.updateChanged(); got != "" {
		t.Errorf("updateChanged() with no non-key columns = %q, want empty", got)
	}
}

func TestStageName(t *testing.T) {
	a, b := stageName(), stageName()
	if !strings.HasPrefix(a, "_stage_") || len(a) != len("_stage_")+8 {
		t.Errorf("stageName() = %q", a)
	}
	if a == b {
		t.Errorf("stageName() returned %q twice", a)
	}
}

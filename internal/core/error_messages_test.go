package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/pgmerge/internal/graph"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "schema inconsistency",
			err:      fmt.Errorf("plan: %w", graph.ErrSchemaInconsistency),
			wantCode: "GRAPH001",
		},
		{
			name:     "missing identity key",
			err:      tableError("note", ErrMissingIdentityKey, nil),
			wantCode: "KEY001",
		},
		{
			name:     "missing snapshot",
			err:      tableError("country", ErrMissingSnapshot, errors.New("open country.csv: no such file")),
			wantCode: "FILE001",
		},
		{
			name:     "shape mismatch",
			err:      tableError("country", ErrShapeMismatch, errors.New("missing name")),
			wantCode: "SHAPE001",
		},
		{
			name:     "transfer failure without known cause",
			err:      tableError("country", ErrTransfer, errors.New("extra data after last expected column")),
			wantCode: "XFER001",
		},
		{
			name:     "transfer failure from foreign key violation",
			err:      tableError("city", ErrTransfer, errors.New(`ERROR: insert or update on table "city" violates foreign key constraint "city_country_fk"`)),
			wantCode: "DB003",
		},
		{
			name:     "sqlite foreign key failure",
			err:      tableError("city", ErrTransfer, errors.New("FOREIGN KEY constraint failed")),
			wantCode: "DB003",
		},
		{
			name:     "duplicate key",
			err:      errors.New("pq: duplicate key value violates unique constraint"),
			wantCode: "DB001",
		},
		{
			name:     "connection refused",
			err:      errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
			wantCode: "DB004",
		},
		{
			name:     "table timeout",
			err:      tableError("film", ErrTransfer, context.DeadlineExceeded),
			wantCode: "DB006",
		},
		{
			name:     "cancelled run",
			err:      tableError("film", ErrTransfer, context.Canceled),
			wantCode: "RUN001",
		},
		{
			name:     "config validation",
			err:      errors.New("validation failed:\n  - DB_MAX_CONNS must be positive"),
			wantCode: "CFG001",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(tableError("note", ErrMissingIdentityKey, nil))

	expected := "Table has no primary key or unique constraint (Code: KEY001). Add a unique constraint or configure alternate_key for the table"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known kind is user facing", tableError("t", ErrShapeMismatch, nil), true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTableError(t *testing.T) {
	cause := errors.New("boom")
	err := tableError("country", ErrTransfer, cause)

	if !errors.Is(err, ErrTransfer) {
		t.Error("errors.Is(err, ErrTransfer) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	if errors.Is(err, ErrShapeMismatch) {
		t.Error("errors.Is(err, ErrShapeMismatch) = true")
	}
	if got, want := err.Error(), "country: transfer failed: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var te *TableError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &te) || te.Table != "country" {
		t.Errorf("errors.As() did not find TableError for country")
	}
}

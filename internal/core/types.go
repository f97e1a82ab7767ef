package core

import (
	"io"
	"time"

	"github.com/JonMunkholm/pgmerge/internal/schema"
)

// MergeRequest is the input for reconciling one table.
type MergeRequest struct {
	Schema  string        // schema qualifying the table; empty for none
	Table   *schema.Table // target table from the schema model
	Columns []string      // snapshot columns; nil means every table column
	Key     []string      // identity key, must be a subset of Columns
	Source  io.Reader     // CSV with a header row
}

// MergeOutcome counts what happened to the rows of one snapshot.
type MergeOutcome struct {
	Skipped  int64 `json:"skipped"`
	Inserted int64 `json:"inserted"`
	Updated  int64 `json:"updated"`
	Staged   int64 `json:"staged"` // rows read from the snapshot
}

// Add accumulates other into o.
func (o *MergeOutcome) Add(other MergeOutcome) {
	o.Skipped += other.Skipped
	o.Inserted += other.Inserted
	o.Updated += other.Updated
	o.Staged += other.Staged
}

// Status is the final state of one table in a merge run.
type Status string

const (
	StatusMerged  Status = "merged"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// TableResult is the outcome of one table in a merge run.
type TableResult struct {
	Table    string        `json:"table"`
	Status   Status        `json:"status"`
	Outcome  MergeOutcome  `json:"outcome"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Report aggregates a merge run. Tables appear in processing order.
type Report struct {
	Tables []TableResult `json:"tables"`
	Total  MergeOutcome  `json:"total"`
}

func (r *Report) add(res TableResult) {
	r.Tables = append(r.Tables, res)
	if res.Status == StatusMerged {
		r.Total.Add(res.Outcome)
	}
}

// Count returns the number of tables with the given status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, t := range r.Tables {
		if t.Status == status {
			n++
		}
	}
	return n
}

// Failed reports whether any table failed.
func (r *Report) Failed() bool {
	return r.Count(StatusFailed) > 0
}

// ExportResult summarizes an export run.
type ExportResult struct {
	Tables int      `json:"tables"`
	Files  []string `json:"files"`
	Rows   int64    `json:"rows"`
}

// UpsertOptions controls units of work during a merge run.
type UpsertOptions struct {
	// SingleTransaction runs every table in one transaction with a savepoint
	// per table. Failed tables roll back to their savepoint; the rest commit
	// together.
	SingleTransaction bool
}

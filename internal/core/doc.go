// Package core provides the business logic for exporting tables to CSV and
// merging CSV snapshots back into a live schema.
//
// This package contains the domain logic independent of any driver or
// command line surface. It runs against the [store.Database] and [store.Tx]
// contracts, so the same code serves PostgreSQL and SQLite targets and can be
// exercised in tests against a temporary SQLite file.
//
// # Merge
//
// [Engine.Merge] reconciles one table. Every snapshot row ends up as exactly
// one of:
//
//   - skip: a live row with the same identity key and identical values
//     (NULL equals NULL) already exists
//   - update: a live row with the same identity key differs in a non-key column
//   - insert: no live row has the identity key
//
// The snapshot is staged in a temporary table and classified with three
// set-based statements, so no row is compared in application memory:
//
//  1. DELETE staged rows that match a live row exactly (skipped)
//  2. UPDATE live rows from staged rows sharing the identity key (updated)
//  3. INSERT the remaining staged rows without a live match (inserted)
//
// # Service
//
// [Service.Upsert] walks a [graph.Plan] in insertion order so referenced
// tables are written before the tables that reference them. Each table is
// its own unit of work unless [UpsertOptions.SingleTransaction] is set, in
// which case tables share one transaction with a savepoint each.
// [Service.Export] writes one <table>.csv per table from a single read-only
// snapshot.
//
// # Error Handling
//
// Per-table failures are reported as [*TableError] values carrying one of the
// sentinel kinds ([ErrMissingIdentityKey], [ErrMissingSnapshot],
// [ErrShapeMismatch], [ErrTransfer]). They never abort a run. A plan that
// cannot be ordered ([graph.ErrSchemaInconsistency]) is fatal. [MapError]
// turns any of these into a user-facing message with a support code.
package core

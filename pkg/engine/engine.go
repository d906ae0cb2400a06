// Package engine defines the capability surface the pipeline runner expects
// from a query engine — register a named table, run a read-only SQL query,
// write a materialized table to a destination — and ships a reference
// implementation backed by an embedded SQLite database.
package engine

import "context"

// Column describes one field of a result schema.
type Column struct {
	Name string
	Type string
}

// Schema is the column list of a query result or a registered table.
type Schema struct {
	Columns []Column
}

// Engine is the capability surface the pipeline runner drives. Table names
// are caller-chosen identifiers (stage names, source names); the engine
// never interprets them beyond using them as SQL identifiers.
type Engine interface {
	// RegisterRows loads an in-memory row set under table, replacing any
	// existing table of the same name.
	RegisterRows(ctx context.Context, table string, schema Schema, rows [][]any) error

	// Query runs a read-only SQL statement and returns its schema and rows.
	Query(ctx context.Context, sql string) (Schema, [][]any, error)

	// Explain returns a query's plan (and, if analyze is true, its observed
	// execution statistics) as a single-column textual result set.
	Explain(ctx context.Context, sql string, analyze bool) (Schema, [][]any, error)

	// TableSchema returns the schema of a previously registered table
	// without executing a query against it.
	TableSchema(ctx context.Context, table string) (Schema, error)

	// Deregister drops a previously registered table. Deregistering a
	// table that does not exist is not an error.
	Deregister(ctx context.Context, table string) error

	// Close releases the engine's resources.
	Close() error
}

// SourceDriver registers a pipeline source descriptor as a named table.
type SourceDriver interface {
	Register(ctx context.Context, eng Engine, name string, source any) error
}

// DestinationDriver prepares and writes a pipeline destination descriptor.
type DestinationDriver interface {
	// Prepare performs an idempotent create/verify of the destination
	// before any stage runs. Errors here are fatal to the whole execution.
	Prepare(ctx context.Context, dest any) error

	// Write materializes the named table (the final stage's result) into
	// the destination.
	Write(ctx context.Context, eng Engine, dest any, table string) error
}

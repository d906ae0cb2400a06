// Package pgdriver implements the database-query source and destination
// drivers backed by github.com/jackc/pgx/v5. It is the one concrete
// source/destination driver pair this module ships; apart from the in-memory
// source (engine.InMemoryDriver), every other descriptor kind is routed to
// the engine package's Unconfigured stubs.
package pgdriver

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/codeready-toolchain/aqueducts-executor/pkg/engine"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/protocol"
)

// Driver registers protocol.SourceDatabase sources by running the
// descriptor's query over a pgx connection and streaming the result into
// the engine, and writes protocol.DestinationDatabase destinations back out
// via a batched COPY.
type Driver struct{}

func (Driver) Register(ctx context.Context, eng engine.Engine, name string, source any) error {
	src, ok := source.(protocol.Source)
	if !ok {
		return fmt.Errorf("pgdriver: unexpected descriptor type %T", source)
	}
	if src.ConnectionString == "" || src.Query == "" {
		return fmt.Errorf("pgdriver: source %q missing connection_string or query", name)
	}

	conn, err := pgx.Connect(ctx, src.ConnectionString)
	if err != nil {
		return fmt.Errorf("pgdriver: connect for source %q: %w", name, err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, src.Query)
	if err != nil {
		return fmt.Errorf("pgdriver: query source %q: %w", name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	schema := engine.Schema{Columns: make([]engine.Column, len(fields))}
	for i, f := range fields {
		schema.Columns[i] = engine.Column{Name: f.Name, Type: "TEXT"}
	}

	var data [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return fmt.Errorf("pgdriver: read row for source %q: %w", name, err)
		}
		data = append(data, vals)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("pgdriver: iterate source %q: %w", name, err)
	}

	return eng.RegisterRows(ctx, name, schema, data)
}

func (Driver) Prepare(ctx context.Context, dest any) error {
	d, ok := dest.(protocol.Destination)
	if !ok {
		return fmt.Errorf("pgdriver: unexpected destination type %T", dest)
	}
	if d.ConnectionString == "" || d.Table == "" {
		return fmt.Errorf("pgdriver: destination missing connection_string or table")
	}
	conn, err := pgx.Connect(ctx, d.ConnectionString)
	if err != nil {
		return fmt.Errorf("pgdriver: connect to prepare destination: %w", err)
	}
	defer conn.Close(ctx)
	// Existence/verify only: creating the table is the operator's
	// responsibility since this driver has no column-type mapping for DDL.
	_, err = conn.Exec(ctx, fmt.Sprintf("SELECT 1 FROM %s LIMIT 0", pgx.Identifier{d.Table}.Sanitize()))
	if err != nil {
		return fmt.Errorf("pgdriver: destination table %q not reachable: %w", d.Table, err)
	}
	return nil
}

func (Driver) Write(ctx context.Context, eng engine.Engine, dest any, table string) error {
	d, ok := dest.(protocol.Destination)
	if !ok {
		return fmt.Errorf("pgdriver: unexpected destination type %T", dest)
	}

	schema, rows, err := eng.Query(ctx, fmt.Sprintf("SELECT * FROM %q", table))
	if err != nil {
		return fmt.Errorf("pgdriver: read materialized stage %q: %w", table, err)
	}
	if len(rows) == 0 {
		return nil
	}

	conn, err := pgx.Connect(ctx, d.ConnectionString)
	if err != nil {
		return fmt.Errorf("pgdriver: connect to write destination: %w", err)
	}
	defer conn.Close(ctx)

	if d.WriteMode == protocol.WriteModeOverwrite {
		if _, err := conn.Exec(ctx, fmt.Sprintf("TRUNCATE %s", pgx.Identifier{d.Table}.Sanitize())); err != nil {
			return fmt.Errorf("pgdriver: truncate destination table %q: %w", d.Table, err)
		}
	}

	colNames := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		colNames[i] = c.Name
	}
	_, err = conn.CopyFrom(ctx,
		pgx.Identifier{d.Table},
		colNames,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("pgdriver: copy into destination table %q: %w", d.Table, err)
	}
	return nil
}

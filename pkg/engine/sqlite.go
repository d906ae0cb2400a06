package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteEngine is the reference Engine implementation: a private in-memory
// SQLite database per execution, grounded on the pure-Go modernc.org/sqlite
// driver (no cgo, no external engine dependency). Each execution gets its
// own connection so concurrent executions never share table namespaces.
type SQLiteEngine struct {
	db *sql.DB
}

// NewSQLiteEngine opens a fresh private in-memory database.
func NewSQLiteEngine() (*SQLiteEngine, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite engine: %w", err)
	}
	db.SetMaxOpenConns(1) // a single in-memory connection; modernc's driver does not share :memory: across conns
	return &SQLiteEngine{db: db}, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (e *SQLiteEngine) RegisterRows(ctx context.Context, table string, schema Schema, rows [][]any) error {
	if _, err := e.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("drop existing table %q: %w", table, err)
	}
	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = quoteIdent(c.Name) + " " + sqliteType(c.Type)
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(cols, ", "))
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %q: %w", table, err)
	}
	if len(rows) == 0 {
		return nil
	}
	placeholders := make([]string, len(schema.Columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), strings.Join(placeholders, ", "))
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx for %q: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert for %q: %w", table, err)
	}
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("insert row into %q: %w", table, err)
		}
	}
	stmt.Close()
	return tx.Commit()
}

func sqliteType(t string) string {
	switch strings.ToLower(t) {
	case "int", "integer", "bigint":
		return "INTEGER"
	case "float", "double", "real":
		return "REAL"
	case "bool", "boolean":
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func (e *SQLiteEngine) Query(ctx context.Context, query string) (Schema, [][]any, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return Schema{}, nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func (e *SQLiteEngine) Explain(ctx context.Context, query string, analyze bool) (Schema, [][]any, error) {
	prefix := "EXPLAIN QUERY PLAN "
	if analyze {
		// modernc's sqlite has no EXPLAIN ANALYZE; analyze returns the same
		// query plan as a plain explain, with no execution statistics.
		prefix = "EXPLAIN QUERY PLAN "
	}
	return e.Query(ctx, prefix+query)
}

func (e *SQLiteEngine) TableSchema(ctx context.Context, table string) (Schema, error) {
	rows, err := e.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return Schema{}, fmt.Errorf("read schema for %q: %w", table, err)
	}
	defer rows.Close()
	var schema Schema
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return Schema{}, fmt.Errorf("scan table_info for %q: %w", table, err)
		}
		schema.Columns = append(schema.Columns, Column{Name: name, Type: typ})
	}
	return schema, rows.Err()
}

func (e *SQLiteEngine) Deregister(ctx context.Context, table string) error {
	_, err := e.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table))
	return err
}

func (e *SQLiteEngine) Close() error {
	return e.db.Close()
}

func scanAll(rows *sql.Rows) (Schema, [][]any, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return Schema{}, nil, fmt.Errorf("read column types: %w", err)
	}
	schema := Schema{Columns: make([]Column, len(colTypes))}
	for i, ct := range colTypes {
		schema.Columns[i] = Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}
	var result [][]any
	for rows.Next() {
		vals := make([]any, len(colTypes))
		ptrs := make([]any, len(colTypes))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Schema{}, nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, vals)
	}
	return schema, result, rows.Err()
}

// Package database opens and caches query handles over embedded SQLite/DuckDB files
// and remote MySQL or PostgreSQL servers.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrReadOnly is returned when a write is attempted on an embedded handle.
var ErrReadOnly = errors.New("attempt to write a readonly database")

// Handle is a query capability over one configured database.
type Handle struct {
	db       *sql.DB
	dialect  Dialect
	readOnly bool

	// refs counts callers pinning the handle through Provider.Acquire. A retired
	// handle is closed when refs drops to zero.
	mu        sync.Mutex
	refs      int
	retired   bool
	closeOnce sync.Once
	closeErr  error
}

// NewHandle wraps an open *sql.DB. Read-only handles refuse mutating statements before
// they reach the driver, in addition to whatever the driver enforces.
func NewHandle(db *sql.DB, dialect Dialect, readOnly bool) *Handle {
	return &Handle{db: db, dialect: dialect, readOnly: readOnly}
}

func (h *Handle) Dialect() Dialect { return h.dialect }
func (h *Handle) ReadOnly() bool   { return h.readOnly }

func (h *Handle) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

// Close closes the underlying pool. Later calls return the first result.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() { h.closeErr = h.db.Close() })
	return h.closeErr
}

func (h *Handle) pin() {
	h.mu.Lock()
	h.refs++
	h.mu.Unlock()
}

// unpin drops one reference and reports whether the handle is now retired and unused.
func (h *Handle) unpin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs > 0 {
		h.refs--
	}
	return h.retired && h.refs == 0
}

// retire marks the handle as replaced and reports whether nobody holds it.
func (h *Handle) retire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retired = true
	return h.refs == 0
}

// Retired reports whether the provider has replaced or evicted the handle.
func (h *Handle) Retired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.retired
}

// Result is the tabular outcome of a query.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Query runs stmt and collects every row. Statements that return no rows
// (DDL/DML on remote handles) produce an empty Result.
func (h *Handle) Query(ctx context.Context, stmt string, args ...any) (*Result, error) {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return nil, fmt.Errorf("empty statement")
	}
	if h.readOnly && isMutating(stmt) {
		return nil, ErrReadOnly
	}

	rows, err := h.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	res := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Explain asks the database to plan stmt without running it.
func (h *Handle) Explain(ctx context.Context, stmt string) error {
	stmt = strings.TrimSpace(stmt)
	if h.readOnly && isMutating(stmt) {
		return ErrReadOnly
	}
	rows, err := h.db.QueryContext(ctx, "EXPLAIN "+stmt)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

// ListTables returns user table and view names, sorted.
func (h *Handle) ListTables(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, h.dialect.listTablesSQL())
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Column describes one table column.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
}

// TableInfo returns the columns of table in declaration order. An unknown table
// yields an empty slice.
func (h *Handle) TableInfo(ctx context.Context, table string) ([]Column, error) {
	rows, err := h.db.QueryContext(ctx, h.dialect.columnsSQL(), table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			c        Column
			typ      sql.NullString
			nullable string
			pk       int64
		)
		if err := rows.Scan(&c.Name, &typ, &nullable, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Type = strings.ToUpper(typ.String)
		c.Nullable = strings.EqualFold(nullable, "YES")
		c.PrimaryKey = pk > 0
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// SampleRows returns up to limit rows of table.
func (h *Handle) SampleRows(ctx context.Context, table string, limit int) (*Result, error) {
	return h.Query(ctx, h.dialect.sampleSQL(table, limit))
}

// formatTime matches the text form most drivers return for DATETIME columns.
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.DateTime)
}

// Package testutil provides in-memory stand-ins for the pgx surface used by
// repositories and the query executor.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Call records one statement issued against a FakeQuerier.
type Call struct {
	SQL  string
	Args []any
}

// FakeQuerier implements db.Querier with pluggable handlers.
type FakeQuerier struct {
	QueryFunc    func(sql string, args ...any) (pgx.Rows, error)
	QueryRowFunc func(sql string, args ...any) pgx.Row
	ExecFunc     func(sql string, args ...any) (pgconn.CommandTag, error)

	Calls []Call
}

func (f *FakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.Calls = append(f.Calls, Call{SQL: sql, Args: args})
	if f.QueryFunc == nil {
		return nil, errors.New("unexpected Query")
	}
	return f.QueryFunc(sql, args...)
}

func (f *FakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.Calls = append(f.Calls, Call{SQL: sql, Args: args})
	if f.QueryRowFunc == nil {
		return Row{Err: errors.New("unexpected QueryRow")}
	}
	return f.QueryRowFunc(sql, args...)
}

func (f *FakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.Calls = append(f.Calls, Call{SQL: sql, Args: args})
	if f.ExecFunc == nil {
		return pgconn.CommandTag{}, errors.New("unexpected Exec")
	}
	return f.ExecFunc(sql, args...)
}

// Row is a single-row result. Err, when set, is returned by Scan.
type Row struct {
	Values []any
	Err    error
}

func (r Row) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	return assign(dest, r.Values)
}

// Rows is an in-memory pgx.Rows.
type Rows struct {
	Columns []string
	Data    [][]any
	// ErrAfter is returned by Err once iteration is done.
	ErrAfter error

	pos    int
	closed bool
}

// NewRows builds Rows with the given column names.
func NewRows(columns []string, data ...[]any) *Rows {
	return &Rows{Columns: columns, Data: data}
}

func (r *Rows) Close() { r.closed = true }

func (r *Rows) Err() error {
	if r.pos >= len(r.Data) {
		return r.ErrAfter
	}
	return nil
}

func (r *Rows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }

func (r *Rows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.Columns))
	for i, c := range r.Columns {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}

func (r *Rows) Next() bool {
	if r.closed || r.pos >= len(r.Data) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	return assign(dest, r.Data[r.pos-1])
}

func (r *Rows) Values() ([]any, error) {
	return r.Data[r.pos-1], nil
}

func (r *Rows) RawValues() [][]byte { return nil }

func (r *Rows) Conn() *pgx.Conn { return nil }

// Closed reports whether Close was called.
func (r *Rows) Closed() bool { return r.closed }

func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i])
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("scan: destination %d is not a pointer", i)
		}
		if v == nil {
			target.Elem().Set(reflect.Zero(target.Elem().Type()))
			continue
		}
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(target.Elem().Type()) {
			if !val.Type().ConvertibleTo(target.Elem().Type()) {
				return fmt.Errorf("scan: cannot assign %T to %s", v, target.Elem().Type())
			}
			val = val.Convert(target.Elem().Type())
		}
		target.Elem().Set(val)
	}
	return nil
}

//go:build !integration

package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

// --- Fakes for the pgx executor surface ---

type fakeRow struct {
	vals []interface{}
	err  error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return errors.New("fakeRow: column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.vals[i].(int64)
		case *string:
			*p = r.vals[i].(string)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		case **time.Time:
			if v, ok := r.vals[i].(time.Time); ok {
				*p = &v
			} else {
				*p = nil
			}
		case **int64:
			if v, ok := r.vals[i].(int64); ok {
				*p = &v
			} else {
				*p = nil
			}
		default:
			return errors.New("fakeRow: unsupported destination")
		}
	}
	return nil
}

type execCall struct {
	sql  string
	args []interface{}
}

type fakeExecutor struct {
	calls []execCall

	rowsAffected int64
	execErr      error
	row          fakeRow
	queryErr     error
}

func (f *fakeExecutor) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return nil, f.execErr
	}
	return pgconn.CommandTag("UPDATE " + strconv.FormatInt(f.rowsAffected, 10)), nil
}

func (f *fakeExecutor) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return f.row
}

func (f *fakeExecutor) Query(_ context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return nil, errors.New("fakeExecutor: Query not scripted")
}

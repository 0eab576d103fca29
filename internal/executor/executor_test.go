package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"reportnotifier/internal/testutil"
)

func TestExecute_PreservesColumnOrder(t *testing.T) {
	rows := testutil.NewRows(
		[]string{"course_id", "learner", "grade"},
		[]any{"Wine101x", "alice", 0.9},
		[]any{"Wine101x", "bob", nil},
	)
	q := &testutil.FakeQuerier{
		QueryFunc: func(string, ...any) (pgx.Rows, error) { return rows, nil },
	}

	rs, err := New(q, 0, zap.NewNop()).Execute(context.Background(), "SELECT course_id, learner, grade FROM grades;")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rs.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", rs.Len())
	}
	names := rs.Rows[0].Names()
	if names[0] != "course_id" || names[1] != "learner" || names[2] != "grade" {
		t.Fatalf("unexpected column order %v", names)
	}
	if v, _ := rs.Rows[1].Get("grade"); v != nil {
		t.Fatalf("expected nil grade, got %v", v)
	}

	call := q.Calls[0]
	if call.SQL != "SELECT course_id, learner, grade FROM grades;" {
		t.Fatalf("query must be executed verbatim, got %q", call.SQL)
	}
	if len(call.Args) != 1 || call.Args[0] != pgx.QueryExecModeSimpleProtocol {
		t.Fatalf("expected simple protocol, got %v", call.Args)
	}
}

func TestExecute_EmptyResult(t *testing.T) {
	q := &testutil.FakeQuerier{
		QueryFunc: func(string, ...any) (pgx.Rows, error) { return testutil.NewRows([]string{"a"}), nil },
	}
	rs, err := New(q, 0, zap.NewNop()).Execute(context.Background(), "SELECT a FROM t WHERE false")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !rs.Empty() {
		t.Fatalf("expected empty result, got %d rows", rs.Len())
	}
}

func TestExecute_QueryError(t *testing.T) {
	cause := errors.New(`syntax error at or near "SELEC"`)
	q := &testutil.FakeQuerier{
		QueryFunc: func(string, ...any) (pgx.Rows, error) { return nil, cause },
	}

	_, err := New(q, 0, zap.NewNop()).Execute(context.Background(), "SELEC 1")
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	if qe.Query != "SELEC 1" || !errors.Is(err, cause) {
		t.Fatalf("unexpected QueryError %+v", qe)
	}
}

func TestExecute_IterationErrorIsQueryError(t *testing.T) {
	rows := testutil.NewRows([]string{"a"}, []any{1})
	rows.ErrAfter = errors.New("canceling statement due to statement timeout")
	q := &testutil.FakeQuerier{
		QueryFunc: func(string, ...any) (pgx.Rows, error) { return rows, nil },
	}

	_, err := New(q, time.Second, zap.NewNop()).Execute(context.Background(), "SELECT a FROM t")
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryError, got %v", err)
	}
}

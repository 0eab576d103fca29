package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"reportnotifier/internal/model"
	"reportnotifier/internal/testutil"
)

func TestListActiveReports(t *testing.T) {
	rows := testutil.NewRows(
		[]string{"report_code", "report_name", "trigger", "active", "email"},
		[]any{"WEEKLY_ENROL", "Weekly enrolments", "CONDITIONAL", true, `{"from_email":"a@example.edu"}`},
		[]any{"TERM_SUMMARY", "Term summary", "CALENDAR", true, `{"from_email":"a@example.edu"}`},
	)
	q := &testutil.FakeQuerier{
		QueryFunc: func(string, ...any) (pgx.Rows, error) { return rows, nil },
	}
	repo := NewReportRepository(q, zap.NewNop())

	reports, err := repo.ListActiveReports(context.Background())
	if err != nil {
		t.Fatalf("ListActiveReports: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].Code != "WEEKLY_ENROL" || reports[0].Trigger != model.TriggerConditional {
		t.Fatalf("unexpected first report %+v", reports[0])
	}
	if reports[1].Trigger != model.TriggerCalendar {
		t.Fatalf("unexpected trigger %q", reports[1].Trigger)
	}
	if string(reports[0].Email) != `{"from_email":"a@example.edu"}` {
		t.Fatalf("unexpected email column %q", reports[0].Email)
	}
	if !rows.Closed() {
		t.Fatal("rows must be closed")
	}
	if !strings.Contains(q.Calls[0].SQL, "active = TRUE") {
		t.Fatalf("expected active filter, got %q", q.Calls[0].SQL)
	}
}

func TestListActiveReports_StoreUnavailable(t *testing.T) {
	q := &testutil.FakeQuerier{
		QueryFunc: func(string, ...any) (pgx.Rows, error) { return nil, errors.New("connection refused") },
	}
	repo := NewReportRepository(q, zap.NewNop())

	_, err := repo.ListActiveReports(context.Background())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	var sue *StoreUnavailableError
	if !errors.As(err, &sue) || sue.Op != "list active reports" {
		t.Fatalf("expected StoreUnavailableError with op, got %#v", err)
	}
}

func TestListActiveReports_IterationError(t *testing.T) {
	rows := testutil.NewRows([]string{"report_code"})
	rows.ErrAfter = errors.New("conn closed")
	q := &testutil.FakeQuerier{
		QueryFunc: func(string, ...any) (pgx.Rows, error) { return rows, nil },
	}

	_, err := NewReportRepository(q, zap.NewNop()).ListActiveReports(context.Background())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestListQueries_UsesBoundParameter(t *testing.T) {
	rows := testutil.NewRows(
		[]string{"report_code", "sequence", "type", "description", "query"},
		[]any{"WEEKLY_ENROL", 1, "CONDITIONAL", "New enrolments", "SELECT 1"},
		[]any{"WEEKLY_ENROL", 2, "CALENDAR", "Calendar only", "SELECT 2"},
	)
	q := &testutil.FakeQuerier{
		QueryFunc: func(string, ...any) (pgx.Rows, error) { return rows, nil },
	}
	repo := NewReportRepository(q, zap.NewNop())

	code := "WEEKLY_ENROL'; DROP TABLE report; --"
	queries, err := repo.ListQueries(context.Background(), code)
	if err != nil {
		t.Fatalf("ListQueries: %v", err)
	}
	if len(queries) != 2 || queries[0].Sequence != 1 || queries[1].Type != model.TriggerCalendar {
		t.Fatalf("unexpected queries %+v", queries)
	}

	call := q.Calls[0]
	if strings.Contains(call.SQL, "DROP TABLE") {
		t.Fatal("report code must not be interpolated into SQL")
	}
	if len(call.Args) != 1 || call.Args[0] != code {
		t.Fatalf("expected report code as bound arg, got %v", call.Args)
	}
	if !strings.Contains(call.SQL, `ORDER BY "sequence" ASC`) {
		t.Fatalf("expected sequence ordering, got %q", call.SQL)
	}
}

func TestListQueries_StoreUnavailable(t *testing.T) {
	q := &testutil.FakeQuerier{
		QueryFunc: func(string, ...any) (pgx.Rows, error) { return nil, errors.New("timeout") },
	}
	_, err := NewReportRepository(q, zap.NewNop()).ListQueries(context.Background(), "X")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

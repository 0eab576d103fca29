package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"reportnotifier/internal/model"
	"reportnotifier/pkg/db"
	"reportnotifier/pkg/otel"
)

// QueryError wraps a failed report query.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Executor runs report-authored SQL verbatim against the analytics store.
type Executor struct {
	db      db.Querier
	timeout time.Duration
	logger  *zap.Logger
}

// New returns an Executor. A zero timeout leaves queries unbounded.
func New(q db.Querier, timeout time.Duration, logger *zap.Logger) *Executor {
	return &Executor{
		db:      q,
		timeout: timeout,
		logger:  logger,
	}
}

// Execute runs query as-is and collects every row in column order.
// The simple protocol is used so authored text such as a trailing semicolon
// is accepted exactly as the database would accept it interactively.
func (e *Executor) Execute(ctx context.Context, query string) (*model.ResultSet, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	rs := &model.ResultSet{}
	err := otel.Query(ctx, "report_query", "", query, func(ctx context.Context) error {
		rows, err := e.db.Query(ctx, query, pgx.QueryExecModeSimpleProtocol)
		if err != nil {
			return err
		}
		defer rows.Close()

		fields := rows.FieldDescriptions()
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return err
			}
			row := make(model.Row, len(fields))
			for i, fd := range fields {
				row[i] = model.Field{Name: fd.Name, Value: values[i]}
			}
			rs.Rows = append(rs.Rows, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}

	e.logger.Debug("Report query executed", zap.Int("rows", rs.Len()))
	return rs, nil
}

package otel

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DBSpan starts a client span for a database operation.
func DBSpan(ctx context.Context, operation, table, query string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
			attribute.String("db.statement", query),
		),
	)
}

// Query runs fn inside a DB span. pgx.ErrNoRows is not treated as a failure.
func Query(ctx context.Context, operation, table, query string, fn func(context.Context) error) error {
	ctx, span := DBSpan(ctx, operation, table, query)
	err := fn(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		EndSpan(span, nil)
		return err
	}
	EndSpan(span, err)
	return err
}

package util

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// IsRetryableError classifies a database or transport error.
// Returns: (isRetryable, errorType)
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, "no_rows"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			// connection exception / operator intervention (admin shutdown)
			return true, "db_connection_error"
		case strings.HasPrefix(pgErr.Code, "42"):
			return false, "query_syntax_error"
		case strings.HasPrefix(pgErr.Code, "40"):
			return true, "transaction_rollback"
		default:
			return false, "db_error"
		}
	}

	if pgconn.SafeToRetry(err) {
		return true, "db_connection_error"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "timeout") {
		return true, "db_connection_error"
	}

	return false, "unknown_error"
}

package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"reportnotifier/pkg/config"
)

// ErrNotConnected is returned when the pool has been closed or was never built.
var ErrNotConnected = errors.New("database not connected")

// Querier is the subset of pgxpool.Pool used by repositories.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Handle owns the single long-lived pool shared by the poll loop and
// rebuilds it on demand when the database goes away.
type Handle struct {
	cfg           config.DBConfig
	logger        *zap.Logger
	slowThreshold time.Duration

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// DSN builds the postgres connection URL for cfg.
func DSN(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

// NewConnection connects and pings the database. slowThreshold configures the
// slow query tracer; zero uses its default.
func NewConnection(ctx context.Context, cfg config.DBConfig, slowThreshold time.Duration, logger *zap.Logger) (*Handle, error) {
	h := &Handle{
		cfg:           cfg,
		logger:        logger,
		slowThreshold: slowThreshold,
	}
	pool, err := h.connect(ctx)
	if err != nil {
		return nil, err
	}
	h.pool = pool
	return h, nil
}

func (h *Handle) connect(ctx context.Context) (*pgxpool.Pool, error) {
	h.logger.Info("Initializing PostgreSQL connection pool",
		zap.String("host", h.cfg.Host),
		zap.Int("port", h.cfg.Port),
		zap.String("db", h.cfg.Name),
	)

	poolCfg, err := pgxpool.ParseConfig(DSN(h.cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}

	// One cycle runs at a time, so a small pool is enough.
	poolCfg.MaxConns = 4
	if h.cfg.MaxConns > 0 {
		poolCfg.MaxConns = h.cfg.MaxConns
	}
	poolCfg.MinConns = 1
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.ConnConfig.Tracer = NewSlowQueryTracer(h.logger, h.slowThreshold)

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	defer pingCancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	h.logger.Info("PostgreSQL connection established successfully")
	return pool, nil
}

// EnsureConnected pings the current pool and replaces it when the ping fails.
func (h *Handle) EnsureConnected(ctx context.Context) error {
	err := h.Ping(ctx)
	if err == nil {
		return nil
	}
	h.logger.Warn("Database ping failed, reconnecting", zap.Error(err))

	pool, err := h.connect(ctx)
	if err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}

	h.mu.Lock()
	old := h.pool
	h.pool = pool
	h.mu.Unlock()

	if old != nil {
		old.Close()
	}
	h.logger.Info("Database connection re-established")
	return nil
}

// Ping checks the current pool.
func (h *Handle) Ping(ctx context.Context) error {
	pool := h.current()
	if pool == nil {
		return ErrNotConnected
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return pool.Ping(pingCtx)
}

func (h *Handle) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	pool := h.current()
	if pool == nil {
		return nil, ErrNotConnected
	}
	return pool.Query(ctx, sql, args...)
}

func (h *Handle) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	pool := h.current()
	if pool == nil {
		return errRow{err: ErrNotConnected}
	}
	return pool.QueryRow(ctx, sql, args...)
}

func (h *Handle) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	pool := h.current()
	if pool == nil {
		return pgconn.CommandTag{}, ErrNotConnected
	}
	return pool.Exec(ctx, sql, args...)
}

// Close releases the pool. Subsequent calls return ErrNotConnected until
// EnsureConnected succeeds.
func (h *Handle) Close() {
	h.mu.Lock()
	pool := h.pool
	h.pool = nil
	h.mu.Unlock()
	if pool != nil {
		pool.Close()
	}
}

func (h *Handle) current() *pgxpool.Pool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pool
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error { return r.err }

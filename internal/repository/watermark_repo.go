package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"reportnotifier/internal/model"
	"reportnotifier/pkg/db"
	"reportnotifier/pkg/metrics"
	"reportnotifier/pkg/otel"
)

const (
	lastRunSQL = `
        SELECT last_run FROM ingestion_watermark WHERE process_name = $1
    `
	watermarkSQL = `
        SELECT process_name, last_run, finished FROM ingestion_watermark WHERE process_name = $1
    `
	recordRunSQL = `
        INSERT INTO ingestion_watermark (process_name, last_run, finished)
        VALUES ($1, $2, TRUE)
        ON CONFLICT (process_name)
        DO UPDATE SET last_run = EXCLUDED.last_run, finished = TRUE
    `
)

// WatermarkRepository reads and writes per-process run watermarks.
type WatermarkRepository struct {
	db     db.Querier
	logger *zap.Logger
}

func NewWatermarkRepository(q db.Querier, logger *zap.Logger) *WatermarkRepository {
	return &WatermarkRepository{
		db:     q,
		logger: logger,
	}
}

// LastRun returns the watermark of process, or the zero time if it has never run.
func (r *WatermarkRepository) LastRun(ctx context.Context, process string) (time.Time, error) {
	start := time.Now()
	var lastRun time.Time

	err := otel.Query(ctx, "select", "ingestion_watermark", lastRunSQL, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, lastRunSQL, process).Scan(&lastRun)
	})
	metrics.RecordDBQueryDuration("select", "ingestion_watermark", time.Since(start))

	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, unavailable("read watermark of "+process, err)
	}
	return lastRun, nil
}

// Watermark reads last run and completion flag of process in one statement.
// A process with no row has a zero, unfinished watermark.
func (r *WatermarkRepository) Watermark(ctx context.Context, process string) (model.IngestionWatermark, error) {
	start := time.Now()
	w := model.IngestionWatermark{ProcessName: process}

	err := otel.Query(ctx, "select", "ingestion_watermark", watermarkSQL, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, watermarkSQL, process).Scan(&w.ProcessName, &w.LastRun, &w.Finished)
	})
	metrics.RecordDBQueryDuration("select", "ingestion_watermark", time.Since(start))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.IngestionWatermark{ProcessName: process}, nil
	}
	if err != nil {
		return model.IngestionWatermark{}, unavailable("read watermark of "+process, err)
	}
	return w, nil
}

// RecordRun upserts the watermark of process to at and marks it finished.
func (r *WatermarkRepository) RecordRun(ctx context.Context, process string, at time.Time) error {
	start := time.Now()

	err := otel.Query(ctx, "upsert", "ingestion_watermark", recordRunSQL, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, recordRunSQL, process, at)
		return err
	})
	metrics.RecordDBQueryDuration("upsert", "ingestion_watermark", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to record watermark",
			zap.String("process", process),
			zap.Error(err),
		)
		return unavailable("record watermark of "+process, err)
	}

	r.logger.Info("Watermark recorded",
		zap.String("process", process),
		zap.Time("last_run", at),
	)
	return nil
}

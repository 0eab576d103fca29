package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"reportnotifier/internal/model"
	"reportnotifier/pkg/db"
	"reportnotifier/pkg/metrics"
	"reportnotifier/pkg/otel"
)

const (
	listActiveReportsSQL = `
        SELECT report_code, report_name, "trigger", active, email
        FROM report
        WHERE active = TRUE
    `
	listQueriesSQL = `
        SELECT report_code, "sequence", "type", COALESCE(description, ''), query
        FROM query
        WHERE report_code = $1
        ORDER BY "sequence" ASC
    `
)

// ReportRepository reads report and query definitions. It never writes.
type ReportRepository struct {
	db     db.Querier
	logger *zap.Logger
}

func NewReportRepository(q db.Querier, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{
		db:     q,
		logger: logger,
	}
}

// ListActiveReports returns all reports with active = true.
func (r *ReportRepository) ListActiveReports(ctx context.Context) ([]model.Report, error) {
	start := time.Now()
	var reports []model.Report

	err := otel.Query(ctx, "select", "report", listActiveReportsSQL, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, listActiveReportsSQL)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				rep     model.Report
				trigger string
			)
			if err := rows.Scan(&rep.Code, &rep.Name, &trigger, &rep.Active, &rep.Email); err != nil {
				return err
			}
			rep.Trigger = model.Trigger(trigger)
			reports = append(reports, rep)
		}
		return rows.Err()
	})
	metrics.RecordDBQueryDuration("select", "report", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to list active reports", zap.Error(err))
		return nil, unavailable("list active reports", err)
	}

	r.logger.Debug("Loaded report schedule", zap.Int("active_reports", len(reports)))
	return reports, nil
}

// ListQueries returns the queries of reportCode in ascending sequence order.
func (r *ReportRepository) ListQueries(ctx context.Context, reportCode string) ([]model.Query, error) {
	start := time.Now()
	var queries []model.Query

	err := otel.Query(ctx, "select", "query", listQueriesSQL, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, listQueriesSQL, reportCode)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				q     model.Query
				qType string
			)
			if err := rows.Scan(&q.ReportCode, &q.Sequence, &qType, &q.Description, &q.SQL); err != nil {
				return err
			}
			q.Type = model.Trigger(qType)
			queries = append(queries, q)
		}
		return rows.Err()
	})
	metrics.RecordDBQueryDuration("select", "query", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to list report queries",
			zap.String("report_code", reportCode),
			zap.Error(err),
		)
		return nil, unavailable("list queries for "+reportCode, err)
	}
	return queries, nil
}

package model

import "time"

// ExportedFile is a CSV written for one non-empty query result.
type ExportedFile struct {
	Path       string
	ReportCode string
	CreatedAt  time.Time
	RowCount   int

	// Set by the orchestrator from the producing query.
	Sequence    int
	Description string
}

// IngestionWatermark is a row of the ingestion_watermark table.
type IngestionWatermark struct {
	ProcessName string
	LastRun     time.Time
	Finished    bool
}

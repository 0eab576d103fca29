package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"reportnotifier/internal/model"
)

var (
	// ErrEmptyResultSet is returned when Export is called without rows.
	ErrEmptyResultSet = errors.New("export: empty result set")
	// ErrShapeMismatch is returned when a row carries a column the first row lacks.
	ErrShapeMismatch = errors.New("export: row shape does not match header")
)

const fileTimeLayout = "20060102-150405"

// CSVExporter writes result sets to <dir>/<report_code>_<YYYYMMDD-HHMMSS>.csv.
type CSVExporter struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

func NewCSVExporter(dir string, logger *zap.Logger) *CSVExporter {
	return &CSVExporter{
		dir:    dir,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock replaces the clock used for file names.
func (e *CSVExporter) WithClock(now func() time.Time) *CSVExporter {
	e.now = now
	return e
}

// FileName returns the lower-cased export file name for reportCode at t.
func FileName(reportCode string, t time.Time) string {
	return strings.ToLower(reportCode+"_"+t.Format(fileTimeLayout)) + ".csv"
}

// Export writes rs as CSV with a header taken from the first row. A second
// export of the same report within the same second replaces the first file.
func (e *CSVExporter) Export(reportCode string, rs *model.ResultSet) (model.ExportedFile, error) {
	if rs.Empty() {
		return model.ExportedFile{}, ErrEmptyResultSet
	}

	createdAt := e.now()
	path := filepath.Join(e.dir, FileName(reportCode, createdAt))

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return model.ExportedFile{}, fmt.Errorf("export %s: create dir: %w", reportCode, err)
	}

	tmp, err := os.CreateTemp(e.dir, ".export-*.csv")
	if err != nil {
		return model.ExportedFile{}, fmt.Errorf("export %s: %w", reportCode, err)
	}
	defer os.Remove(tmp.Name())

	if err := writeCSV(tmp, rs); err != nil {
		tmp.Close()
		return model.ExportedFile{}, fmt.Errorf("export %s: %w", reportCode, err)
	}
	if err := tmp.Close(); err != nil {
		return model.ExportedFile{}, fmt.Errorf("export %s: %w", reportCode, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return model.ExportedFile{}, fmt.Errorf("export %s: %w", reportCode, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return model.ExportedFile{}, fmt.Errorf("export %s: %w", reportCode, err)
	}

	e.logger.Info("Exported CSV",
		zap.String("report_code", reportCode),
		zap.String("path", path),
		zap.Int("rows", rs.Len()),
	)

	return model.ExportedFile{
		Path:       path,
		ReportCode: reportCode,
		CreatedAt:  createdAt,
		RowCount:   rs.Len(),
	}, nil
}

func writeCSV(f *os.File, rs *model.ResultSet) error {
	header := rs.Rows[0].Names()
	index := make(map[string]int, len(header))
	ambiguous := false
	for i, name := range header {
		if _, dup := index[name]; dup {
			ambiguous = true
		}
		index[name] = i
	}

	w := csv.NewWriter(f)
	w.UseCRLF = true
	if err := w.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for n, row := range rs.Rows {
		if sameShape(header, row) {
			for i, field := range row {
				record[i] = FormatValue(field.Value)
			}
		} else if err := fillByName(record, header, index, ambiguous, row); err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrShapeMismatch, n+1, err)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// sameShape reports whether row has exactly the header columns in order.
func sameShape(header []string, row model.Row) bool {
	if len(row) != len(header) {
		return false
	}
	for i, field := range row {
		if field.Name != header[i] {
			return false
		}
	}
	return true
}

// fillByName places a row whose columns differ from the header. Missing
// columns are left empty; duplicated or unknown ones cannot be placed.
func fillByName(record, header []string, index map[string]int, ambiguous bool, row model.Row) error {
	if ambiguous {
		return errors.New("header repeats a column name")
	}
	seen := make(map[string]bool, len(row))
	for _, field := range row {
		if seen[field.Name] {
			return fmt.Errorf("duplicate column %q", field.Name)
		}
		seen[field.Name] = true
		if _, ok := index[field.Name]; !ok {
			return fmt.Errorf("unexpected column %q", field.Name)
		}
	}
	for i, name := range header {
		record[i] = ""
		if v, ok := row.Get(name); ok {
			record[i] = FormatValue(v)
		}
	}
	return nil
}

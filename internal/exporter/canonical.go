package exporter

import (
	"fmt"

	"qcmpulse/internal/config"
	"qcmpulse/pkg/contracts/domain"
)

// TableExporter writes canonical tables
type TableExporter struct {
	csvWriter *CSVWriter
}

// NewTableExporter creates a new canonical table exporter
func NewTableExporter(paths *config.Paths) *TableExporter {
	return &TableExporter{
		csvWriter: NewCSVWriter(paths),
	}
}

// CanonicalHeader returns the header written for t. All overtone slots are always present;
// abs_time and the temperature columns only when the table carries them.
func CanonicalHeader(t *domain.CanonicalTable) []string {
	return domain.CanonicalColumns(t.AbsTime != nil, t.Temp != nil, t.TempTime != nil)
}

// WriteCanonical streams t to filePath and returns the resolved path. Slots that were not
// analyzed and missing samples are written as empty cells.
func (e *TableExporter) WriteCanonical(filePath string, t *domain.CanonicalTable) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("refusing to write invalid table: %w", err)
	}

	sw, err := e.csvWriter.CreateStreamWriter(filePath, CanonicalHeader(t))
	if err != nil {
		return "", err
	}

	record := make([]string, 0, len(CanonicalHeader(t)))
	for i := 0; i < t.Len(); i++ {
		record = record[:0]
		record = append(record, formatCell(t.Time, i))
		if t.AbsTime != nil {
			record = append(record, t.AbsTime[i])
		}
		for _, o := range domain.AllOvertones {
			record = append(record, formatCell(t.Freq[o], i), formatCell(t.Dis[o], i))
		}
		if t.Temp != nil {
			record = append(record, formatCell(t.Temp, i))
		}
		if t.TempTime != nil {
			record = append(record, formatCell(t.TempTime, i))
		}
		if err := sw.WriteRecord(record); err != nil {
			sw.Close()
			return "", fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if err := sw.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", filePath, err)
	}
	return e.csvWriter.resolvePath(filePath), nil
}

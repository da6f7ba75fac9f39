package exporter

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/parquet-go/parquet-go"

	"qcmpulse/pkg/contracts/domain"
)

// archiveRow is one row of a canonical table in the parquet archive. A column that was not
// measured is null in every row; a missing sample of a measured column is stored as NaN.
type archiveRow struct {
	Time     float64  `parquet:"time"`
	AbsTime  *string  `parquet:"abs_time,optional"`
	F1       *float64 `parquet:"fundamental_freq,optional"`
	D1       *float64 `parquet:"fundamental_dis,optional"`
	F3       *float64 `parquet:"3rd_freq,optional"`
	D3       *float64 `parquet:"3rd_dis,optional"`
	F5       *float64 `parquet:"5th_freq,optional"`
	D5       *float64 `parquet:"5th_dis,optional"`
	F7       *float64 `parquet:"7th_freq,optional"`
	D7       *float64 `parquet:"7th_dis,optional"`
	F9       *float64 `parquet:"9th_freq,optional"`
	D9       *float64 `parquet:"9th_dis,optional"`
	F11      *float64 `parquet:"11th_freq,optional"`
	D11      *float64 `parquet:"11th_dis,optional"`
	F13      *float64 `parquet:"13th_freq,optional"`
	D13      *float64 `parquet:"13th_dis,optional"`
	Temp     *float64 `parquet:"temp,optional"`
	TempTime *float64 `parquet:"temp_time,optional"`
	PPM      bool     `parquet:"dissipation_ppm"`
}

func (r *archiveRow) slots() [domain.NumOvertones][2]**float64 {
	return [domain.NumOvertones][2]**float64{
		{&r.F1, &r.D1}, {&r.F3, &r.D3}, {&r.F5, &r.D5}, {&r.F7, &r.D7},
		{&r.F9, &r.D9}, {&r.F11, &r.D11}, {&r.F13, &r.D13},
	}
}

func cell(values []float64, i int) *float64 {
	if values == nil {
		return nil
	}
	v := values[i]
	return &v
}

// WriteParquet archives t as a snappy compressed parquet file
func WriteParquet(path string, t *domain.CanonicalTable) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("refusing to archive invalid table: %w", err)
	}

	rows := make([]archiveRow, t.Len())
	for i := range rows {
		r := &rows[i]
		r.Time = t.Time[i]
		r.PPM = t.DissipationPPM
		if t.AbsTime != nil {
			s := t.AbsTime[i]
			r.AbsTime = &s
		}
		slots := r.slots()
		for _, o := range domain.AllOvertones {
			*slots[o][0] = cell(t.Freq[o], i)
			*slots[o][1] = cell(t.Dis[o], i)
		}
		r.Temp = cell(t.Temp, i)
		r.TempTime = cell(t.TempTime, i)
	}

	var buf bytes.Buffer
	pw := parquet.NewGenericWriter[archiveRow](&buf, parquet.Compression(&parquet.Snappy))
	if _, err := pw.Write(rows); err != nil {
		return fmt.Errorf("failed to encode parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}

	slog.Info("Archiving table",
		slog.String("full_path", path),
		slog.Int("rows", len(rows)),
		slog.Int("bytes", buf.Len()))
	return writeFileAtomic(path, buf.Bytes())
}

// ReadParquet loads a table archived by WriteParquet
func ReadParquet(path string) (*domain.CanonicalTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	gr := parquet.NewGenericReader[archiveRow](bytes.NewReader(data))
	defer gr.Close()

	rows := make([]archiveRow, 0, gr.NumRows())
	batch := make([]archiveRow, 1024)
	for {
		n, err := gr.Read(batch)
		if n > 0 {
			rows = append(rows, batch[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return tableFromRows(rows), nil
}

func tableFromRows(rows []archiveRow) *domain.CanonicalTable {
	n := len(rows)
	t := domain.NewCanonicalTable(n)

	column := func(get func(r *archiveRow) *float64) []float64 {
		var out []float64
		for i := range rows {
			p := get(&rows[i])
			if p == nil {
				continue
			}
			if out == nil {
				out = make([]float64, n)
				for j := range out {
					out[j] = math.NaN()
				}
			}
			out[i] = *p
		}
		return out
	}

	for i := range rows {
		t.Time[i] = rows[i].Time
		t.DissipationPPM = rows[i].PPM
		if rows[i].AbsTime != nil {
			if t.AbsTime == nil {
				t.AbsTime = make([]string, n)
			}
			t.AbsTime[i] = *rows[i].AbsTime
		}
	}
	for _, o := range domain.AllOvertones {
		t.Freq[o] = column(func(r *archiveRow) *float64 { return *r.slots()[o][0] })
		t.Dis[o] = column(func(r *archiveRow) *float64 { return *r.slots()[o][1] })
	}
	t.Temp = column(func(r *archiveRow) *float64 { return r.Temp })
	t.TempTime = column(func(r *archiveRow) *float64 { return r.TempTime })
	return t
}

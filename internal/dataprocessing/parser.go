package dataprocessing

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "qcmpulse/internal/errors"
)

// Supported raw export extensions
const (
	ExtCSV  = ".csv"
	ExtTXT  = ".txt"
	ExtXLS  = ".xls"
	ExtXLSX = ".xlsx"
	ExtXLSM = ".xlsm"
	ExtQSD  = ".qsd"
)

// RawTable is a vendor export as read from disk: a header row and string cells
type RawTable struct {
	Headers []string
	Rows    [][]string
	index   map[string]int
}

// NewRawTable builds a table and indexes its headers. Duplicate headers keep the first column.
func NewRawTable(headers []string, rows [][]string) *RawTable {
	t := &RawTable{Headers: headers, Rows: rows, index: make(map[string]int, len(headers))}
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.Headers[i] = h
		if _, ok := t.index[h]; !ok {
			t.index[h] = i
		}
	}
	return t
}

// Column returns the position of a header
func (t *RawTable) Column(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Has reports whether the header exists
func (t *RawTable) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of data rows
func (t *RawTable) Len() int {
	return len(t.Rows)
}

// Cell returns the trimmed cell at row r for the named column, or "" when absent
func (t *RawTable) Cell(r int, name string) string {
	i, ok := t.index[name]
	if !ok || r >= len(t.Rows) || i >= len(t.Rows[r]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[r][i])
}

// Floats parses the named column. Empty and non-numeric cells become NaN.
func (t *RawTable) Floats(name string) ([]float64, bool) {
	if !t.Has(name) {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for r := range t.Rows {
		out[r] = parseFloat(t.Cell(r, name))
	}
	return out, true
}

// Strings returns the named column as raw strings
func (t *RawTable) Strings(name string) ([]string, bool) {
	if !t.Has(name) {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for r := range t.Rows {
		out[r] = t.Cell(r, name)
	}
	return out, true
}

func parseFloat(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ReadRawFile reads a tabular vendor export. Binary .qsd containers are not tabular and
// go through ReadQSDFile instead.
func ReadRawFile(path string) (*RawTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return ParseRaw(data, filepath.Ext(path))
}

// ParseRaw parses an in-memory export according to its extension
func ParseRaw(data []byte, ext string) (*RawTable, error) {
	switch strings.ToLower(ext) {
	case ExtCSV:
		return parseDelimited(data, csvSeparator(data))
	case ExtTXT:
		return parseDelimited(data, '\t')
	case ExtXLSX, ExtXLSM:
		return parseWorkbook(data)
	case ExtXLS:
		return nil, apperrors.NewFormatError("legacy .xls workbooks are not supported, save the export as .xlsx", -1)
	case ExtQSD:
		return nil, apperrors.NewFormatError("binary .qsd containers are not tabular", -1)
	}
	return nil, apperrors.NewFormatError(fmt.Sprintf("unsupported file extension %q", ext), -1)
}

// csvSeparator picks ';' over ',' when the header line holds more semicolons, as in exports
// written with a European locale
func csvSeparator(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}
	if bytes.Count(header, []byte{';'}) > bytes.Count(header, []byte{','}) {
		return ';'
	}
	return ','
}

func parseDelimited(data []byte, sep rune) (*RawTable, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, apperrors.NewFormatError("file is empty", -1)
	}
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeFormat, "failed to read header", err)
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrTypeFormat, "failed to read row", err)
		}
		if blankRow(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return NewRawTable(header, rows), nil
}

// parseWorkbook reads the first sheet of an Office Open XML workbook. The first non-empty
// row is the header.
func parseWorkbook(data []byte) (*RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeFormat,
			"failed to open workbook, ensure it is not password protected", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewFormatError("workbook has no sheets", -1)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeFormat, "failed to read sheet "+sheets[0], err)
	}

	headerRow := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, apperrors.NewFormatError("sheet "+sheets[0]+" is empty", -1)
	}

	var body [][]string
	for _, row := range rows[headerRow+1:] {
		if blankRow(row) {
			continue
		}
		body = append(body, row)
	}
	return NewRawTable(rows[headerRow], body), nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

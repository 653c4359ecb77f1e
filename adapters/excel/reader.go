package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"geocausal/domain/core"
	"geocausal/domain/panel"

	"github.com/xuri/excelize/v2"
)

// PanelReader loads country-year panels from Excel and CSV files. Parsed
// panels are memoized per source path and invalidated when the file changes
// on disk; uploaded buffers are never memoized.
type PanelReader struct {
	mu    sync.RWMutex
	cache map[string]cachedPanel
}

type cachedPanel struct {
	panel   *panel.Panel
	modTime time.Time
}

// NewPanelReader creates a reader with an empty memoization cache.
func NewPanelReader() *PanelReader {
	return &PanelReader{cache: make(map[string]cachedPanel)}
}

// ReadPanel loads a panel from a file path, serving a memoized copy when the
// file is unchanged since the last read.
func (r *PanelReader) ReadPanel(path string) (*panel.Panel, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrSourceNotFound, path)
	}

	r.mu.RLock()
	if c, ok := r.cache[path]; ok && c.modTime.Equal(info.ModTime()) {
		r.mu.RUnlock()
		return c.panel, nil
	}
	r.mu.RUnlock()

	table, err := r.readTable(path)
	if err != nil {
		return nil, err
	}
	p, err := buildPanel(path, table)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[path] = cachedPanel{panel: p, modTime: info.ModTime()}
	r.mu.Unlock()

	log.Printf("[PanelReader] loaded %s (%d rows, %d indicators)", path, len(p.Rows), len(p.Indicators()))
	return p, nil
}

// ReadPanelFrom loads a panel from an uploaded buffer. The name determines
// the format by extension (.csv, otherwise xlsx).
func (r *PanelReader) ReadPanelFrom(src io.Reader, name string) (*panel.Panel, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, core.NewLoadError(name, err)
	}

	var table *rawTable
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		table, err = parseCSV(bytes.NewReader(data), name)
	} else {
		table, err = parseXLSXFrom(bytes.NewReader(data), name)
	}
	if err != nil {
		return nil, err
	}
	return buildPanel(name, table)
}

// Invalidate drops the memoized panel for a path. Called when a new source
// replaces the session's dataset.
func (r *PanelReader) Invalidate(path string) {
	r.mu.Lock()
	delete(r.cache, path)
	r.mu.Unlock()
}

func (r *PanelReader) readTable(path string) (*rawTable, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return nil, core.NewLoadError(path, err)
		}
		defer f.Close()
		return parseCSV(f, path)
	}
	return parseXLSX(path)
}

func parseXLSX(path string) (*rawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, core.NewLoadError(path, err)
	}
	defer f.Close()
	return tableFromExcelize(f, path)
}

func parseXLSXFrom(r io.Reader, name string) (*rawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, core.NewLoadError(name, err)
	}
	defer f.Close()
	return tableFromExcelize(f, name)
}

func tableFromExcelize(f *excelize.File, source string) (*rawTable, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrEmptySource, source)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, core.NewLoadError(source, err)
	}
	return tableFromRows(rows, source)
}

func parseCSV(r io.Reader, source string) (*rawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows, cells default to empty
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, core.NewLoadError(source, err)
	}
	return tableFromRows(rows, source)
}

func tableFromRows(rows [][]string, source string) (*rawTable, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: %s", core.ErrEmptySource, source)
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	return &rawTable{Headers: headers, Records: rows[1:]}, nil
}

// buildPanel validates the key columns and coerces indicator cells to
// float64. Rows without a country name or parseable year are rejected at
// load; missing indicator values become NaN and are dropped per-estimation.
func buildPanel(source string, table *rawTable) (*panel.Panel, error) {
	countryIdx := table.columnIndex(panel.KeyCountry)
	yearIdx := table.columnIndex(panel.KeyYear)
	if countryIdx < 0 {
		return nil, fmt.Errorf("%w: %s in %s", core.ErrMissingColumn, panel.KeyCountry, source)
	}
	if yearIdx < 0 {
		return nil, fmt.Errorf("%w: %s in %s", core.ErrMissingColumn, panel.KeyYear, source)
	}

	columns := make([]string, 0, len(table.Headers))
	indicatorIdx := make(map[string]int)
	seen := make(map[string]bool, len(table.Headers))
	for i, h := range table.Headers {
		if h == "" {
			continue
		}
		name := normalizeHeader(h)
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate column %q in %s", core.ErrLoadFailed, name, source)
		}
		seen[name] = true
		columns = append(columns, name)
		if i != countryIdx && i != yearIdx {
			indicatorIdx[name] = i
		}
	}

	rows := make([]panel.Observation, 0, len(table.Records))
	for i := range table.Records {
		country := strings.TrimSpace(table.cell(i, countryIdx))
		if country == "" {
			return nil, fmt.Errorf("%w: empty %s at data row %d in %s", core.ErrLoadFailed, panel.KeyCountry, i+1, source)
		}
		year, err := parseYear(table.cell(i, yearIdx))
		if err != nil {
			return nil, fmt.Errorf("%w: bad %s at data row %d in %s: %v", core.ErrLoadFailed, panel.KeyYear, i+1, source, err)
		}

		values := make(map[string]float64, len(indicatorIdx))
		for name, col := range indicatorIdx {
			values[name] = parseNumeric(table.cell(i, col))
		}
		rows = append(rows, panel.Observation{Country: country, Year: year, Values: values})
	}

	return panel.NewPanel(source, columns, rows), nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty year")
	}
	// Excel numeric cells can render integers as "2015.0"
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
		return int(f), nil
	}
	return strconv.Atoi(s)
}

func parseNumeric(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

package excel

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"geocausal/domain/causal"
	"geocausal/domain/core"
)

// ReadModelTable loads a precomputed causal-results spreadsheet: one row per
// model with columns Model, ATE, CI_low, CI_high and optionally abs_ATE
// (derived when absent). Model names must be unique and every numeric cell
// must parse; a NaN smuggled past the loader would break JSON encoding at
// the API boundary.
func ReadModelTable(path string) ([]causal.ModelRow, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrSourceNotFound, path)
	}
	table, err := readTableFile(path)
	if err != nil {
		return nil, err
	}

	modelIdx := table.columnIndex("Model")
	ateIdx := table.columnIndex("ATE")
	loIdx := table.columnIndex("CI_low")
	hiIdx := table.columnIndex("CI_high")
	absIdx := table.columnIndex("abs_ATE")
	for name, idx := range map[string]int{"Model": modelIdx, "ATE": ateIdx, "CI_low": loIdx, "CI_high": hiIdx} {
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s in %s", core.ErrMissingColumn, name, path)
		}
	}

	seen := make(map[string]bool)
	rows := make([]causal.ModelRow, 0, len(table.Records))
	for i := range table.Records {
		model := strings.TrimSpace(table.cell(i, modelIdx))
		if model == "" {
			return nil, fmt.Errorf("%w: empty Model at data row %d in %s", core.ErrLoadFailed, i+1, path)
		}
		if seen[model] {
			return nil, fmt.Errorf("%w: duplicate Model %q in %s", core.ErrLoadFailed, model, path)
		}
		seen[model] = true

		ate, err := requireNumeric(table.cell(i, ateIdx), "ATE", i, path)
		if err != nil {
			return nil, err
		}
		lo, err := requireNumeric(table.cell(i, loIdx), "CI_low", i, path)
		if err != nil {
			return nil, err
		}
		hi, err := requireNumeric(table.cell(i, hiIdx), "CI_high", i, path)
		if err != nil {
			return nil, err
		}

		row := causal.NewModelRow(model, ate, lo, hi)
		if absIdx >= 0 && strings.TrimSpace(table.cell(i, absIdx)) != "" {
			abs, err := requireNumeric(table.cell(i, absIdx), "abs_ATE", i, path)
			if err != nil {
				return nil, err
			}
			row.AbsATE = abs
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadCATETable loads a precomputed per-observation conditional effect
// spreadsheet. The CATE column is required; gdp_per_capita,
// gov_effectiveness and country enrich heterogeneity displays when present.
// Numeric columns that are present must parse on every row.
func ReadCATETable(path string) ([]causal.CATERow, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrSourceNotFound, path)
	}
	table, err := readTableFile(path)
	if err != nil {
		return nil, err
	}

	cateIdx := table.columnIndex("CATE")
	if cateIdx < 0 {
		return nil, fmt.Errorf("%w: CATE in %s", core.ErrMissingColumn, path)
	}
	gdpIdx := table.columnIndex("gdp_per_capita")
	govIdx := table.columnIndex("gov_effectiveness")
	countryIdx := table.columnIndex("country")

	rows := make([]causal.CATERow, 0, len(table.Records))
	for i := range table.Records {
		cate, err := requireNumeric(table.cell(i, cateIdx), "CATE", i, path)
		if err != nil {
			return nil, err
		}
		row := causal.CATERow{CATE: cate}
		if gdpIdx >= 0 {
			if row.GDPPerCapita, err = requireNumeric(table.cell(i, gdpIdx), "gdp_per_capita", i, path); err != nil {
				return nil, err
			}
		}
		if govIdx >= 0 {
			if row.GovEffectiveness, err = requireNumeric(table.cell(i, govIdx), "gov_effectiveness", i, path); err != nil {
				return nil, err
			}
		}
		if countryIdx >= 0 {
			row.Country = strings.TrimSpace(table.cell(i, countryIdx))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// requireNumeric parses a precomputed-table cell that must hold a number.
// Unlike panel indicators, these cells have no NaN fallback: the tables are
// machine-produced and a gap means the file is broken.
func requireNumeric(raw, column string, row int, path string) (float64, error) {
	v := parseNumeric(raw)
	if math.IsNaN(v) {
		return 0, fmt.Errorf("%w: non-numeric %s at data row %d in %s", core.ErrLoadFailed, column, row+1, path)
	}
	return v, nil
}

func readTableFile(path string) (*rawTable, error) {
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

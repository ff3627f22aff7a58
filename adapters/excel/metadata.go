package excel

import (
	"fmt"
	"math"
	"strings"

	"combosurv/domain/combo"
	"combosurv/domain/core"
)

// Metadata sheet columns.
const (
	ColExperimental  = "Experimental"
	ColControl       = "Control"
	ColCombination   = "Combination"
	ColCorr          = "Corr"
	ColNControl      = "N_control"
	ColNExperimental = "N_experimental"
	ColPath          = "Path"
	ColModel         = "Model"
)

// Metadata is a parsed metadata sheet. Headers keep the input column order so
// result tables can reproduce the input columns before their own.
type Metadata struct {
	Headers []string
	Rows    []combo.Row
}

// ReadMetadata loads a metadata sheet. The Experimental and Control columns
// are required. A row whose cells do not parse is kept with Row.ParseErr set,
// so one bad row never hides the others. Blank enrollment cells read as zero
// and fail later with a specific error; a blank or missing Corr reads as NaN.
// Every input cell is kept in Row.Columns.
func ReadMetadata(path string) (*Metadata, error) {
	sheet, err := ReadSheet(path)
	if err != nil {
		return nil, err
	}
	if err := sheet.Require(ColExperimental, ColControl); err != nil {
		return nil, fmt.Errorf("metadata sheet %s: %w", path, err)
	}

	meta := &Metadata{Headers: sheet.Headers, Rows: make([]combo.Row, len(sheet.Rows))}
	for i, raw := range sheet.Rows {
		meta.Rows[i] = parseRow(i, raw)
	}
	return meta, nil
}

// Has reports whether the sheet carries a column.
func (m *Metadata) Has(column string) bool {
	for _, h := range m.Headers {
		if h == column {
			return true
		}
	}
	return false
}

// Invalid counts rows that failed to parse.
func (m *Metadata) Invalid() int {
	n := 0
	for _, r := range m.Rows {
		if r.ParseErr != nil {
			n++
		}
	}
	return n
}

func parseRow(i int, raw RawRowData) combo.Row {
	row := combo.Row{
		Index:        i,
		Experimental: raw[ColExperimental],
		Control:      raw[ColControl],
		Combination:  raw[ColCombination],
		Path:         raw[ColPath],
		Model:        raw[ColModel],
		Columns:      make(map[string]string, len(raw)),
	}
	for k, v := range raw {
		row.Columns[k] = v
	}
	row.Corr = math.NaN()
	if row.Experimental == "" || row.Control == "" {
		row.ParseErr = fmt.Errorf("%w: row %d: missing drug name", core.ErrInvalidMetadata, i)
		return row
	}

	var err error
	if row.Corr, err = optionalFloat(raw, ColCorr, math.NaN()); err != nil {
		row.ParseErr = fmt.Errorf("%w: row %d: %v", core.ErrInvalidMetadata, i, err)
		return row
	}
	if row.NControl, err = optionalInt(raw, ColNControl); err != nil {
		row.ParseErr = fmt.Errorf("%w: row %d: %v", core.ErrInvalidMetadata, i, err)
		return row
	}
	if row.NExperimental, err = optionalInt(raw, ColNExperimental); err != nil {
		row.ParseErr = fmt.Errorf("%w: row %d: %v", core.ErrInvalidMetadata, i, err)
	}
	return row
}

// optionalFloat parses a numeric cell, returning blank for an empty one.
func optionalFloat(raw RawRowData, col string, blank float64) (float64, error) {
	cell := strings.TrimSpace(raw[col])
	if cell == "" {
		return blank, nil
	}
	v, err := parseFloat(cell)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", col, cell)
	}
	return v, nil
}

// optionalInt accepts integral floats such as "120.0".
func optionalInt(raw RawRowData, col string) (int, error) {
	v, err := optionalFloat(raw, col, 0)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%s %g is not a whole number", col, v)
	}
	return int(v), nil
}

package excel

import (
	"fmt"
	"strconv"
	"strings"

	"combosurv/domain/core"
)

// RawRowData represents a row of raw cell values keyed by header
type RawRowData map[string]string

// Sheet is a tabular file held in memory: headers in file order plus rows.
type Sheet struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Has reports whether the sheet has a column.
func (s *Sheet) Has(column string) bool {
	for _, h := range s.Headers {
		if h == column {
			return true
		}
	}
	return false
}

// Require checks that every named column is present.
func (s *Sheet) Require(columns ...string) error {
	for _, c := range columns {
		if !s.Has(c) {
			return fmt.Errorf("%w: %s", core.ErrColumnNotFound, c)
		}
	}
	return nil
}

// Floats parses a whole column as numbers.
func (s *Sheet) Floats(column string) ([]float64, error) {
	if err := s.Require(column); err != nil {
		return nil, err
	}
	out := make([]float64, len(s.Rows))
	for i, row := range s.Rows {
		v, err := parseFloat(row[column])
		if err != nil {
			return nil, fmt.Errorf("row %d column %s: %w", i, column, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseFloat(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, fmt.Errorf("empty cell")
	}
	return strconv.ParseFloat(cell, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// WriteSheet writes s to path in the format implied by its extension,
// creating parent directories as needed.
func WriteSheet(path string, s *Sheet) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if format == FormatXLSX {
		return writeExcel(path, s)
	}
	return writeDelimited(path, format, s)
}

func writeDelimited(path string, format Format, s *Sheet) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.Comma = format.delimiter()
	if err := w.Write(s.Headers); err != nil {
		return err
	}
	record := make([]string, len(s.Headers))
	for _, row := range s.Rows {
		for j, h := range s.Headers {
			record[j] = row[h]
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

func writeExcel(path string, s *Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(s.Headers))
	for j, h := range s.Headers {
		header[j] = h
	}
	if err := f.SetSheetRow(DefaultSheet, "A1", &header); err != nil {
		return err
	}

	values := make([]interface{}, len(s.Headers))
	for i, row := range s.Rows {
		for j, h := range s.Headers {
			// numbers are stored as numeric cells
			if v, err := parseFloat(row[h]); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
				values[j] = v
			} else {
				values[j] = row[h]
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(DefaultSheet, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

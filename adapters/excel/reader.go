package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"combosurv/domain/core"
	"combosurv/internal"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading CSV, TSV and Excel files
type DataReader struct {
	filePath string
	format   Format
	logger   *internal.Logger
}

// NewDataReader creates a new data reader for path. The format is taken from
// the file extension.
func NewDataReader(filePath string) (*DataReader, error) {
	format, err := FormatFor(filePath)
	if err != nil {
		return nil, err
	}
	return &DataReader{filePath: filePath, format: format, logger: internal.DefaultLogger.With("DataReader")}, nil
}

// ReadSheet is a shorthand for NewDataReader(path).ReadData().
func ReadSheet(path string) (*Sheet, error) {
	r, err := NewDataReader(path)
	if err != nil {
		return nil, err
	}
	return r.ReadData()
}

// ReadData reads the file into a Sheet. A missing file is reported as
// core.ErrNotFound.
func (r *DataReader) ReadData() (*Sheet, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s file %s", core.ErrNotFound, strings.ToUpper(string(r.format)), r.filePath)
	}

	switch r.format {
	case FormatXLSX:
		return r.readExcelData()
	default:
		return r.readDelimitedData()
	}
}

// readExcelData reads the first worksheet of a workbook
func (r *DataReader) readExcelData() (*Sheet, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", r.filePath)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}
	r.logger.Debug("%s read in %.2fms (%d rows)", sheets[0], float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	return r.processRows(rows)
}

// readDelimitedData reads CSV or TSV data
func (r *DataReader) readDelimitedData() (*Sheet, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", r.format, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = r.format.delimiter()
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s file %s: %w", r.format, r.filePath, err)
	}
	r.logger.Debug("%s file read in %.2fms (%d rows)", strings.ToUpper(string(r.format)), float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	return r.processRows(rows)
}

// processRows converts raw string rows into a Sheet
func (r *DataReader) processRows(rows [][]string) (*Sheet, error) {
	if len(rows) < 1 {
		return nil, fmt.Errorf("%s has no header row", r.filePath)
	}

	// Extract headers from first row
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	}

	// Extract data rows, skipping fully blank lines
	dataRows := make([]RawRowData, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		rowData := make(RawRowData, len(headers))
		blank := true

		for j, cell := range row {
			if j < len(headers) {
				cell = strings.TrimSpace(cell)
				rowData[headers[j]] = cell
				if cell != "" {
					blank = false
				}
			}
		}
		if blank {
			continue
		}

		dataRows = append(dataRows, rowData)
	}

	r.logger.Trace("%s processed (%d columns, %d rows)", r.filePath, len(headers), len(dataRows))

	return &Sheet{
		Headers: headers,
		Rows:    dataRows,
	}, nil
}

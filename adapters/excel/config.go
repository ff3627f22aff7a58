package excel

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a tabular file format, chosen by file extension.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// DefaultSheet is the worksheet written to new workbooks.
const DefaultSheet = "Sheet1"

// FormatFor picks the format of path. Metadata sheets are tab separated, so
// .tsv, .tab and .txt all read as TSV.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".tab", ".txt":
		return FormatTSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported table file type: %s", path)
	}
}

func (f Format) delimiter() rune {
	if f == FormatTSV {
		return '\t'
	}
	return ','
}

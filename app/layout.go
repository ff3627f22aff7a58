package app

import (
	"fmt"
	"path/filepath"

	"combosurv/domain/combo"
	"combosurv/internal/config"
)

// Prediction models written by the curve generators.
const (
	ModelHSA        = "ind"
	ModelAdditivity = "add"
)

// Layout resolves the input and output file names of a dataset.
type Layout struct {
	config.Dataset
}

// CurvePath is the digitized curve of a drug: <dir>/<name>.clean.csv.
func (l Layout) CurvePath(dir, name string) string {
	return filepath.Join(dir, name+".clean.csv")
}

// IPDPath is the optional published patient table: <data_dir>/<name>_indiv.csv.
func (l Layout) IPDPath(name string) string {
	return filepath.Join(l.DataDir, name+"_indiv.csv")
}

// PredictionPath is the canonical prediction of a row for a model.
func (l Layout) PredictionPath(row combo.Row, model string) string {
	return filepath.Join(l.PredDir, fmt.Sprintf("%s_combination_predicted_%s.csv", row.Key(), model))
}

// RunPath is one seeded HSA prediction of a row inside dir.
func (l Layout) RunPath(dir string, row combo.Row, seed int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_combination_predicted_%s_run%02d.csv", row.Key(), ModelHSA, seed))
}

// RowDir is where a row's single-agent curves live: its Path column when set,
// otherwise the dataset data_dir.
func (l Layout) RowDir(row combo.Row) string {
	if row.Path != "" {
		return row.Path
	}
	return l.DataDir
}

// Output is a result table under the dataset table_dir.
func (l Layout) Output(suffix string) string {
	return filepath.Join(l.TableDir, fmt.Sprintf("%s_%s", l.Name, suffix))
}

package app

import (
	"combosurv/adapters/excel"
	"combosurv/internal"
	"combosurv/internal/batch"
	"combosurv/internal/config"
	"combosurv/ports"
)

// Deps bundles what every batch service needs. Ledger may be nil.
type Deps struct {
	Config   *config.Config
	Dataset  config.Dataset
	Executor *batch.Executor
	RNG      ports.RNGPort
	Ledger   ports.ResultsRepository
	Logger   *internal.Logger
}

func (d Deps) layout() Layout {
	return Layout{Dataset: d.Dataset}
}

func (d Deps) logger(component string) *internal.Logger {
	if d.Logger == nil {
		return internal.DefaultLogger.With(component)
	}
	return d.Logger.With(component)
}

// loadMetadata checks and reads a metadata sheet. Failures here are setup
// errors and abort the batch before any row runs.
func loadMetadata(kind, path string) (*excel.Metadata, error) {
	if err := config.RequireFile(kind, path); err != nil {
		return nil, err
	}
	return excel.ReadMetadata(path)
}

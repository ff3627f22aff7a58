package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "combosurv/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
table_dir: /tmp/tables
analysis:
  trial_runs: 200
  workers: 8
  row_timeout: 5m
  landmarks: [99, 100]
datasets:
  PFS:
    metadata_sheet: sheets/pfs.txt
    metadata_sheet_seed: sheets/pfs_seed.txt
    data_dir: data/PFS
    pred_dir: predictions/PFS
  waterfall:
    metadata_sheet: sheets/waterfall.txt
    data_dir: data/waterfall
    pred_dir: predictions/waterfall
    table_dir: /tmp/waterfall
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "combosurv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	a := cfg.Analysis
	assert.Equal(t, 5000, a.NIPD)
	assert.Equal(t, 200, a.TrialRuns)
	assert.Equal(t, 100, a.SeedRuns)
	assert.Equal(t, 8, a.Workers)
	assert.Equal(t, 5*time.Minute, a.RowTimeout)
	assert.Equal(t, []int{99, 100}, a.Landmarks)
	assert.InDelta(t, 0.05, a.Alpha, 1e-12)
	assert.InDelta(t, 1.0, a.HRThreshold, 1e-12)
	assert.False(t, cfg.Store.Enabled())
}

func TestDatasetLookup(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	pfs, err := cfg.Dataset("PFS")
	require.NoError(t, err)
	assert.Equal(t, "PFS", pfs.Name)
	assert.Equal(t, "data/PFS", pfs.DataDir)
	assert.Equal(t, "/tmp/tables", pfs.TableDir, "inherits top-level table_dir")

	wf, err := cfg.Dataset("waterfall")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/waterfall", wf.TableDir)

	_, err = cfg.Dataset("rPFS")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))
}

func TestLoadRejectsInvalidKnobs(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero runs", "analysis:\n  trial_runs: 0\n"},
		{"alpha out of range", "analysis:\n  alpha: 1.5\n"},
		{"unknown driver", "store:\n  driver: mysql\n  dsn: x\n"},
		{"driver without dsn", "store:\n  driver: sqlite3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))
}

func TestRequireFile(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "sheet.txt")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0o644))

	assert.NoError(t, RequireFile("metadata sheet", present))
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(RequireFile("metadata sheet", filepath.Join(dir, "nope"))))
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(RequireFile("metadata sheet", "")))
}

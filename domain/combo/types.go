// Package combo models the metadata sheet rows and the per-row outcomes of
// the seed, power and difference batches.
package combo

import (
	"fmt"
	"math"

	"combosurv/domain/core"
	"combosurv/domain/survival"
)

// Arm names a single-agent arm of a combination row.
type Arm string

const (
	ArmControl      Arm = "Control"
	ArmExperimental Arm = "Experimental"
)

// Arms lists arms in the order they are evaluated.
var Arms = []Arm{ArmControl, ArmExperimental}

// Row is one combination entry of the metadata sheet.
type Row struct {
	Index        int    `json:"index"`
	Experimental string `json:"experimental"`
	Control      string `json:"control"`
	Combination  string `json:"combination,omitempty"`
	// Corr is NaN when the sheet has no value for it.
	Corr          float64           `json:"-"`
	NControl      int               `json:"n_control"`
	NExperimental int               `json:"n_experimental"`
	Path          string            `json:"path,omitempty"`
	Model         string            `json:"model,omitempty"`
	Columns       map[string]string `json:"columns,omitempty"`
	// ParseErr is set when a cell of the row could not be read. The row is
	// still listed so every batch can report it as failed.
	ParseErr error `json:"-"`
}

// Correlation returns the Spearman correlation of the two arms, or an input
// error when the row carries none.
func (r Row) Correlation() (float64, error) {
	if math.IsNaN(r.Corr) {
		return 0, fmt.Errorf("%w: row %d: Corr is blank", core.ErrInvalidMetadata, r.Index)
	}
	return r.Corr, nil
}

// Key identifies the experimental/control pair, as used in prediction file names.
func (r Row) Key() string {
	return fmt.Sprintf("%s-%s", r.Experimental, r.Control)
}

// Drug returns the drug name of an arm.
func (r Row) Drug(arm Arm) string {
	if arm == ArmExperimental {
		return r.Experimental
	}
	return r.Control
}

// Enrollment returns the observed enrollment of an arm.
func (r Row) Enrollment(arm Arm) int {
	if arm == ArmExperimental {
		return r.NExperimental
	}
	return r.NControl
}

// TrialSize is the virtual trial size: the larger of the two enrollments.
func (r Row) TrialSize() int {
	if r.NExperimental > r.NControl {
		return r.NExperimental
	}
	return r.NControl
}

// Status marks how a row finished so consumers can tell "no signal" from
// "could not compute".
type Status string

const (
	StatusOK           Status = "ok"
	StatusInconclusive Status = "inconclusive"
	StatusFailed       Status = "failed"
)

// SeedSummary is the seed-stability outcome for a row.
type SeedSummary struct {
	Row       Row     `json:"row"`
	Std       float64 `json:"ind_median_std"`
	MedianRun int     `json:"ind_median_run"`
	Runs      int     `json:"runs"`
	Status    Status  `json:"status"`
	Error     string  `json:"error,omitempty"`
}

// FailedSeedSummary marks a row whose seed analysis could not be computed.
func FailedSeedSummary(row Row, err error) SeedSummary {
	return SeedSummary{Row: row, Std: math.NaN(), MedianRun: -1, Status: StatusFailed, Error: err.Error()}
}

// ArmPower is the predictive power of the prediction against one arm.
type ArmPower struct {
	Arm          Arm                `json:"arm"`
	Probability  float64            `json:"prob_success"`
	Successes    int                `json:"successes"`
	Degenerate   int                `json:"degenerate"`
	Runs         int                `json:"runs"`
	LargeN       survival.CoxResult `json:"large_n"`
	LargeNStatus Status             `json:"large_n_status"`
}

// PowerResult is the predictive-power outcome for a row.
type PowerResult struct {
	Row          Row      `json:"row"`
	Control      ArmPower `json:"control"`
	Experimental ArmPower `json:"experimental"`
	Status       Status   `json:"status"`
	Error        string   `json:"error,omitempty"`
}

// FailedPowerResult marks a row whose simulation could not be computed.
func FailedPowerResult(row Row, err error) PowerResult {
	missing := ArmPower{Probability: math.NaN(), LargeN: survival.Missing(), LargeNStatus: StatusFailed}
	ctrl, exp := missing, missing
	ctrl.Arm, exp.Arm = ArmControl, ArmExperimental
	return PowerResult{Row: row, Control: ctrl, Experimental: exp, Status: StatusFailed, Error: err.Error()}
}

// DiffResult compares the HSA and additivity predictions of a row.
type DiffResult struct {
	Row              Row                `json:"row"`
	ComboControl     float64            `json:"combo_control"`
	HSAControl       float64            `json:"hsa_control"`
	AdditivityHSA    float64            `json:"additivity_hsa"`
	ComboAdditivity  float64            `json:"combo_additivity"`
	AdditivityVersus survival.CoxResult `json:"cox"`
	Status           Status             `json:"status"`
	Error            string             `json:"error,omitempty"`
}

// FailedDiffResult marks a row whose differences could not be computed.
func FailedDiffResult(row Row, err error) DiffResult {
	nan := math.NaN()
	return DiffResult{
		Row:              row,
		ComboControl:     nan,
		HSAControl:       nan,
		AdditivityHSA:    nan,
		ComboAdditivity:  nan,
		AdditivityVersus: survival.Missing(),
		Status:           StatusFailed,
		Error:            err.Error(),
	}
}

package excel

import (
	"strconv"

	"combosurv/domain/combo"
	"combosurv/domain/survival"
)

// Result columns shared by every output table.
const (
	ColStatus = "status"
	ColError  = "error"
)

// Seed sheet columns.
const (
	ColMedianStd = "ind_median_std"
	ColMedianRun = "ind_median_run"
)

// PowerColumns are appended to the metadata columns in the predictive power table.
var PowerColumns = []string{
	"prob_success_exp", "prob_success_ctrl",
	"p_ctrl", "hr_ctrl", "lower_ctrl", "upper_ctrl",
	"p_exp", "hr_exp", "lower_exp", "upper_exp",
	"degenerate_ctrl", "degenerate_exp",
	ColStatus, ColError,
}

// DiffColumns are appended to the metadata columns in the difference table.
var DiffColumns = []string{
	"Combo - Control", "HSA - Control", "Additivity - HSA", "Combo - Additivity",
	"p", "HR", "HRlower", "HRupper",
	ColStatus, ColError,
}

// extend copies the metadata columns of every row and appends the values
// produced by fill. Columns already present in the input are overwritten in
// place rather than duplicated.
func extend(meta *Metadata, columns []string, fill func(i int, out RawRowData)) *Sheet {
	headers := append([]string(nil), meta.Headers...)
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	for _, c := range columns {
		if !present[c] {
			headers = append(headers, c)
		}
	}

	sheet := &Sheet{Headers: headers, Rows: make([]RawRowData, len(meta.Rows))}
	for i, row := range meta.Rows {
		out := make(RawRowData, len(headers))
		for k, v := range row.Columns {
			out[k] = v
		}
		fill(i, out)
		sheet.Rows[i] = out
	}
	return sheet
}

// SeedSheet builds the seed sheet: the metadata plus ind_median_std and
// ind_median_run. Failed rows carry NaN and -1.
func SeedSheet(meta *Metadata, results []combo.SeedSummary) *Sheet {
	return extend(meta, []string{ColMedianStd, ColMedianRun, ColStatus, ColError}, func(i int, out RawRowData) {
		r := results[i]
		out[ColMedianStd] = formatFloat(r.Std)
		out[ColMedianRun] = strconv.Itoa(r.MedianRun)
		out[ColStatus] = string(r.Status)
		out[ColError] = r.Error
	})
}

// PowerSheet builds the predictive power table.
func PowerSheet(meta *Metadata, results []combo.PowerResult) *Sheet {
	return extend(meta, PowerColumns, func(i int, out RawRowData) {
		r := results[i]
		out["prob_success_exp"] = formatFloat(r.Experimental.Probability)
		out["prob_success_ctrl"] = formatFloat(r.Control.Probability)
		putCox(out, "_ctrl", r.Control.LargeN)
		putCox(out, "_exp", r.Experimental.LargeN)
		out["degenerate_ctrl"] = strconv.Itoa(r.Control.Degenerate)
		out["degenerate_exp"] = strconv.Itoa(r.Experimental.Degenerate)
		out[ColStatus] = string(r.Status)
		out[ColError] = r.Error
	})
}

func putCox(out RawRowData, suffix string, res survival.CoxResult) {
	out["p"+suffix] = formatFloat(res.PValue)
	out["hr"+suffix] = formatFloat(res.HazardRatio)
	out["lower"+suffix] = formatFloat(res.Lower)
	out["upper"+suffix] = formatFloat(res.Upper)
}

// DiffSheet builds the additivity/HSA difference table.
func DiffSheet(meta *Metadata, results []combo.DiffResult) *Sheet {
	return extend(meta, DiffColumns, func(i int, out RawRowData) {
		r := results[i]
		out["Combo - Control"] = formatFloat(r.ComboControl)
		out["HSA - Control"] = formatFloat(r.HSAControl)
		out["Additivity - HSA"] = formatFloat(r.AdditivityHSA)
		out["Combo - Additivity"] = formatFloat(r.ComboAdditivity)
		out["p"] = formatFloat(r.AdditivityVersus.PValue)
		out["HR"] = formatFloat(r.AdditivityVersus.HazardRatio)
		out["HRlower"] = formatFloat(r.AdditivityVersus.Lower)
		out["HRupper"] = formatFloat(r.AdditivityVersus.Upper)
		out[ColStatus] = string(r.Status)
		out[ColError] = r.Error
	})
}

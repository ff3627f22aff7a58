package excel

import (
	"fmt"
	"strconv"
	"strings"

	"combosurv/domain/survival"
)

// Column names of curve and patient tables.
const (
	ColTime     = "Time"
	ColSurvival = "Survival"
	ColEvent    = "Event"
)

// ReadCurve loads the Time and Survival columns of a curve table without
// cleaning, so row order and row count are preserved. Extra columns, such as
// a leading index column, are ignored.
func ReadCurve(path string) (survival.Curve, error) {
	sheet, err := ReadSheet(path)
	if err != nil {
		return nil, err
	}
	times, err := sheet.Floats(ColTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	surv, err := sheet.Floats(ColSurvival)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	out := make(survival.Curve, len(times))
	for i := range times {
		out[i] = survival.Point{Time: times[i], Survival: surv[i]}
	}
	return out, nil
}

// WriteCurve writes a Time,Survival table.
func WriteCurve(path string, c survival.Curve) error {
	sheet := &Sheet{Headers: []string{ColTime, ColSurvival}, Rows: make([]RawRowData, len(c))}
	for i, p := range c {
		sheet.Rows[i] = RawRowData{ColTime: formatFloat(p.Time), ColSurvival: formatFloat(p.Survival)}
	}
	return WriteSheet(path, sheet)
}

// ReadIPD loads a patient table with Time and Event columns. Event accepts
// 1/0 and true/false.
func ReadIPD(path string) (survival.Table, error) {
	sheet, err := ReadSheet(path)
	if err != nil {
		return nil, err
	}
	if err := sheet.Require(ColEvent); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	times, err := sheet.Floats(ColTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	out := make(survival.Table, len(times))
	for i, row := range sheet.Rows {
		event, err := parseEvent(row[ColEvent])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i, err)
		}
		out[i] = survival.Record{Time: times[i], Event: event}
	}
	return out, nil
}

// WriteIPD writes a Time,Event table with 1/0 events.
func WriteIPD(path string, t survival.Table) error {
	sheet := &Sheet{Headers: []string{ColTime, ColEvent}, Rows: make([]RawRowData, len(t))}
	for i, r := range t {
		event := "0"
		if r.Event {
			event = "1"
		}
		sheet.Rows[i] = RawRowData{ColTime: formatFloat(r.Time), ColEvent: event}
	}
	return WriteSheet(path, sheet)
}

func parseEvent(cell string) (bool, error) {
	cell = strings.TrimSpace(cell)
	if b, err := strconv.ParseBool(cell); err == nil {
		return b, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return false, fmt.Errorf("event %q is not 0/1", cell)
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("event %q is not 0/1", cell)
}

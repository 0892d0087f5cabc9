package parser

import (
	"fmt"

	"drivers/internal/model"
)

var stopRules = []FieldRule{
	{Field: "plateNumber", Patterns: []string{"rendszam", "plate", "license"}},
	{Field: "arrivalTime", Patterns: []string{"erkezes", "arrival", "idopont", "kezdete"}},
	{Field: "standingDuration", Patterns: []string{"allas", "standing", "idotartam", "duration"}},
	{Field: "position", Patterns: []string{"pozicio", "position", "helyszin", "location", "cim"}},
	{Field: "importantPoint", Patterns: []string{"fontos pont", "fontos", "important"}},
	{Field: "status", Patterns: []string{"statusz", "status", "allapot"}},
}

func extractStops(sc *sheetContext) ([]RowOutcome, error) {
	cm, err := sc.locate(model.KindStopEvents, stopRules)
	if err != nil {
		return nil, err
	}
	if missing := missingFields(cm, "plateNumber", "arrivalTime"); len(missing) > 0 {
		return nil, &NoHeaderFoundError{Sheet: sc.sheet, Kind: model.KindStopEvents, Missing: missing}
	}
	sc.useColumns(cm)
	return extractStopRows(sc, cm), nil
}

// extractStopRows one outcome per row below the header
func extractStopRows(sc *sheetContext, cm ColumnMap) []RowOutcome {
	var outcomes []RowOutcome
	for r := cm.DataStart; r < sc.grid.Height(); r++ {
		if sc.nonDataRow(r) {
			outcomes = append(outcomes, ignored(rowNo(r)))
			continue
		}
		outcomes = append(outcomes, stopRow(sc, cm, r))
	}
	return outcomes
}

func stopRow(sc *sheetContext, cm ColumnMap, r int) RowOutcome {
	row := rowNo(r)
	cell := func(field string) Cell {
		ref, ok := cm.Column(field)
		if !ok {
			return Cell{}
		}
		return sc.grid.Cell(r, ref.Col)
	}

	plateCell := cell("plateNumber")
	if plateCell.IsEmpty() {
		return missingField(row, "plateNumber")
	}
	plate, err := ValidatePlateNumber(plateCell.String())
	if err != nil {
		return skipped(row, "plateNumber", model.CodeInvalidPlateNumber, err.Error())
	}

	arrivalCell := cell("arrivalTime")
	if arrivalCell.IsEmpty() {
		return missingField(row, "arrivalTime")
	}
	arrival, err := NormalizeDateTimeInYear(arrivalCell, sc.year)
	if err != nil {
		return skipped(row, "arrivalTime", dateTimeCode(err), fmt.Sprintf("arrivalTime %q: %v", arrivalCell.String(), err))
	}

	ev := model.StopEvent{
		PlateNumber:    plate,
		ArrivalTime:    arrival,
		Position:       cell("position").String(),
		ImportantPoint: cell("importantPoint").String(),
		Status:         cell("status").String(),
	}
	if standing := cell("standingDuration"); !standing.IsEmpty() {
		d, err := NormalizeDuration(standing)
		if err != nil {
			return skipped(row, "standingDuration", model.CodeInvalidDuration, fmt.Sprintf("standingDuration %q: %v", standing.String(), err))
		}
		ev.StandingDuration = d.Display
	}

	if reason := validateRow(sc.validate, ev); reason != nil {
		return RowOutcome{Row: row, Skip: reason}
	}
	return emitted(row, ev.Record())
}

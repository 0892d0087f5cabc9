package parser

import (
	"errors"
	"fmt"
	"math"

	"drivers/internal/model"
)

// movementRules multilingual iFleet export headers (hu, en, de)
var movementRules = []FieldRule{
	{Field: "plateNumber", Patterns: []string{"rendszam", "plate", "kennzeichen", "license"}},
	{Field: "timestamp", Patterns: []string{"idopont", "timestamp", "time stamp", "datum/ido", "date/time", "datum es ido", "zeitpunkt", "datetime"}},
	{Field: "timeSpent", Patterns: []string{"eltoltott ido", "idotartam", "time spent", "duration", "dauer", "tartozkodas", "allasido"}},
	{Field: "distanceKm", Patterns: []string{"tavolsag", "distance", "megtett", "entfernung", "strecke", "km"}},
	{Field: "date", Patterns: []string{"datum", "date"}},
	{Field: "date", Patterns: []string{"tag"}, Exact: true},
	{Field: "time", Patterns: []string{"ido", "time", "uhrzeit", "zeit"}},
	{Field: "location", Patterns: []string{"helyszin", "location", "cim", "address", "pozicio", "position", "standort"}},
	{Field: "location", Patterns: []string{"ort"}, Exact: true},
	{Field: "driverName", Patterns: []string{"sofor", "vezeto", "driver", "fahrer"}},
	{Field: "event", Patterns: []string{"esemeny", "event", "ereignis", "statusz", "status", "tipus"}},
}

func extractMovements(sc *sheetContext) ([]RowOutcome, error) {
	cm, err := sc.locate(model.KindVehicleMovements, movementRules)
	if err != nil {
		return nil, err
	}
	var missing []string
	if !cm.Has("plateNumber") {
		missing = append(missing, "plateNumber")
	}
	if !cm.Has("timestamp") && !cm.Has("date") {
		missing = append(missing, "timestamp")
	}
	if len(missing) > 0 {
		return nil, &NoHeaderFoundError{Sheet: sc.sheet, Kind: model.KindVehicleMovements, Missing: missing}
	}
	sc.useColumns(cm)

	var outcomes []RowOutcome
	for r := cm.DataStart; r < sc.grid.Height(); r++ {
		if sc.nonDataRow(r) {
			outcomes = append(outcomes, ignored(rowNo(r)))
			continue
		}
		outcomes = append(outcomes, movementRow(sc, cm, r))
	}
	return outcomes, nil
}

func movementRow(sc *sheetContext, cm ColumnMap, r int) RowOutcome {
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

	ts, outcome, ok := movementTimestamp(sc, cm, r, cell)
	if !ok {
		return outcome
	}

	mv := model.VehicleMovement{
		PlateNumber: plate,
		Timestamp:   ts,
		Location:    cell("location").String(),
		DriverName:  cell("driverName").String(),
		Event:       cell("event").String(),
	}
	if spent := cell("timeSpent"); !spent.IsEmpty() {
		d, err := NormalizeDuration(spent)
		if err != nil {
			return skipped(row, "timeSpent", model.CodeInvalidDuration, fmt.Sprintf("timeSpent %q: %v", spent.String(), err))
		}
		mv.TimeSpentMinutes, mv.TimeSpent = &d.Minutes, d.Display
	}
	if dist := cell("distanceKm"); !dist.IsEmpty() {
		km, err := ParseDistance(dist)
		if err != nil {
			return skipped(row, "distanceKm", model.CodeInvalidValue, fmt.Sprintf("distanceKm %q: %v", dist.String(), err))
		}
		km = math.Round(km*1000) / 1000
		mv.DistanceKm = &km
	}

	if reason := validateRow(sc.validate, mv); reason != nil {
		return RowOutcome{Row: row, Skip: reason}
	}
	return emitted(row, mv.Record())
}

// dateTimeCode row error code of a NormalizeDateTime failure
func dateTimeCode(err error) string {
	if errors.Is(err, ErrTimePart) {
		return model.CodeInvalidTime
	}
	return model.CodeInvalidDate
}

// movementTimestamp a timestamp column, else a date column plus an optional time column
func movementTimestamp(sc *sheetContext, cm ColumnMap, r int, cell func(string) Cell) (string, RowOutcome, bool) {
	row := rowNo(r)
	if cm.Has("timestamp") {
		c := cell("timestamp")
		if c.IsEmpty() {
			return "", missingField(row, "timestamp"), false
		}
		ts, err := NormalizeDateTimeInYear(c, sc.year)
		if err != nil {
			return "", skipped(row, "timestamp", dateTimeCode(err), fmt.Sprintf("timestamp %q: %v", c.String(), err)), false
		}
		return ts, RowOutcome{}, true
	}

	dc := cell("date")
	if dc.IsEmpty() {
		return "", missingField(row, "timestamp"), false
	}
	tc := cell("time")
	if tc.IsEmpty() {
		ts, err := NormalizeDateTimeInYear(dc, sc.year)
		if err != nil {
			return "", skipped(row, "timestamp", dateTimeCode(err), fmt.Sprintf("date %q: %v", dc.String(), err)), false
		}
		return ts, RowOutcome{}, true
	}
	date, err := NormalizeDateInYear(dc, sc.year)
	if err != nil {
		return "", skipped(row, "timestamp", model.CodeInvalidDate, fmt.Sprintf("date %q: %v", dc.String(), err)), false
	}
	clock, err := NormalizeTime(tc)
	if err != nil {
		return "", skipped(row, "timestamp", model.CodeInvalidTime, fmt.Sprintf("time %q: %v", tc.String(), err)), false
	}
	return date + " " + clock, RowOutcome{}, true
}

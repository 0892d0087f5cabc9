package parser

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"drivers/internal/model"
)

func attendanceGrid() *Grid {
	return gridOf(
		[]string{"Jelenléti ív 2024. március"},
		[]string{},
		[]string{"Dolgozó neve:", "Kiss Anna", "", "Munkakör:", "gépkocsivezető"},
		[]string{"Költséghely:", "KH-12"},
		[]string{"Dátum", "Tervezett műszak", "Tényleges műszak", "Érkezés/Távozás", "Érkezés/Távozás", "Ledolgozott idő"},
		[]string{"", "", "", "BE", "KI", ""},
		[]string{"03.01", "08-16", "08-16", "08:00", "16:30", "8:30"},
		[]string{"03.02", "08-16", "08-16", "07:55 BE", "16:00 KI", "485"},
		[]string{"03.03", "08-16", "08-16", "17:00 KI", "07:00 BE", ""},
		[]string{"Összesen", "", "", "", "", "25:05"},
	)
}

func TestParseGrid_AttendanceCompoundHeader(t *testing.T) {
	t.Parallel()

	p := New(nil, DefaultProfile())
	res, err := p.ParseGrid(attendanceGrid(), "Jelenlét", model.KindTimeAttendance, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.SuccessCount != 3 || res.ErrorCount != 0 {
		t.Fatalf("success=%d errors=%d (%v)", res.SuccessCount, res.ErrorCount, res.Errors)
	}
	if res.Degraded {
		t.Fatalf("compound header should not degrade: %+v", res.Diagnostics)
	}

	want := model.Record{
		"personName":     "Kiss Anna",
		"jobTitle":       "gépkocsivezető",
		"costCenter":     "KH-12",
		"date":           "2024-03-01",
		"plannedShift":   "08-16",
		"actualShift":    "08-16",
		"checkIn":        "08:00:00",
		"checkOut":       "16:30:00",
		"workedMinutes":  510,
		"workedDuration": "8:30",
	}
	if !reflect.DeepEqual(res.Records[0], want) {
		t.Fatalf("record = %#v\nwant %#v", res.Records[0], want)
	}

	second := res.Records[1]
	if second["checkIn"] != "07:55:00" || second["checkOut"] != "16:00:00" || second["workedDuration"] != "8:05" {
		t.Fatalf("suffixed row = %#v", second)
	}

	// suffix tokens override column order
	third := res.Records[2]
	if third["checkIn"] != "07:00:00" || third["checkOut"] != "17:00:00" {
		t.Fatalf("swapped row = %#v", third)
	}
	if third["workedMinutes"] != 600 {
		t.Fatalf("derived worked minutes = %v", third["workedMinutes"])
	}

	if !reflect.DeepEqual(res.SourceRows, []int{7, 8, 9}) {
		t.Fatalf("source rows = %v", res.SourceRows)
	}
	report := res.Reports[0]
	if report.HeaderRow != 4 || report.Columns["checkIn"] != 3 || report.Columns["checkOut"] != 4 {
		t.Fatalf("report = %+v", report)
	}
}

func TestParseGrid_AttendanceTemplateOffset(t *testing.T) {
	t.Parallel()

	g := gridOf(
		[]string{"Dolgozó neve: Nagy Béla"},
		[]string{"Dátum", "Be/Ki", "", "", "", "", "Ledolgozott"},
		[]string{"03.04", "06:00", "", "", "", "14:00", "8:00"},
	)
	p := New(nil, DefaultProfile())
	res, err := p.ParseGrid(g, "Munkaidő", model.KindTimeAttendance, Options{Year: 2024})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.SuccessCount != 1 {
		t.Fatalf("success=%d errors=%v", res.SuccessCount, res.Errors)
	}
	rec := res.Records[0]
	if rec["personName"] != "Nagy Béla" || rec["date"] != "2024-03-04" {
		t.Fatalf("record = %#v", rec)
	}
	if rec["checkIn"] != "06:00:00" || rec["checkOut"] != "14:00:00" || rec["workedMinutes"] != 480 {
		t.Fatalf("record = %#v", rec)
	}
	if !res.Degraded {
		t.Fatalf("template offsets must mark the result degraded")
	}
	found := false
	for _, d := range res.Diagnostics {
		if d.Strategy == StrategyTemplateOffset && d.Degraded && d.Section == "Nagy Béla" {
			found = true
		}
	}
	if !found {
		t.Fatalf("diagnostics = %+v", res.Diagnostics)
	}
}

func TestParseGrid_AttendanceOffsetsFromProfile(t *testing.T) {
	t.Parallel()

	g := gridOf(
		[]string{"Dolgozó neve: Nagy Béla"},
		[]string{"Dátum", "Be/Ki", "", "", "Ledolgozott"},
		[]string{"2024.03.04", "06:00", "14:00", "", "8:00"},
	)
	profile := DefaultProfile().WithOffsets(0, 1)
	res, err := New(nil, profile).ParseGrid(g, "Munkaidő", model.KindTimeAttendance, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.SuccessCount != 1 || res.Records[0]["checkOut"] != "14:00:00" {
		t.Fatalf("records = %#v errors = %v", res.Records, res.Errors)
	}
}

func TestParseGrid_AttendanceRowResilience(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"Dolgozó neve: Kiss Anna"},
		{"Dátum", "Érkezés", "Távozás"},
	}
	dates := []string{
		"2024.03.01", "2024.03.02", "2024.03.03", "2024.13.45", "2024.03.05",
		"2024.03.06", "2024.03.07", "2024.03.08", "2024.03.09", "2024.03.10",
	}
	for _, d := range dates {
		rows = append(rows, []string{d, "08:00", "16:00"})
	}

	res, err := New(nil, DefaultProfile()).ParseGrid(gridOf(rows...), "Jelenlét", model.KindTimeAttendance, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.SuccessCount != 9 || res.ErrorCount != 1 {
		t.Fatalf("success=%d errors=%d", res.SuccessCount, res.ErrorCount)
	}
	rowErr := res.Errors[0]
	if rowErr.Field != "date" || rowErr.Code != model.CodeInvalidDate || rowErr.Row != 6 {
		t.Fatalf("row error = %+v", rowErr)
	}
	if !strings.Contains(rowErr.Reason, "date") {
		t.Fatalf("reason does not name the field: %q", rowErr.Reason)
	}
}

func TestParseGrid_AttendanceWithoutSections(t *testing.T) {
	t.Parallel()

	_, err := New(nil, DefaultProfile()).ParseGrid(gridOf([]string{"Dátum", "Érkezés", "Távozás"}), "Lap1", model.KindTimeAttendance, Options{})
	var nsf *NoSectionsFoundError
	if !errors.As(err, &nsf) {
		t.Fatalf("error = %v, want NoSectionsFoundError", err)
	}
	if nsf.Sheet != "Lap1" {
		t.Fatalf("sheet = %q", nsf.Sheet)
	}
}

func TestSplitSuffix(t *testing.T) {
	t.Parallel()

	p := DefaultProfile()
	cases := []struct {
		in   string
		text string
		dir  direction
	}{
		{"07:55 BE", "07:55", dirIn},
		{"16:00 (KI)", "16:00", dirOut},
		{"IN 08:00", "08:00", dirIn},
		{"08:00", "08:00", dirNone},
		{"08:00 du.", "08:00 du.", dirNone},
	}
	for _, tc := range cases {
		text, dir := splitSuffix(tc.in, p)
		if text != tc.text || dir != tc.dir {
			t.Fatalf("splitSuffix(%q) = %q, %v; want %q, %v", tc.in, text, dir, tc.text, tc.dir)
		}
	}
}

func TestClockSpan_CrossesMidnight(t *testing.T) {
	t.Parallel()

	d, ok := clockSpan("22:00:00", "06:00:00")
	if !ok || d.Minutes != 480 || d.Display != "8:00" {
		t.Fatalf("clockSpan = %+v, %v", d, ok)
	}
	if _, ok := clockSpan("", "06:00:00"); ok {
		t.Fatalf("missing clock should not span")
	}
}

func TestParseGrid_AttendanceTitleYearBeatsCostCenter(t *testing.T) {
	t.Parallel()

	g := gridOf(
		[]string{"Jelenléti ív 2024. március"},
		[]string{},
		[]string{"Dolgozó neve:", "Kiss Anna"},
		[]string{"Költséghely:", "2019-Szállítás"},
		[]string{"Dátum", "Érkezés", "Távozás"},
		[]string{"03.01", "08:00", "16:00"},
	)
	res, err := New(nil, DefaultProfile()).ParseGrid(g, "Jelenlét", model.KindTimeAttendance, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.SuccessCount != 1 {
		t.Fatalf("success=%d errors=%v", res.SuccessCount, res.Errors)
	}
	if got := res.Records[0]["date"]; got != "2024-03-01" {
		t.Fatalf("date = %v, want 2024-03-01", got)
	}
	if got := res.Records[0]["costCenter"]; got != "2019-Szállítás" {
		t.Fatalf("costCenter = %v", got)
	}
}

func TestSectionYear(t *testing.T) {
	t.Parallel()

	g := gridOf(
		[]string{"Dolgozó neve:", "Kiss Anna", "2023. december"},
		[]string{"Költséghely:", "2019-Szállítás"},
		[]string{"Dátum", "Érkezés", "Távozás"},
	)
	y, ok := SectionYear(g, Section{Start: 0, End: 3, HeaderRow: 2})
	if !ok || y != 2023 {
		t.Fatalf("SectionYear = %d, %v, want 2023", y, ok)
	}

	onlyMeta := gridOf(
		[]string{"Költséghely: 2019-Szállítás"},
		[]string{"Dátum", "Érkezés", "Távozás"},
	)
	if y, ok := SectionYear(onlyMeta, Section{Start: 0, End: 2, HeaderRow: 1}); ok {
		t.Fatalf("SectionYear read %d from a cost center", y)
	}
}

func TestParseGrid_AttendanceCostCenterIsNotAYear(t *testing.T) {
	t.Parallel()

	g := gridOf(
		[]string{"Dolgozó neve:", "Kiss Anna"},
		[]string{"Költséghely:", "2019-Szállítás"},
		[]string{"Dátum", "Érkezés", "Távozás"},
		[]string{"03.01", "08:00", "16:00"},
	)
	res, err := New(nil, DefaultProfile()).ParseGrid(g, "Jelenlét", model.KindTimeAttendance, Options{Year: 2024})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.SuccessCount != 1 || res.Records[0]["date"] != "2024-03-01" {
		t.Fatalf("records = %#v errors = %v", res.Records, res.Errors)
	}
}

func TestTemplateProfile_WithDefaultsKeepsZeroOffsets(t *testing.T) {
	t.Parallel()

	p := TemplateProfile{}.WithOffsets(0, 0).WithDefaults()
	if in, out := p.Offsets(); in != 0 || out != 0 {
		t.Fatalf("offsets = %d/%d, want 0/0", in, out)
	}
	if in, out := (TemplateProfile{}).WithDefaults().Offsets(); in != 0 || out != 4 {
		t.Fatalf("default offsets = %d/%d, want 0/4", in, out)
	}
}

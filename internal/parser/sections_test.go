package parser

import (
	"errors"
	"reflect"
	"testing"
)

func sectionSpec() SectionSpec {
	p := DefaultProfile()
	return SectionSpec{
		StartMarkers:    p.SectionMarkers,
		Terminators:     p.Terminators,
		HeaderTokens:    Tokens(attendanceRules),
		MinMatches:      p.MinMatches,
		BlankRunToClose: p.BlankRunToClose,
	}
}

func TestFindSections_TerminatorAndNextMarker(t *testing.T) {
	t.Parallel()

	rows := make([][]string, 50)
	rows[5] = []string{"Dolgozó neve:", "Kiss Anna"}
	rows[6] = []string{"Dátum", "Érkezés", "Távozás"}
	for r := 7; r < 35; r++ {
		rows[r] = []string{"2024.03.01", "08:00", "16:00"}
	}
	rows[35] = []string{"Összesen", "", "", "160"}
	rows[40] = []string{"Dolgozó neve:", "Nagy Béla"}
	rows[41] = []string{"Dátum", "Érkezés", "Távozás"}
	for r := 42; r < 50; r++ {
		rows[r] = []string{"2024.03.01", "08:00", "16:00"}
	}

	sections, err := FindSections(gridOf(rows...), sectionSpec())
	if err != nil {
		t.Fatalf("find sections: %v", err)
	}
	want := []Section{
		{Start: 5, End: 35, HeaderRow: 6},
		{Start: 40, End: 50, HeaderRow: 41},
	}
	if !reflect.DeepEqual(sections, want) {
		t.Fatalf("sections = %+v, want %+v", sections, want)
	}
}

func TestFindSections_MarkerClosesPreviousAndBlankRun(t *testing.T) {
	t.Parallel()

	g := gridOf(
		[]string{"Dolgozó neve: A"},
		[]string{"Dátum", "Érkezés", "Távozás"},
		[]string{"03.01", "08:00", "16:00"},
		[]string{"Dolgozó neve: B"}, // next marker, no terminator
		[]string{"Dátum", "Érkezés", "Távozás"},
		[]string{"03.01", "08:00", "16:00"},
		[]string{""},
		[]string{"03.02", "08:00", "16:00"}, // one blank row does not close
		[]string{},
		[]string{},
		[]string{},
		[]string{"megjegyzés"},
	)
	sections, err := FindSections(g, sectionSpec())
	if err != nil {
		t.Fatalf("find sections: %v", err)
	}
	want := []Section{
		{Start: 0, End: 3, HeaderRow: 1},
		{Start: 3, End: 8, HeaderRow: 4},
	}
	if !reflect.DeepEqual(sections, want) {
		t.Fatalf("sections = %+v, want %+v", sections, want)
	}
	for _, s := range sections {
		if s.Start >= s.End {
			t.Fatalf("empty section %+v", s)
		}
	}
}

func TestFindSections_NoMarker(t *testing.T) {
	t.Parallel()

	_, err := FindSections(gridOf([]string{"Rendszám", "Érkezés"}), sectionSpec())
	var nsf *NoSectionsFoundError
	if !errors.As(err, &nsf) {
		t.Fatalf("error = %v, want NoSectionsFoundError", err)
	}
}

func TestSectionMetadata_LabelForms(t *testing.T) {
	t.Parallel()

	g := gridOf(
		[]string{"Dolgozó neve", "Dolgozó neve", "Kiss Anna", "Munkakör:", "gépkocsivezető"},
		[]string{"Költséghely: KH-12"},
		[]string{"Dátum", "Érkezés", "Távozás"},
	)
	meta := SectionMetadata(g, Section{Start: 0, End: 3, HeaderRow: 2})
	want := SectionMeta{Name: "Kiss Anna", JobTitle: "gépkocsivezető", CostCenter: "KH-12"}
	if meta != want {
		t.Fatalf("meta = %+v, want %+v", meta, want)
	}
}

func TestLocateHeader_TokenMatchAndDensestFallback(t *testing.T) {
	t.Parallel()

	g := gridOf(
		[]string{"Riport"},
		[]string{"Rendszám", "Érkezés időpont", "Állás", "Pozíció"},
		[]string{"AB-123", "2024.03.01 08:15", "15", "Depot"},
	)
	hm, err := LocateHeader(g, HeaderSpec{Tokens: Tokens(stopRules)})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if hm.Row != 1 || hm.Strategy != StrategyTokenMatch || hm.Degraded {
		t.Fatalf("match = %+v", hm)
	}

	g = gridOf(
		[]string{"cím"},
		[]string{"a", "b", "c", "d"},
		[]string{"1", "2"},
	)
	hm, err = LocateHeader(g, HeaderSpec{Tokens: []string{"rendszám", "érkezés", "állás"}})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if hm.Row != 1 || hm.Strategy != StrategyDensestRow || !hm.Degraded {
		t.Fatalf("fallback match = %+v", hm)
	}

	if _, err := LocateHeader(gridOf(), HeaderSpec{Tokens: []string{"x"}}); err == nil {
		t.Fatalf("empty grid should fail")
	}
}

func TestFirstOf_ReportsTriedStrategies(t *testing.T) {
	t.Parallel()

	a := FirstOf(
		Strategy[int]{Name: "strict", Try: func() (int, bool) { return 0, false }},
		Strategy[int]{Name: "fallback", Degraded: true, Try: func() (int, bool) { return 7, true }},
		Strategy[int]{Name: "never", Try: func() (int, bool) { t.Fatalf("ran after success"); return 0, false }},
	)
	if !a.OK || a.Value != 7 || a.Strategy != "fallback" || !a.Degraded {
		t.Fatalf("attempt = %+v", a)
	}
	if !reflect.DeepEqual(a.Tried, []string{"strict", "fallback"}) {
		t.Fatalf("tried = %v", a.Tried)
	}
}

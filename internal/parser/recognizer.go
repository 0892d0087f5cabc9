package parser

import (
	"strings"

	"drivers/internal/model"
)

// recognitionThreshold minimum score for a specific kind; below it the sheet is generic
const recognitionThreshold = 0.5

// keyField a recognisable column; Pattern alternatives are separated by "|"
type keyField struct {
	Name    string
	Pattern string
}

type kindSignature struct {
	Kind      model.ImportKind
	Fields    []keyField
	SheetName string // sheet name keywords worth a boost
	WholeArea bool   // fields may be spread over several rows (sectioned sheets)
}

var kindSignatures = []kindSignature{
	{
		Kind: model.KindTimeAttendance,
		Fields: []keyField{
			{"date", "datum|date"},
			{"checkIn", "erkezes|belepes|be/ki|check-in|check in"},
			{"checkOut", "tavozas|kilepes|be/ki|check-out|check out"},
			{"shift", "tervezett|tenyleges|beosztott|planned|actual"},
			{"workedMinutes", "ledolgozott|munkaora|worked"},
		},
		SheetName: "jelenlet|munkaido|attendance|timesheet|berszamfejtes",
		WholeArea: true,
	},
	{
		Kind: model.KindStopEvents,
		Fields: []keyField{
			{"plateNumber", "rendszam|plate"},
			{"arrivalTime", "erkezes|arrival"},
			{"standingDuration", "allas|standing"},
			{"position", "pozicio|position|helyszin"},
			{"importantPoint", "fontos|important"},
		},
		SheetName: "riaszt|alert|megallas|stop",
	},
	{
		Kind: model.KindVehicleMovements,
		Fields: []keyField{
			{"plateNumber", "rendszam|plate|kennzeichen"},
			{"timestamp", "idopont|timestamp|datum|date|zeitpunkt"},
			{"distanceKm", "tavolsag|distance|megtett|entfernung|km"},
			{"timeSpent", "eltoltott|idotartam|time spent|duration|dauer"},
			{"location", "helyszin|location|cim|esemeny|event|sofor|driver"},
		},
		SheetName: "ifleet|mozgas|movement|menetlevel|fahrt",
	},
}

// Recognizer import kind recognizer
type Recognizer struct {
	window  int
	markers []string
}

// NewRecognizer creates a recognizer scanning the profile's header window
func NewRecognizer(profile TemplateProfile) *Recognizer {
	profile = profile.WithDefaults()
	return &Recognizer{window: profile.HeaderWindow, markers: foldAll(profile.SectionMarkers)}
}

// Recognize picks the best scoring kind, or generic when no kind reaches the threshold
func (r *Recognizer) Recognize(g *Grid, sheetName string) model.SheetRecognition {
	best := model.SheetRecognition{SheetName: sheetName, Kind: model.KindGeneric, HeaderRow: -1}
	for _, res := range r.Scores(g, sheetName) {
		if res.Score >= recognitionThreshold && res.Score > best.Score {
			best = res
		}
	}
	return best
}

// Scores recognition result of every specific kind
func (r *Recognizer) Scores(g *Grid, sheetName string) []model.SheetRecognition {
	out := make([]model.SheetRecognition, 0, len(kindSignatures))
	for _, sig := range kindSignatures {
		out = append(out, r.score(g, sheetName, sig))
	}
	return out
}

func (r *Recognizer) score(g *Grid, sheetName string, sig kindSignature) model.SheetRecognition {
	to := min(r.window, g.Height())

	bestRow, bestMatched := -1, map[string]bool{}
	area := map[string]bool{}
	for row := 0; row < to; row++ {
		matched := matchKeyFields(g.FoldedRow(row), sig.Fields)
		if len(matched) > len(bestMatched) {
			bestRow, bestMatched = row, matched
		}
		for k := range matched {
			area[k] = true
		}
	}
	matched := bestMatched
	if sig.WholeArea {
		matched = area
	}

	groups := len(sig.Fields)
	total := float64(len(matched))
	if sig.Kind == model.KindTimeAttendance {
		// the section marker is part of the signature
		groups++
		if r.hasMarker(g, to) {
			total++
		}
	}
	confidence := total / float64(groups)

	// sheet name boost
	if ContainsAny(NormalizeLabel(sheetName), strings.Split(sig.SheetName, "|")) && confidence > 0 {
		confidence += 0.2
	}
	if confidence > 1 {
		confidence = 1
	}

	var missing []string
	for _, f := range sig.Fields {
		if !matched[f.Name] {
			missing = append(missing, f.Name)
		}
	}
	return model.SheetRecognition{
		SheetName:     sheetName,
		Kind:          sig.Kind,
		Score:         confidence,
		HeaderRow:     bestRow,
		MissingFields: missing,
	}
}

func (r *Recognizer) hasMarker(g *Grid, to int) bool {
	for row := 0; row < to; row++ {
		for _, c := range g.FoldedRow(row) {
			if c != "" && HasPrefixAny(c, r.markers) {
				return true
			}
		}
	}
	return false
}

func matchKeyFields(cells []string, fields []keyField) map[string]bool {
	matched := make(map[string]bool)
	for _, f := range fields {
		alts := strings.Split(f.Pattern, "|")
		for _, c := range cells {
			if c == "" {
				continue
			}
			if containsAnyLabel(c, alts) {
				matched[f.Name] = true
				break
			}
		}
	}
	return matched
}

func containsAnyLabel(label string, patterns []string) bool {
	for _, p := range patterns {
		if labelContains(label, p) {
			return true
		}
	}
	return false
}

package parser

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyValue = errors.New("empty value")
	ErrNoPattern  = errors.New("no supported pattern matches")
	// ErrTimePart the date parsed but the text after it is not a time of day
	ErrTimePart = errors.New("invalid time part")
)

// minSerialYear earliest year a numeric date cell may map to; smaller serials are
// numbers Excel converted from text such as "03.01"
const minSerialYear = 1990

var (
	isoDateRe   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
	ymdRe       = regexp.MustCompile(`(\d{4})\s*[./]\s*(\d{1,2})\s*[./]\s*(\d{1,2})\.?`)
	dmyRe       = regexp.MustCompile(`(\d{1,2})\s*[./]\s*(\d{1,2})\s*[./]\s*(\d{4})`)
	yymmddRe    = regexp.MustCompile(`^(\d{2})\s*[./-]\s*(\d{1,2})\s*[./-]\s*(\d{1,2})\.?`)
	numericMMDD = regexp.MustCompile(`^\d{1,2}[.,]\d{2}$`)
	mmddRe      = regexp.MustCompile(`^(\d{1,2})\s*[./]\s*(\d{1,2})\.?(?:\s|$|[^\d])`)
	clockRe     = regexp.MustCompile(`^(\d{1,2})[:.](\d{2})(?::(\d{2}))?\s*(am|pm|de\.?|du\.?)?$`)
	anyClockRe  = regexp.MustCompile(`(\d{1,2}):(\d{2})(?::(\d{2}))?`)
	hmRe        = regexp.MustCompile(`^(\d+):(\d{1,2})(?::(\d{1,2}))?$`)
	minutesRe   = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*(?:perc|p|min|mins|minutes?)?\.?$`)
)

// Duration a normalized duration
type Duration struct {
	Minutes int    `json:"minutes"`
	Display string `json:"display"` // H:MM
}

// NewDuration builds a Duration from whole minutes
func NewDuration(minutes int) Duration {
	return Duration{Minutes: minutes, Display: fmt.Sprintf("%d:%02d", minutes/60, minutes%60)}
}

// ExcelSerialToCalendar converts an Excel 1900-system serial to a calendar time,
// honouring the 1900 leap-year bug. The fractional part is the time of day.
func ExcelSerialToCalendar(serial float64) (time.Time, error) {
	if serial < 0 || math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, fmt.Errorf("invalid excel serial %v", serial)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, err
	}
	return t.Round(time.Second), nil
}

// scalar unwraps a Cell into a plain Go value; other values pass through
func scalar(v any) any {
	c, ok := v.(Cell)
	if !ok {
		return v
	}
	switch c.Kind {
	case KindDate:
		return c.Time
	case KindNumber:
		return c.Number
	case KindBool:
		return c.Bool
	case KindString:
		return c.Text
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// NormalizeDate canonical YYYY-MM-DD; 2-digit years fall in the 2000s and partial (MM.DD) dates fail
func NormalizeDate(v any) (string, error) {
	return NormalizeDateInYear(v, 0)
}

// NormalizeDateInYear like NormalizeDate, but YY.MM.DD and MM.DD tokens are
// completed from the reference year (its century, or the year itself)
func NormalizeDateInYear(v any, year int) (string, error) {
	t, err := toDate(v, year)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}

func toDate(v any, year int) (time.Time, error) {
	switch x := scalar(v).(type) {
	case nil:
		return time.Time{}, ErrEmptyValue
	case time.Time:
		if x.IsZero() {
			return time.Time{}, ErrEmptyValue
		}
		return x, nil
	case string:
		t, _, err := findDate(x, year)
		return t, err
	default:
		if f, ok := toFloat(x); ok {
			return serialDate(v, f, year)
		}
	}
	return time.Time{}, fmt.Errorf("%w: %v", ErrNoPattern, v)
}

// serialDate reads an Excel serial. Serials before minSerialYear are rejected unless
// the cell's display text reads as a partial date (3.01 typed as "03.01").
func serialDate(v any, f float64, year int) (time.Time, error) {
	if f < 1 {
		return time.Time{}, fmt.Errorf("serial %v is not a date", f)
	}
	t, err := ExcelSerialToCalendar(f)
	if err != nil {
		return time.Time{}, err
	}
	if t.Year() >= minSerialYear {
		return t, nil
	}
	if c, ok := v.(Cell); ok && numericMMDD.MatchString(c.String()) {
		d, _, err := findDate(strings.Replace(c.String(), ",", ".", 1), year)
		return d, err
	}
	return time.Time{}, fmt.Errorf("serial %v maps to %d, not a plausible date", f, t.Year())
}

// findDate locates a date token in s and returns it with the index where the token ends
func findDate(s string, year int) (time.Time, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, 0, ErrEmptyValue
	}

	if m := isoDateRe.FindStringSubmatchIndex(s); m != nil {
		return buildDate(s, m, 2, 4, 6, 0)
	}
	if m := ymdRe.FindStringSubmatchIndex(s); m != nil {
		return buildDate(s, m, 2, 4, 6, 0)
	}
	if m := dmyRe.FindStringSubmatchIndex(s); m != nil {
		return buildDate(s, m, 6, 4, 2, 0)
	}
	if m := yymmddRe.FindStringSubmatchIndex(s); m != nil {
		century := 2000
		if year > 0 {
			century = year / 100 * 100
		}
		return buildDate(s, m, 2, 4, 6, century)
	}
	if m := mmddRe.FindStringSubmatchIndex(s); m != nil {
		if year <= 0 {
			return time.Time{}, 0, fmt.Errorf("partial date %q needs a year", s)
		}
		month, _ := strconv.Atoi(s[m[2]:m[3]])
		day, _ := strconv.Atoi(s[m[4]:m[5]])
		t, err := validDate(year, month, day)
		return t, m[5], err
	}
	return time.Time{}, 0, fmt.Errorf("%w: %q", ErrNoPattern, s)
}

// buildDate reads y/m/d from submatch groups (offsets into m); yearBase is added to the year group
func buildDate(s string, m []int, yi, mi, di, yearBase int) (time.Time, int, error) {
	y, _ := strconv.Atoi(s[m[yi]:m[yi+1]])
	month, _ := strconv.Atoi(s[m[mi]:m[mi+1]])
	day, _ := strconv.Atoi(s[m[di]:m[di+1]])
	t, err := validDate(y+yearBase, month, day)
	return t, m[1], err
}

func validDate(y, m, d int) (time.Time, error) {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d", y, m, d)
	}
	return t, nil
}

// NormalizeTime canonical HH:mm:ss from a time value, a day fraction or HH:mm[:ss] / locale text
func NormalizeTime(v any) (string, error) {
	switch x := scalar(v).(type) {
	case nil:
		return "", ErrEmptyValue
	case time.Time:
		return x.Format("15:04:05"), nil
	case string:
		return parseClock(x)
	default:
		if f, ok := toFloat(x); ok {
			return fractionToClock(f)
		}
	}
	return "", fmt.Errorf("%w: %v", ErrNoPattern, v)
}

func fractionToClock(f float64) (string, error) {
	if f < 0 {
		return "", fmt.Errorf("negative time %v", f)
	}
	frac := f - math.Floor(f)
	secs := int(math.Round(frac * 86400))
	if secs >= 86400 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60), nil
}

func parseClock(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", ErrEmptyValue
	}
	if m := clockRe.FindStringSubmatch(s); m != nil {
		return buildClock(m[1], m[2], m[3], m[4])
	}
	if m := anyClockRe.FindStringSubmatch(s); m != nil {
		return buildClock(m[1], m[2], m[3], "")
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil && f >= 0 && f < 1 {
		return fractionToClock(f)
	}
	return "", fmt.Errorf("%w: %q", ErrNoPattern, s)
}

func buildClock(hs, ms, ss, meridiem string) (string, error) {
	h, _ := strconv.Atoi(hs)
	m, _ := strconv.Atoi(ms)
	sec := 0
	if ss != "" {
		sec, _ = strconv.Atoi(ss)
	}
	switch strings.TrimSuffix(meridiem, ".") {
	case "pm", "du":
		if h < 12 {
			h += 12
		}
	case "am", "de":
		if h == 12 {
			h = 0
		}
	}
	if h > 23 || m > 59 || sec > 59 {
		return "", fmt.Errorf("invalid time %s:%s", hs, ms)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec), nil
}

// NormalizeDateTime canonical "YYYY-MM-DD HH:mm:ss"; a missing time part is midnight, an unreadable one is an error
func NormalizeDateTime(v any) (string, error) {
	return NormalizeDateTimeInYear(v, 0)
}

// NormalizeDateTimeInYear NormalizeDateTime with a reference year for partial dates
func NormalizeDateTimeInYear(v any, year int) (string, error) {
	switch x := scalar(v).(type) {
	case nil:
		return "", ErrEmptyValue
	case time.Time:
		return x.Format("2006-01-02 15:04:05"), nil
	case string:
		d, end, err := findDate(x, year)
		if err != nil {
			return "", err
		}
		clock := "00:00:00"
		if rest := strings.TrimLeft(strings.TrimSpace(x)[end:], "Tt., \t"); rest != "" {
			c, err := parseClock(rest)
			if err != nil {
				return "", fmt.Errorf("%w %q: %v", ErrTimePart, rest, err)
			}
			clock = c
		}
		return d.Format("2006-01-02") + " " + clock, nil
	default:
		if f, ok := toFloat(x); ok {
			if f < 1 {
				return "", fmt.Errorf("serial %v is not a date", f)
			}
			t, err := serialDate(v, f, year)
			if err != nil {
				return "", err
			}
			return t.Format("2006-01-02 15:04:05"), nil
		}
	}
	return "", fmt.Errorf("%w: %v", ErrNoPattern, v)
}

// NormalizeDuration minutes from a minute count, a fractional day (0 < v < 1) or H:MM[:SS] text
func NormalizeDuration(v any) (Duration, error) {
	if c, ok := v.(Cell); ok && c.Kind == KindDate {
		if c.Number > 0 {
			return NewDuration(int(math.Round(c.Number * 1440))), nil
		}
		return NewDuration(c.Time.Hour()*60 + c.Time.Minute()), nil
	}
	switch x := scalar(v).(type) {
	case nil:
		return Duration{}, ErrEmptyValue
	case time.Time:
		return NewDuration(x.Hour()*60 + x.Minute()), nil
	case string:
		return parseDurationText(x)
	default:
		if f, ok := toFloat(x); ok {
			return durationFromNumber(f)
		}
	}
	return Duration{}, fmt.Errorf("%w: %v", ErrNoPattern, v)
}

func durationFromNumber(f float64) (Duration, error) {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return Duration{}, fmt.Errorf("invalid duration %v", f)
	}
	if f > 0 && f < 1 {
		return NewDuration(int(math.Round(f * 1440))), nil
	}
	return NewDuration(int(math.Round(f))), nil
}

func parseDurationText(s string) (Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Duration{}, ErrEmptyValue
	}
	if m := hmRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		if mins > 59 {
			return Duration{}, fmt.Errorf("invalid duration %q", s)
		}
		total := h*60 + mins
		if m[3] != "" {
			if secs, _ := strconv.Atoi(m[3]); secs >= 30 {
				total++
			}
		}
		return NewDuration(total), nil
	}
	if m := minutesRe.FindStringSubmatch(s); m != nil {
		f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil {
			return Duration{}, err
		}
		return durationFromNumber(f)
	}
	return Duration{}, fmt.Errorf("%w: %q", ErrNoPattern, s)
}

var truthy = map[string]bool{"true": true, "yes": true, "1": true, "y": true, "igen": true, "i": true, "x": true}

// CoerceBoolean accepts true/yes/1/y (and igen/i/x) tokens case-insensitively or raw truthy values
func CoerceBoolean(v any) bool {
	switch x := scalar(v).(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return truthy[strings.ToLower(strings.TrimSpace(x))]
	case time.Time:
		return !x.IsZero()
	default:
		if f, ok := toFloat(x); ok {
			return f != 0
		}
	}
	return false
}

// ParseDistance parses a distance in km, accepting comma decimals, spaces and a "km" unit
func ParseDistance(v any) (float64, error) {
	switch x := scalar(v).(type) {
	case nil:
		return 0, ErrEmptyValue
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		s = strings.TrimSuffix(s, "km")
		s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(s)
		if s == "" {
			return 0, ErrEmptyValue
		}
		comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
		switch {
		case comma >= 0 && dot >= 0 && comma > dot:
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		case comma >= 0 && dot >= 0:
			s = strings.ReplaceAll(s, ",", "")
		case comma >= 0:
			s = strings.Replace(s, ",", ".", 1)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid distance %q", x)
		}
		if f < 0 {
			return 0, fmt.Errorf("negative distance %q", x)
		}
		return f, nil
	default:
		if f, ok := toFloat(x); ok {
			if f < 0 {
				return 0, fmt.Errorf("negative distance %v", f)
			}
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrNoPattern, v)
}

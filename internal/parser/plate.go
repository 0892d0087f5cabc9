package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrPlateDenylisted = errors.New("plate number looks like a header or label")
	ErrPlateShape      = errors.New("plate number has an invalid shape")
)

// plateDenylist header/label fragments that leak into plate columns (folded form)
var plateDenylist = []string{
	"rendszam", "plate", "jarmu", "vehicle", "gepjarmu",
	"osszesen", "total", "datum", "date", "alairas",
}

// ValidatePlateNumber returns the canonical (trimmed, upper-case) plate or an error.
// A plate must contain a hyphen and a letter, be 5-10 characters long and must not
// contain any denylisted label text.
func ValidatePlateNumber(s string) (string, error) {
	plate := strings.ToUpper(whitespaceRe.ReplaceAllString(strings.TrimSpace(s), ""))
	if plate == "" {
		return "", ErrEmptyValue
	}
	if ContainsAny(NormalizeLabel(s), plateDenylist) {
		return "", fmt.Errorf("%w: %q", ErrPlateDenylisted, s)
	}
	if n := utf8.RuneCountInString(plate); n < 5 || n > 10 {
		return "", fmt.Errorf("%w: %q has length %d", ErrPlateShape, s, n)
	}
	if !strings.Contains(plate, "-") {
		return "", fmt.Errorf("%w: %q has no hyphen", ErrPlateShape, s)
	}
	if strings.IndexFunc(plate, unicode.IsLetter) < 0 {
		return "", fmt.Errorf("%w: %q has no letter", ErrPlateShape, s)
	}
	return plate, nil
}

// IsPlateNumber reports whether s passes ValidatePlateNumber
func IsPlateNumber(s string) bool {
	_, err := ValidatePlateNumber(s)
	return err == nil
}

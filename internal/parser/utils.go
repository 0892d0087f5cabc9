package parser

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	yearRe       = regexp.MustCompile(`(?:^|\D)((?:19|20)\d{2})(?:\D|$)`)

	patternCache sync.Map // pattern -> *regexp.Regexp
)

// NormalizeLabel folds a header/label text for matching: trims, collapses
// whitespace, lower-cases and strips accents ("Érkezés  időpont" -> "erkezes idopont").
func NormalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ", "\u00a0", " ").Replace(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return foldAccents(cases.Fold().String(s))
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ContainsAny reports whether text contains any keyword
func ContainsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// HasPrefixAny reports whether text starts with any keyword
func HasPrefixAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.HasPrefix(text, kw) {
			return true
		}
	}
	return false
}

// MatchPattern regexp match with a compiled-pattern cache; invalid patterns never match
func MatchPattern(text, pattern string) bool {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp).MatchString(text)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	patternCache.Store(pattern, re)
	return re.MatchString(text)
}

// ExtractYear finds the first plausible 4-digit year in text
func ExtractYear(text string) (int, bool) {
	m := yearRe.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return y, true
}

func foldAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if f := NormalizeLabel(s); f != "" {
			out = append(out, f)
		}
	}
	return out
}

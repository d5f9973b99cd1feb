// Package composition canonicalizes free-text drug compositions into
// comparable keys. Both keys are pure functions of the input text.
package composition

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const microGram = "\u00b5g"

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reBrackets   = regexp.MustCompile(`[()\[\]{}]`)
	reSeparators = regexp.MustCompile(`[+&,]`)
	// 60,000 and the lakh form 1,00,000 are one number, not a list
	reDigitGroup = regexp.MustCompile(`(\d),(\d{2},)?(\d{3})\b`)

	unitRewrites = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(^|[^a-z])(micrograms?|mcg|ug)\b`), "${1}" + microGram},
		{regexp.MustCompile(`\x{03BC}g`), microGram},
		{regexp.MustCompile(`(^|[^a-z])milligrams?\b`), "${1}mg"},
		{regexp.MustCompile(`(^|[^a-z])millilit(er|re)s?\b`), "${1}ml"},
		{regexp.MustCompile(`(^|[^a-z])(grams?|gms?)\b`), "${1}g"},
		{regexp.MustCompile(`(^|[^a-z])international units?\b`), "${1}iu"},
		{regexp.MustCompile(`(\d)\s+(mg|\x{00B5}g|g|ml|iu|%)($|[^a-z])`), "$1$2$3"},
		{regexp.MustCompile(`\s*/\s*`), "/"},
	}

	reStrength = regexp.MustCompile(`\d+(?:\.\d+)?(?:mg|\x{00B5}g|g|ml|iu|%)(?:/\d*(?:\.\d+)?(?:mg|\x{00B5}g|g|ml|iu|%)?)?`)
)

// Normalize lowercases, folds Unicode compatibility forms, and standardizes
// unit spellings.
func Normalize(text string) string {
	s := norm.NFKC.String(text)
	s = strings.ToLower(s)
	s = reBrackets.ReplaceAllString(s, " ")
	s = reWhitespace.ReplaceAllString(s, " ")
	for reDigitGroup.MatchString(s) {
		s = reDigitGroup.ReplaceAllStringFunc(s, func(m string) string {
			return strings.ReplaceAll(m, ",", "")
		})
	}
	for _, rw := range unitRewrites {
		s = rw.re.ReplaceAllString(s, rw.repl)
	}
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// Key is the order-independent identity of an exact formulation.
func Key(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return joinSorted(reSeparators.Split(Normalize(text), -1), nil)
}

// FamilyKey is Key with strengths stripped, so different strengths of the
// same ingredient combination collapse together.
func FamilyKey(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	strip := func(s string) string {
		return reStrength.ReplaceAllString(s, " ")
	}
	return joinSorted(reSeparators.Split(Normalize(text), -1), strip)
}

// Keys returns both keys; empty input yields empty keys.
func Keys(text string) (key, family string) {
	return Key(text), FamilyKey(text)
}

func joinSorted(parts []string, transform func(string) string) string {
	var tokens []string
	for _, p := range parts {
		if transform != nil {
			p = transform(p)
		}
		p = strings.TrimSpace(reWhitespace.ReplaceAllString(p, " "))
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	sort.Strings(tokens)
	return strings.Join(tokens, "+")
}

package parser

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	reTags       = regexp.MustCompile(`(?s)<[^>]+>`)
	reWhitespace = regexp.MustCompile(`\s+`)
	reListItem   = regexp.MustCompile(`(?is)<li[^>]*>(.*?)</li>`)
	reNumber     = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// extractor pulls a single field out of raw HTML. It reports false when the
// field is absent or empty.
type extractor func(html string) (string, bool)

// firstOf tries each extractor in order and keeps the first non-empty value.
func firstOf(extractors ...extractor) extractor {
	return func(html string) (string, bool) {
		for _, ex := range extractors {
			if v, ok := ex(html); ok {
				return v, true
			}
		}
		return "", false
	}
}

// capture returns the cleaned first submatch of pattern.
func capture(pattern string) extractor {
	re := regexp.MustCompile(pattern)
	return func(html string) (string, bool) {
		m := re.FindStringSubmatch(html)
		if len(m) < 2 {
			return "", false
		}
		v := cleanText(m[1])
		return v, v != ""
	}
}

// section returns the raw first submatch of pattern, markup included.
// Used for lists whose items are split afterwards.
func section(pattern string) extractor {
	re := regexp.MustCompile(pattern)
	return func(html string) (string, bool) {
		m := re.FindStringSubmatch(html)
		if len(m) < 2 || strings.TrimSpace(m[1]) == "" {
			return "", false
		}
		return m[1], true
	}
}

// classText matches the inner text of the first element whose class
// attribute contains fragment. Retailers suffix generated hashes to their
// class names, so only the stable prefix is matched.
func classText(fragment string) extractor {
	return capture(`(?is)class="[^"]*` + regexp.QuoteMeta(fragment) + `[^"]*"[^>]*>(.*?)</(?:div|span|h1|h2|p|a|strong)>`)
}

// labelled matches the text following one of the labels, skipping any tags
// between the label and the value.
func labelled(labels ...string) extractor {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = regexp.QuoteMeta(l)
	}
	return capture(`(?is)(?:` + strings.Join(quoted, "|") + `)\s*:?\s*(?:<[^>]+>\s*)*([^<]{2,200}?)\s*<`)
}

func stripTags(s string) string {
	return reTags.ReplaceAllString(s, " ")
}

func cleanText(s string) string {
	s = html.UnescapeString(stripTags(s))
	s = reWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// listItems splits a list section into its cleaned <li> texts, falling back
// to comma separated text when the section has no list markup.
func listItems(sectionHTML string) []string {
	var items []string
	for _, m := range reListItem.FindAllStringSubmatch(sectionHTML, -1) {
		if v := cleanText(m[1]); v != "" {
			items = append(items, v)
		}
	}
	if len(items) > 0 {
		return items
	}
	for _, part := range strings.Split(cleanText(sectionHTML), ",") {
		if v := strings.TrimSpace(part); v != "" {
			items = append(items, v)
		}
	}
	return items
}

// parsePrice reads the first decimal number in s, ignoring currency
// symbols and thousands separators.
func parsePrice(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	m := reNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

var (
	reNoPrescription = regexp.MustCompile(`(?i)\b(no|not|without)\s+(a\s+)?prescription(\s+is)?(\s+required|\s+needed)?|prescription\s+not\s+required`)
	rePrescription   = regexp.MustCompile(`(?i)prescription\s+(is\s+)?required|requires?\s+(a\s+)?prescription|\brx\s+only\b|\bschedule\s*[-]?\s*(h1|h|x)\b`)
)

// requiresPrescription reports whether the text carries a prescription cue,
// including Indian regulatory schedule markers (H, H1, X).
func requiresPrescription(text string) bool {
	text = cleanText(text)
	if reNoPrescription.MatchString(text) {
		return false
	}
	return rePrescription.MatchString(text)
}

package parser

import (
	"medicine_importer/internal/models"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

var (
	reTitleSeparator = regexp.MustCompile(`\s+[|\-–]\s+`)
	reNameStrength   = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?\s?(?:mg|mcg|µg|μg|g|ml|iu|%)(?:\s?/\s?\d*(?:\.\d+)?\s?(?:mg|ml|g))?)(?:\b|\s|$)`)
	reNamePack       = regexp.MustCompile(`(?i)\b((?:strip|bottle|box|tube|pack|packet|vial|jar) of \d+(?:\.\d+)?\s*(?:tablets?|capsules?|ml|gm?|sachets?|softgels?)?|\d+\s*(?:tablets|capsules|sachets|softgels)|\d+(?:\.\d+)?\s?ml\s+(?:syrup|suspension|solution|drops|bottle))\b`)
	reNameForm       = regexp.MustCompile(`(?i)\b(tablets?|capsules?|syrup|suspension|injection|cream|ointment|gel|drops|inhaler|solution|lotion|powder|sachets?|spray|softgels?)\b`)
	reParenthesized  = regexp.MustCompile(`\(([^()]+)\)`)
	reHasLetters     = regexp.MustCompile(`[A-Za-z]{3,}`)
)

// parseGeneric is the parser of last resort and always returns a record.
// fromURL reports that the page had no title and the name is the url slug.
func parseGeneric(doc *goquery.Document, rawHTML string, pageURL *url.URL) (data models.MedicineData, fromURL bool) {
	title := cleanText(doc.Find("title").First().Text())
	name := title
	if loc := reTitleSeparator.FindStringIndex(title); loc != nil {
		name = strings.TrimSpace(title[:loc[0]])
	}
	if name == "" {
		name = cleanText(doc.Find("h1").First().Text())
	}
	if name == "" && pageURL != nil {
		name = nameFromPath(pageURL.Path)
		fromURL = true
	}

	data = models.MedicineData{
		Name:        name,
		Composition: compositionFromName(name),
		Description: metaContent(doc, "description"),
	}
	if data.Description == "" && pageURL != nil {
		if article, err := readability.FromReader(strings.NewReader(rawHTML), pageURL); err == nil {
			data.Description = cleanText(article.Excerpt)
		}
	}
	return data, fromURL
}

// compositionFromName reads a composition hint such as
// "Telma H (Telmisartan 40mg + Hydrochlorothiazide 12.5mg)".
func compositionFromName(name string) string {
	for _, m := range reParenthesized.FindAllStringSubmatch(name, -1) {
		inner := strings.TrimSpace(m[1])
		if reHasLetters.MatchString(inner) && (reNameStrength.MatchString(inner) || strings.Contains(inner, "+")) {
			return inner
		}
	}
	if strings.Contains(name, "+") {
		hint := reNameForm.ReplaceAllString(name, "")
		hint = reNamePack.ReplaceAllString(hint, "")
		return strings.Trim(reWhitespace.ReplaceAllString(hint, " "), " -,")
	}
	return ""
}

// applyNameHints fills empty dosage, strength, dosage form and pack size
// from the product name.
func applyNameHints(data *models.MedicineData) {
	if m := reNameStrength.FindStringSubmatch(data.Name); m != nil {
		hint := strings.ReplaceAll(strings.ToLower(m[1]), " ", "")
		if data.Dosage == "" {
			data.Dosage = hint
		}
		if data.Strength == "" {
			data.Strength = hint
		}
	}
	if data.DosageForm == "" {
		if m := reNameForm.FindString(data.Name); m != "" {
			data.DosageForm = singular(strings.ToLower(m))
		}
	}
	if data.PackSize == "" {
		if m := reNamePack.FindString(data.Name); m != "" {
			data.PackSize = strings.TrimSpace(m)
		}
	}
}

func singular(form string) string {
	switch form {
	case "tablets", "capsules", "sachets", "softgels":
		return strings.TrimSuffix(form, "s")
	}
	return form
}

func nameFromPath(p string) string {
	base := path.Base(strings.TrimSuffix(p, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(base, "-", " "))
}

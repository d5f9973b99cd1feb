package parser

import (
	"encoding/json"
	"medicine_importer/internal/models"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseJSONLD maps the first Product or Drug object found in any
// application/ld+json block.
func parseJSONLD(doc *goquery.Document) (models.MedicineData, bool) {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &payload); err != nil {
			return true
		}
		found = findProduct(payload)
		return found == nil
	})
	if found == nil {
		return models.MedicineData{}, false
	}

	data := models.MedicineData{
		Name:         cleanText(jsonString(found["name"])),
		Brand:        cleanText(jsonName(found["brand"])),
		Manufacturer: cleanText(jsonName(found["manufacturer"])),
		Description:  cleanText(jsonString(found["description"])),
		ImageURL:     jsonImage(found["image"]),
		GenericName:  cleanText(jsonString(found["nonProprietaryName"])),
		DosageForm:   cleanText(jsonString(found["dosageForm"])),
		Composition:  jsonIngredients(found["activeIngredient"]),
	}
	if data.Price, data.OriginalPrice = jsonOffers(found["offers"]); data.OriginalPrice < data.Price {
		data.OriginalPrice = 0
	}
	if status := jsonString(found["prescriptionStatus"]); strings.Contains(status, "PrescriptionOnly") {
		data.RequiresPrescription = true
	}
	return data, true
}

func findProduct(v any) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if p := findProduct(item); p != nil {
				return p
			}
		}
	case map[string]any:
		if isProductType(node["@type"]) && jsonString(node["name"]) != "" {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return findProduct(graph)
		}
	}
	return nil
}

func isProductType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "Product" || t == "Drug"
	case []any:
		for _, item := range t {
			if isProductType(item) {
				return true
			}
		}
	}
	return false
}

func jsonString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		if len(t) > 0 {
			return jsonString(t[0])
		}
	}
	return ""
}

// jsonName accepts either a bare string or an object with a name.
func jsonName(v any) string {
	if m, ok := v.(map[string]any); ok {
		return jsonString(m["name"])
	}
	if arr, ok := v.([]any); ok && len(arr) > 0 {
		return jsonName(arr[0])
	}
	return jsonString(v)
}

func jsonImage(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if img := jsonImage(item); img != "" {
				return img
			}
		}
	case map[string]any:
		if u := jsonString(t["url"]); u != "" {
			return u
		}
		return jsonString(t["contentUrl"])
	}
	return ""
}

func jsonIngredients(v any) string {
	var names []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if n := cleanText(jsonName(item)); n != "" {
				names = append(names, n)
			}
		}
	default:
		if n := cleanText(jsonName(t)); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, " + ")
}

// jsonOffers returns the offer price and, when present, the list price.
func jsonOffers(v any) (price, original float64) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if p, o := jsonOffers(item); p > 0 {
				return p, o
			}
		}
	case map[string]any:
		for _, key := range []string{"price", "lowPrice"} {
			if p, ok := parsePrice(jsonString(t[key])); ok {
				price = p
				break
			}
		}
		if o, ok := parsePrice(jsonString(t["highPrice"])); ok {
			original = o
		}
		if spec, ok := t["priceSpecification"].(map[string]any); ok && price == 0 {
			price, _ = parsePrice(jsonString(spec["price"]))
		}
	}
	return price, original
}

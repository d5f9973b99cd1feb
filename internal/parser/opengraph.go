package parser

import (
	"medicine_importer/internal/models"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		sel := doc.Find(`meta[property="` + key + `"], meta[name="` + key + `"]`).First()
		if v, ok := sel.Attr("content"); ok {
			if v = cleanText(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// parseOpenGraph succeeds only when og:title is present.
func parseOpenGraph(doc *goquery.Document) (models.MedicineData, bool) {
	title := metaContent(doc, "og:title")
	if title == "" {
		return models.MedicineData{}, false
	}
	data := models.MedicineData{
		Name:        title,
		ImageURL:    metaContent(doc, "og:image", "og:image:url"),
		Description: metaContent(doc, "og:description"),
	}
	if fields := strings.Fields(title); len(fields) > 0 {
		data.Brand = fields[0]
	}
	if p, ok := parsePrice(metaContent(doc, "product:price:amount", "og:price:amount")); ok {
		data.Price = p
	}
	return data, true
}

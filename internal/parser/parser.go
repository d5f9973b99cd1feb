// Package parser turns a product page into a MedicineData draft through a
// cascade of strategies: structured data, OpenGraph, retailer rules and
// finally the page title.
package parser

import (
	"math"
	"medicine_importer/internal/logger"
	"medicine_importer/internal/models"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

type Strategy string

const (
	StrategyJSONLD    Strategy = "json-ld"
	StrategyOpenGraph Strategy = "opengraph"
	StrategyDomain    Strategy = "domain"
	StrategyGeneric   Strategy = "generic"
)

const (
	WarnMissingPrice        = "price not found; defaulted to 0"
	WarnMissingManufacturer = "manufacturer not found"
	WarnMissingComposition  = "composition not found"
	WarnMissingImage        = "image not found"
	WarnMissingName         = "product name not found in page; derived from url"
)

type Result struct {
	Data     models.MedicineData
	Strategy Strategy
	Warnings []string
}

type Parser struct {
	logger *zap.Logger
}

func New(l *zap.Logger) *Parser {
	return &Parser{logger: logger.OrNop(l)}
}

// Parse never fails: when no strategy matches, the generic parser still
// produces a record, possibly holding only a name.
func (p *Parser) Parse(rawHTML, pageURL string) *Result {
	base, _ := url.Parse(pageURL)
	host := ""
	if base != nil {
		host = base.Hostname()
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		p.logger.Warn("html parse failed, continuing with empty document", zap.String("url", pageURL), zap.Error(err))
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}

	rules := rulesFor(host)
	res := &Result{}

	if data, ok := parseJSONLD(doc); ok {
		res.Data, res.Strategy = data, StrategyJSONLD
	} else if data, ok := parseOpenGraph(doc); ok {
		res.Data, res.Strategy = data, StrategyOpenGraph
	} else if data, ok := p.parseDomain(rules, rawHTML); ok {
		res.Data, res.Strategy = data, StrategyDomain
	} else {
		data, fromURL := parseGeneric(doc, rawHTML, base)
		res.Data, res.Strategy = data, StrategyGeneric
		if fromURL {
			res.Warnings = append(res.Warnings, WarnMissingName)
		}
	}

	if rules != nil && res.Strategy != StrategyDomain {
		extra, _ := rules.parse(rawHTML)
		fillEmpty(&res.Data, extra)
	}
	applyNameHints(&res.Data)
	if res.Data.SaltComposition == "" {
		res.Data.SaltComposition = res.Data.Composition
	}
	if res.Data.ImageURL != "" && base != nil {
		if ref, err := base.Parse(res.Data.ImageURL); err == nil {
			res.Data.ImageURL = ref.String()
		}
	}

	res.Warnings = append(res.Warnings, completenessWarnings(&res.Data)...)
	p.logger.Debug("page parsed",
		zap.String("url", pageURL),
		zap.String("strategy", string(res.Strategy)),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res
}

func (p *Parser) parseDomain(rules *domainRules, rawHTML string) (models.MedicineData, bool) {
	if rules == nil {
		return models.MedicineData{}, false
	}
	return rules.parse(rawHTML)
}

// completenessWarnings reports the fields a reviewer has to fill in later.
func completenessWarnings(data *models.MedicineData) []string {
	var warnings []string
	if data.Price <= 0 {
		data.Price = 0
		warnings = append(warnings, WarnMissingPrice)
	}
	if data.Manufacturer == "" {
		warnings = append(warnings, WarnMissingManufacturer)
	}
	if data.Composition == "" {
		warnings = append(warnings, WarnMissingComposition)
	}
	if data.ImageURL == "" {
		warnings = append(warnings, WarnMissingImage)
	}
	return warnings
}

// fillEmpty copies fields from src into dst where dst has no value.
func fillEmpty(dst *models.MedicineData, src models.MedicineData) {
	setString := func(d *string, s string) {
		if *d == "" {
			*d = s
		}
	}
	setFloat := func(d *float64, s float64) {
		if *d == 0 {
			*d = s
		}
	}
	setString(&dst.Name, src.Name)
	setString(&dst.Brand, src.Brand)
	setString(&dst.GenericName, src.GenericName)
	setString(&dst.Manufacturer, src.Manufacturer)
	setFloat(&dst.Price, src.Price)
	setFloat(&dst.OriginalPrice, src.OriginalPrice)
	setFloat(&dst.DiscountPercent, src.DiscountPercent)
	setString(&dst.Description, src.Description)
	setString(&dst.PackSize, src.PackSize)
	setString(&dst.Dosage, src.Dosage)
	setString(&dst.Strength, src.Strength)
	setString(&dst.DosageForm, src.DosageForm)
	setString(&dst.Composition, src.Composition)
	setString(&dst.SaltComposition, src.SaltComposition)
	setString(&dst.ImageURL, src.ImageURL)
	if len(dst.Uses) == 0 {
		dst.Uses = src.Uses
	}
	if len(dst.SideEffects) == 0 {
		dst.SideEffects = src.SideEffects
	}
	dst.RequiresPrescription = dst.RequiresPrescription || src.RequiresPrescription
}

func roundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

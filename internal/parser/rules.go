package parser

import (
	"medicine_importer/internal/models"
	"strings"
)

// domainRules holds the ordered extractors for one retailer.
type domainRules struct {
	name         extractor
	salt         extractor
	price        extractor
	mrp          extractor
	discount     extractor
	manufacturer extractor
	image        extractor
	uses         extractor
	sideEffects  extractor
	strength     extractor
	dosageForm   extractor
	packSize     extractor
}

// Shared fallbacks used after the retailer specific patterns.
var (
	anyH1            = capture(`(?is)<h1[^>]*>(.*?)</h1>`)
	rupeePrice       = capture(`(?is)(?:₹|&#8377;|Rs\.?)\s*(?:<!--\s*-->)?\s*([\d,]+(?:\.\d+)?)`)
	mrpPrice         = capture(`(?is)MRP\s*:?\s*(?:<[^>]+>\s*)*(?:₹|&#8377;|Rs\.?)\s*(?:<[^>]+>\s*)*([\d,]+(?:\.\d+)?)`)
	percentOff       = capture(`(?i)(\d+(?:\.\d+)?)\s*%\s*off`)
	labelledStrength = labelled("Strength")
	labelledForm     = labelled("Dosage Form", "Product Form")
	packOf           = capture(`(?i)((?:strip|bottle|box|tube|packet|vial|pack|jar|sachet) of [^<]{1,40}?)\s*<`)
)

var oneMGRules = &domainRules{
	name: firstOf(
		classText("DrugHeader__title-content"),
		classText("ProductTitle__product-title"),
		anyH1,
	),
	salt: firstOf(
		capture(`(?is)class="[^"]*saltInfo[^"]*"[^>]*>(.*?)</div>`),
		labelled("Salt Composition", "Composition"),
	),
	price: firstOf(
		classText("DrugPriceBox__price"),
		classText("PriceBoxPlanOption__offer-price"),
		rupeePrice,
	),
	mrp: firstOf(
		classText("DrugPriceBox__slashed-price"),
		classText("PriceBoxPlanOption__stike"),
		mrpPrice,
	),
	discount: firstOf(
		classText("DrugPriceBox__slashed-percent"),
		percentOff,
	),
	manufacturer: firstOf(
		capture(`(?is)DrugHeader__meta-title[^"]*"[^>]*>\s*(?:Manufacturer|Marketer)\s*</div>\s*<div[^>]*>(.*?)</div>`),
		labelled("Manufacturer", "Marketer", "Marketed by"),
	),
	image: firstOf(
		capture(`(?is)<img[^>]+class="[^"]*(?:DrugHeader__image|Carousel|ProductImage)[^"]*"[^>]*\ssrc="([^"]+)"`),
		capture(`(?is)<img[^>]+src="([^"]+)"[^>]*class="[^"]*(?:DrugHeader__image|Carousel|ProductImage)`),
		capture(`(?is)(https://onemg\.gumlet\.io/[^"'\s)]+)`),
	),
	uses: firstOf(
		section(`(?is)class="[^"]*DrugOverview__uses[^"]*"[^>]*>(.*?)</ul>`),
		section(`(?is)Uses of [^<]*</h2>(.*?)</ul>`),
	),
	sideEffects: firstOf(
		section(`(?is)Common side effects of [^<]*</[^>]+>(.*?)</ul>`),
		section(`(?is)Side effects of [^<]*</h2>(.*?)</ul>`),
	),
	strength:   labelledStrength,
	dosageForm: labelledForm,
	packSize: firstOf(
		classText("DrugPriceBox__quantity"),
		classText("PackSizeLabel__single-packsize"),
		packOf,
	),
}

var pharmEasyRules = &domainRules{
	name: firstOf(
		classText("ProductTitle_title"),
		classText("MedicineOverviewSection_medicineName"),
		anyH1,
	),
	salt: firstOf(
		classText("ProductTitle_composition"),
		labelled("Contains", "Composition"),
	),
	price: firstOf(
		classText("PriceInfo_ourPrice"),
		classText("ProductPriceContainer_mrpValue"),
		rupeePrice,
	),
	mrp: firstOf(
		classText("PriceInfo_striked"),
		classText("PriceInfo_originalMrp"),
		mrpPrice,
	),
	discount: firstOf(
		classText("PriceInfo_gcdDiscountPercent"),
		percentOff,
	),
	manufacturer: firstOf(
		classText("ProductTitle_manufacturer"),
		labelled("Manufacturer", "Marketer", "Marketed by"),
	),
	image: firstOf(
		capture(`(?is)(https://cdn01\.pharmeasy\.in/dam/products[^"'\s)]+)`),
		capture(`(?is)<img[^>]+class="[^"]*ProductImage[^"]*"[^>]*\ssrc="([^"]+)"`),
	),
	uses: firstOf(
		section(`(?is)id="uses"[^>]*>(.*?)</ul>`),
		section(`(?is)Uses of [^<]*</h2>(.*?)</ul>`),
	),
	sideEffects: firstOf(
		section(`(?is)id="sideEffects"[^>]*>(.*?)</ul>`),
		section(`(?is)Side effects of [^<]*</h2>(.*?)</ul>`),
	),
	strength:   labelledStrength,
	dosageForm: labelledForm,
	packSize: firstOf(
		classText("ProductTitle_measurementUnit"),
		packOf,
	),
}

// rulesByDomain lists the retailers with a dedicated parser.
var rulesByDomain = map[string]*domainRules{
	"1mg.com":      oneMGRules,
	"pharmeasy.in": pharmEasyRules,
}

func rulesFor(host string) *domainRules {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for domain, rules := range rulesByDomain {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return rules
		}
	}
	return nil
}

// parse runs every field extractor. It succeeds only when a name was found;
// the other fields are returned either way so a caller can fill gaps.
func (r *domainRules) parse(html string) (models.MedicineData, bool) {
	var data models.MedicineData
	data.Name, _ = r.name(html)

	if salt, ok := r.salt(html); ok {
		data.SaltComposition = salt
		data.Composition = salt
	}
	if v, ok := r.price(html); ok {
		data.Price, _ = parsePrice(v)
	}
	if v, ok := r.mrp(html); ok {
		data.OriginalPrice, _ = parsePrice(v)
	}
	if v, ok := r.discount(html); ok {
		data.DiscountPercent, _ = parsePrice(v)
	}
	if data.DiscountPercent == 0 && data.OriginalPrice > data.Price && data.Price > 0 {
		data.DiscountPercent = roundTo((data.OriginalPrice-data.Price)/data.OriginalPrice*100, 1)
	}
	data.Manufacturer, _ = r.manufacturer(html)
	data.ImageURL, _ = r.image(html)
	if v, ok := r.uses(html); ok {
		data.Uses = listItems(v)
	}
	if v, ok := r.sideEffects(html); ok {
		data.SideEffects = listItems(v)
	}
	data.Strength, _ = r.strength(html)
	data.DosageForm, _ = r.dosageForm(html)
	data.PackSize, _ = r.packSize(html)
	data.RequiresPrescription = requiresPrescription(html)

	return data, data.Name != ""
}

package parser

import (
	"medicine_importer/internal/models"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oneMGPage = `<html><head><title>Dolo 650 Tablet: View Uses, Side Effects, Price | 1mg</title></head><body>
<h1 class="DrugHeader__title-content___2ZaPo">Dolo 650 Tablet</h1>
<div class="DrugHeader__meta___B3BcU">
  <div class="DrugHeader__meta-title___22zXC">Manufacturer</div>
  <div class="DrugHeader__meta-value___vqYM0"><a href="/manufacturer/micro-labs">Micro Labs Ltd</a></div>
</div>
<div class="saltInfo DrugHeader__meta-value___vqYM0"><a href="/generics/paracetamol">Paracetamol (650mg)</a></div>
<div class="DrugPriceBox__price___dj2lv">₹<!-- -->30.91</div>
<span class="DrugPriceBox__slashed-price___2UGqd">₹<!-- -->33.6</span>
<span class="DrugPriceBox__slashed-percent___3kQRv">8% off</span>
<div class="DrugPriceBox__quantity___2LGBX">strip of 15 tablets</div>
<img class="DrugHeader__image___1Xt5x" src="https://onemg.gumlet.io/images/dolo.jpg"/>
<div class="DrugOverview__uses___1jmC3"><ul><li>Fever</li><li>Pain relief</li></ul></div>
<h2>Side effects of Dolo 650</h2><ul><li>Nausea</li><li>Vomiting</li></ul>
<div class="DrugHeader__prescription">Prescription Required</div>
</body></html>`

const pharmEasyPage = `<html><head><title>Crocin Advance | PharmEasy</title></head><body>
<h1 class="ProductTitle_title__4xNB5">Crocin Advance Tablet 500mg</h1>
<div class="ProductTitle_manufacturer__9x7Jd">GlaxoSmithKline Pharmaceuticals Ltd</div>
<div class="ProductTitle_composition__1h8b3">Paracetamol (500mg)</div>
<div class="PriceInfo_ourPrice__jFYXr">₹18.9</div>
<span class="PriceInfo_striked__fmcJv">MRP ₹21</span>
<div class="ProductTitle_measurementUnit__Jd2Wq">Strip Of 20 Tablets</div>
<img class="ProductImage_img__Xs2" src="https://cdn01.pharmeasy.in/dam/products/123/crocin.jpg"/>
</body></html>`

func TestParseJSONLD(t *testing.T) {
	p := New(nil)

	tests := []struct {
		name string
		html string
		want models.MedicineData
	}{
		{
			name: "product with numeric price",
			html: `<script type="application/ld+json">{"@context":"https://schema.org","@type":"Product","name":"Paracetamol 650","offers":{"@type":"Offer","price":20}}</script>`,
			want: models.MedicineData{Name: "Paracetamol 650", Price: 20},
		},
		{
			name: "graph with typed array and offer array",
			html: `<script type="application/ld+json">{"@graph":[{"@type":"WebPage","name":"Home"},{"@type":["Product","Thing"],"name":"Azee 500 Tablet","brand":{"@type":"Brand","name":"Azee"},"manufacturer":{"name":"Cipla Ltd"},"offers":[{"price":"₹119.50"}],"image":{"url":"/img/azee.png"},"description":"Antibiotic"}]}</script>`,
			want: models.MedicineData{
				Name:         "Azee 500 Tablet",
				Brand:        "Azee",
				Manufacturer: "Cipla Ltd",
				Price:        119.5,
				Description:  "Antibiotic",
				ImageURL:     "https://shop.example.com/img/azee.png",
				Strength:     "",
				DosageForm:   "tablet",
			},
		},
		{
			name: "drug with active ingredients",
			html: `<script type="application/ld+json">[{"@type":"Drug","name":"Telma H","nonProprietaryName":"Telmisartan/Hydrochlorothiazide","activeIngredient":["Telmisartan 40mg","Hydrochlorothiazide 12.5mg"],"prescriptionStatus":"https://schema.org/PrescriptionOnly","dosageForm":"Tablet","offers":{"lowPrice":"98"},"image":["https://cdn.example.com/telma.jpg"]}]</script>`,
			want: models.MedicineData{
				Name:                 "Telma H",
				GenericName:          "Telmisartan/Hydrochlorothiazide",
				Composition:          "Telmisartan 40mg + Hydrochlorothiazide 12.5mg",
				SaltComposition:      "Telmisartan 40mg + Hydrochlorothiazide 12.5mg",
				DosageForm:           "Tablet",
				RequiresPrescription: true,
				Price:                98,
				ImageURL:             "https://cdn.example.com/telma.jpg",
			},
		},
		{
			name: "skips broken blocks",
			html: `<script type="application/ld+json">{not json</script><script type="application/ld+json">{"@type":"Product","name":"Shelcal 500"}</script>`,
			want: models.MedicineData{Name: "Shelcal 500"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Parse("<html><head>"+tt.html+"</head></html>", "https://shop.example.com/p/1")
			require.Equal(t, StrategyJSONLD, res.Strategy)
			if diff := cmp.Diff(tt.want, res.Data, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseJSONLDPriceWarning(t *testing.T) {
	res := New(nil).Parse(`<script type="application/ld+json">{"@type":"Product","name":"Paracetamol 650","offers":{"price":20}}</script>`, "https://example.org/x")

	assert.Equal(t, "Paracetamol 650", res.Data.Name)
	assert.Equal(t, 20.0, res.Data.Price)
	assert.NotContains(t, res.Warnings, WarnMissingPrice)
}

func TestParseOpenGraph(t *testing.T) {
	html := `<html><head>
<meta property="og:title" content="Volini Pain Relief Spray 40g">
<meta property="og:image" content="https://cdn.example.com/volini.jpg">
<meta property="og:description" content="Fast relief from muscle pain">
<meta property="product:price:amount" content="199.00">
</head></html>`

	res := New(nil).Parse(html, "https://example.com/volini")

	require.Equal(t, StrategyOpenGraph, res.Strategy)
	assert.Equal(t, "Volini Pain Relief Spray 40g", res.Data.Name)
	assert.Equal(t, "Volini", res.Data.Brand)
	assert.Equal(t, 199.0, res.Data.Price)
	assert.Equal(t, "40g", res.Data.Strength)
	assert.Equal(t, "40g", res.Data.Dosage)
	assert.Equal(t, "spray", res.Data.DosageForm)
	assert.Equal(t, "Fast relief from muscle pain", res.Data.Description)
	assert.NotContains(t, res.Warnings, WarnMissingImage)
}

func TestParseOpenGraphNeedsTitle(t *testing.T) {
	html := `<html><head><title>Plain page</title><meta property="og:image" content="https://cdn.example.com/x.jpg"></head></html>`

	res := New(nil).Parse(html, "https://example.com/x")
	assert.Equal(t, StrategyGeneric, res.Strategy)
}

func TestParseOneMG(t *testing.T) {
	res := New(nil).Parse(oneMGPage, "https://www.1mg.com/drugs/dolo-650-tablet-74467")

	require.Equal(t, StrategyDomain, res.Strategy)
	want := models.MedicineData{
		Name:                 "Dolo 650 Tablet",
		Manufacturer:         "Micro Labs Ltd",
		Price:                30.91,
		OriginalPrice:        33.6,
		DiscountPercent:      8,
		PackSize:             "strip of 15 tablets",
		DosageForm:           "tablet",
		RequiresPrescription: true,
		Composition:          "Paracetamol (650mg)",
		SaltComposition:      "Paracetamol (650mg)",
		Uses:                 []string{"Fever", "Pain relief"},
		SideEffects:          []string{"Nausea", "Vomiting"},
		ImageURL:             "https://onemg.gumlet.io/images/dolo.jpg",
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, res.Warnings)
}

func TestParsePharmEasy(t *testing.T) {
	res := New(nil).Parse(pharmEasyPage, "https://pharmeasy.in/online-medicine-order/crocin-advance-500mg-12345")

	require.Equal(t, StrategyDomain, res.Strategy)
	assert.Equal(t, "Crocin Advance Tablet 500mg", res.Data.Name)
	assert.Equal(t, "GlaxoSmithKline Pharmaceuticals Ltd", res.Data.Manufacturer)
	assert.Equal(t, "Paracetamol (500mg)", res.Data.Composition)
	assert.Equal(t, 18.9, res.Data.Price)
	assert.Equal(t, 21.0, res.Data.OriginalPrice)
	assert.Equal(t, 10.0, res.Data.DiscountPercent)
	assert.Equal(t, "500mg", res.Data.Strength)
	assert.Equal(t, "Strip Of 20 Tablets", res.Data.PackSize)
	assert.Equal(t, "https://cdn01.pharmeasy.in/dam/products/123/crocin.jpg", res.Data.ImageURL)
	assert.False(t, res.Data.RequiresPrescription)
}

func TestParseFillsFromDomainRules(t *testing.T) {
	html := strings.Replace(oneMGPage, "<head>",
		`<head><script type="application/ld+json">{"@type":"Product","name":"Dolo-650 Tablet 15's","offers":{"price":"31"}}</script>`, 1)

	res := New(nil).Parse(html, "https://www.1mg.com/drugs/dolo-650-tablet-74467")

	require.Equal(t, StrategyJSONLD, res.Strategy)
	assert.Equal(t, "Dolo-650 Tablet 15's", res.Data.Name)
	assert.Equal(t, 31.0, res.Data.Price)
	assert.Equal(t, "Micro Labs Ltd", res.Data.Manufacturer)
	assert.Equal(t, "Paracetamol (650mg)", res.Data.Composition)
	assert.Equal(t, []string{"Fever", "Pain relief"}, res.Data.Uses)
}

func TestParseGeneric(t *testing.T) {
	t.Run("name from title with warnings", func(t *testing.T) {
		html := `<html><head><title>Crocin Advance Tablet | HealthStore</title></head><body><p>Buy now</p></body></html>`

		res := New(nil).Parse(html, "https://healthstore.example/crocin")

		assert.Equal(t, StrategyGeneric, res.Strategy)
		assert.Equal(t, "Crocin Advance Tablet", res.Data.Name)
		assert.Equal(t, 0.0, res.Data.Price)
		assert.Equal(t, "tablet", res.Data.DosageForm)
		assert.Contains(t, res.Warnings, WarnMissingPrice)
		assert.Contains(t, res.Warnings, WarnMissingManufacturer)
		assert.Contains(t, res.Warnings, WarnMissingComposition)
		assert.Contains(t, res.Warnings, WarnMissingImage)
	})

	t.Run("composition hint from name", func(t *testing.T) {
		html := `<title>Telma H Tablet (Telmisartan 40mg + Hydrochlorothiazide 12.5mg) - Shop</title>`

		res := New(nil).Parse(html, "https://shop.example/telma-h")

		assert.Equal(t, "Telma H Tablet (Telmisartan 40mg + Hydrochlorothiazide 12.5mg)", res.Data.Name)
		assert.Equal(t, "Telmisartan 40mg + Hydrochlorothiazide 12.5mg", res.Data.Composition)
		assert.Equal(t, "40mg", res.Data.Strength)
		assert.NotContains(t, res.Warnings, WarnMissingComposition)
	})

	t.Run("garbage input", func(t *testing.T) {
		res := New(nil).Parse("<<<>>>\x00", "https://shop.example/products/pain-balm")

		assert.Equal(t, StrategyGeneric, res.Strategy)
		assert.Equal(t, "pain balm", res.Data.Name)
		assert.Contains(t, res.Warnings, WarnMissingName)
	})
}

func TestFirstOf(t *testing.T) {
	never := func(string) (string, bool) { return "", false }
	ex := firstOf(never, capture(`id="a">([^<]*)<`), capture(`id="b">([^<]*)<`))

	v, ok := ex(`<i id="b">second</i><i id="a">first</i>`)
	assert.True(t, ok)
	assert.Equal(t, "first", v)

	v, ok = ex(`<i id="b">  spaced   out </i>`)
	assert.True(t, ok)
	assert.Equal(t, "spaced out", v)

	_, ok = ex(`<i id="a">   </i>`)
	assert.False(t, ok)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"₹ 1,249.50", 1249.5, true},
		{"Rs. 30", 30, true},
		{"MRP ₹21", 21, true},
		{"free", 0, false},
		{"0", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePrice(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRequiresPrescription(t *testing.T) {
	tests := map[string]bool{
		"<span>Prescription Required</span>":   true,
		"This is a Schedule H1 drug":           true,
		"schedule-x":                           true,
		"Rx only":                              true,
		"No prescription required":             false,
		"Available over the counter":           false,
		"Scheduled delivery in 2 hours":        false,
		"<div>Prescription not required</div>": false,
	}
	for in, want := range tests {
		assert.Equal(t, want, requiresPrescription(in), in)
	}
}

func TestListItems(t *testing.T) {
	assert.Equal(t, []string{"Fever", "Headache"}, listItems("<ul><li> Fever </li><li>Headache</li><li> </li></ul>"))
	assert.Equal(t, []string{"Nausea", "Rash"}, listItems("<p>Nausea, Rash</p>"))
}

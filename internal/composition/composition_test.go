package composition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Paracetamol   500 MG ", "paracetamol 500mg"},
		{"Cyanocobalamin 1500mcg", "cyanocobalamin 1500µg"},
		{"Cyanocobalamin 1500 μg", "cyanocobalamin 1500µg"},
		{"Cyanocobalamin 1500 µg", "cyanocobalamin 1500µg"},
		{"Amoxycillin (500 milligrams)", "amoxycillin 500mg"},
		{"Lactulose 10 gm / 15 mL", "lactulose 10g/15ml"},
		{"Ambroxol 30mg/5ml", "ambroxol 30mg/5ml"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestKeyIsOrderIndependent(t *testing.T) {
	variants := []string{
		"Paracetamol 500mg + Caffeine 30mg",
		"Caffeine 30mg, Paracetamol 500mg",
		"caffeine 30 mg & paracetamol 500 mg",
		"Paracetamol (500mg)+Caffeine (30mg)",
	}
	want := Key(variants[0])
	assert.Equal(t, "caffeine 30mg+paracetamol 500mg", want)
	for _, v := range variants[1:] {
		assert.Equal(t, want, Key(v), v)
	}
}

func TestFamilyKeyIgnoresStrength(t *testing.T) {
	a, b := "Amoxicillin 250mg", "Amoxicillin 500mg"

	assert.Equal(t, FamilyKey(a), FamilyKey(b))
	assert.Equal(t, "amoxicillin", FamilyKey(a))
	assert.NotEqual(t, Key(a), Key(b))

	assert.Equal(t,
		FamilyKey("Amoxycillin 500mg + Clavulanic Acid 125mg"),
		FamilyKey("Clavulanic Acid 62.5mg, Amoxycillin 250 mg"))
	assert.Equal(t, "ambroxol", FamilyKey("Ambroxol 30mg/5ml"))
}

func TestThousandsSeparators(t *testing.T) {
	key, family := Keys("Vitamin D3 60,000 IU")
	assert.Equal(t, "vitamin d3 60000iu", key)
	assert.Equal(t, "vitamin d3", family)
	assert.Equal(t, key, Key("Vitamin D3 60000 IU"))
	assert.Equal(t, family, FamilyKey("Vitamin D3 1000 IU"))

	assert.Equal(t, "vitamin a 100000iu", Normalize("Vitamin A 1,00,000 IU"))
	assert.Equal(t, "caffeine 30mg+paracetamol 500mg", Key("Paracetamol 500mg,Caffeine 30mg"))
}

func TestEmptyComposition(t *testing.T) {
	key, family := Keys("   ")
	assert.Empty(t, key)
	assert.Empty(t, family)

	key, family = Keys(" + , ")
	assert.Empty(t, key)
	assert.Empty(t, family)
}

func TestKeysDeterministic(t *testing.T) {
	text := "Telmisartan 40mg + Hydrochlorothiazide 12.5mg"
	k1, f1 := Keys(text)
	k2, f2 := Keys(text)
	assert.Equal(t, k1, k2)
	assert.Equal(t, f1, f2)
	assert.Equal(t, "hydrochlorothiazide+telmisartan", f1)
}

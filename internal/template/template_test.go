package template

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	awa := Contact{
		FirstName: "Awa",
		LastName:  "Diop",
		Phone:     "221770000001",
		Fields: map[string]string{
			"discount":   "20%",
			"Produit":    "Thiakry",
			"student":    "Moussa",
			"class_name": "",
			"classe":     "CM2",
			"entreprise": "",
			"order_id":   "A-42",
		},
	}

	tests := []struct {
		name      string
		tmpl      string
		contact   Contact
		signature string
		want      string
	}{
		{"identity", "Bonjour {first_name} {last_name}", awa, "SHOP", "Bonjour Awa Diop"},
		{"direct field", "-{discount} aujourd'hui", awa, "SHOP", "-20% aujourd'hui"},
		{"alias case-insensitive", "Essayez {product_name}", awa, "SHOP", "Essayez Thiakry"},
		{"empty primary falls to alias", "{student_name} en {class_name}", awa, "SHOP", "Moussa en CM2"},
		{"company falls back to signature", "- {company}", awa, "SHOP", "- SHOP"},
		{"missing field renders empty", "Code: {promo_code}.", awa, "SHOP", "Code: ."},
		{"unknown kept verbatim", "Hi {nickname}", awa, "SHOP", "Hi {nickname}"},
		{"alias name is not itself a token", "{order_id} / {order_number}", awa, "SHOP", "{order_id} / A-42"},
		{"no tokens", "Plain text, no braces", awa, "SHOP", "Plain text, no braces"},
		{"empty contact", "{first_name}|{company}", Contact{}, "", "|"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.tmpl, tt.contact, tt.signature))
		})
	}
}

func TestRender_Idempotent(t *testing.T) {
	c := Contact{FirstName: "Fatou", Fields: map[string]string{"discount": "10%"}}
	tmpl := "Hello {first_name}, {discount} off {unknown_token} from {company}"

	once := Render(tmpl, c, "ACME")
	twice := Render(once, c, "ACME")
	assert.Equal(t, once, twice)
}

func TestRender_CaseInsensitiveFieldIsStable(t *testing.T) {
	c := Contact{Fields: map[string]string{
		"Discount": "5%",
		"DISCOUNT": "10%",
		"dIsCoUnT": "15%",
	}}
	for i := 0; i < 100; i++ {
		assert.Equal(t, "Save 10%", Render("Save {discount}", c, ""))
	}

	c.Fields["discount"] = "20%"
	assert.Equal(t, "Save 20%", Render("Save {discount}", c, ""), "exact key wins")

	c.Fields = map[string]string{"DISCOUNT": " ", "Discount": "5%"}
	assert.Equal(t, "Save 5%", Render("Save {discount}", c, ""), "blank values are skipped")
}

func TestRender_Concurrent(t *testing.T) {
	c := Contact{FirstName: "Ibou"}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "Hi Ibou", Render("Hi {first_name}", c, ""))
		}()
	}
	wg.Wait()
}

func TestPlaceholdersAndUnknown(t *testing.T) {
	tmpl := "{first_name} {foo} {discount} {first_name} {bar_baz}"
	assert.Equal(t, []string{"first_name", "discount"}, Placeholders(tmpl))
	assert.Equal(t, []string{"foo", "bar_baz"}, Unknown(tmpl))
	assert.Empty(t, Unknown("{company}"))
}

func TestCatalogIsValid(t *testing.T) {
	require.NoError(t, buildCatalog())
	for _, name := range Tokens() {
		_, ok := byName[name]
		assert.True(t, ok, name)
		assert.NotNil(t, byName[name].resolve, name)
	}
}

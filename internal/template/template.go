// Package template expands campaign message templates per recipient.
package template

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Contact is the subset of a contact record visible to placeholders.
type Contact struct {
	FirstName string
	LastName  string
	Phone     string
	Group     string
	Fields    map[string]string
}

// field returns the first non-empty value among names. An exact key wins;
// otherwise keys are matched case-insensitively in sorted order, so
// "DISCOUNT" is preferred over "Discount".
func (c Contact) field(names ...string) string {
	var keys []string
	for _, name := range names {
		if v := strings.TrimSpace(c.Fields[name]); v != "" {
			return v
		}
		if keys == nil {
			for k := range c.Fields {
				keys = append(keys, k)
			}
			slices.Sort(keys)
		}
		for _, k := range keys {
			if v := strings.TrimSpace(c.Fields[k]); strings.EqualFold(k, name) && v != "" {
				return v
			}
		}
	}
	return ""
}

type resolver func(c Contact, signature string) string

// token describes one placeholder: its name and the contact fields tried in order.
type token struct {
	name    string
	aliases []string
	resolve resolver
}

func fromFields(names ...string) resolver {
	return func(c Contact, _ string) string { return c.field(names...) }
}

var catalog = []token{
	// contact identity
	{name: "first_name", aliases: []string{"firstname", "prenom"}, resolve: func(c Contact, _ string) string {
		if c.FirstName != "" {
			return c.FirstName
		}
		return c.field("first_name", "firstname", "prenom")
	}},
	{name: "last_name", aliases: []string{"lastname", "nom"}, resolve: func(c Contact, _ string) string {
		if c.LastName != "" {
			return c.LastName
		}
		return c.field("last_name", "lastname", "nom")
	}},
	{name: "full_name", resolve: func(c Contact, _ string) string {
		return strings.TrimSpace(c.FirstName + " " + c.LastName)
	}},
	{name: "phone", resolve: func(c Contact, _ string) string { return c.Phone }},
	{name: "group", resolve: func(c Contact, _ string) string { return c.Group }},
	{name: "company", aliases: []string{"company_name", "entreprise"}, resolve: func(c Contact, signature string) string {
		if v := c.field("company", "company_name", "entreprise"); v != "" {
			return v
		}
		return signature
	}},

	// marketing
	{name: "discount", aliases: []string{"discount_rate", "reduction"}},
	{name: "product_name", aliases: []string{"product", "produit"}},
	{name: "promo_code", aliases: []string{"code_promo", "coupon"}},
	{name: "expiry_date", aliases: []string{"expiration_date", "valid_until"}},
	{name: "store_name", aliases: []string{"shop", "boutique"}},
	{name: "price", aliases: []string{"prix"}},

	// transactional
	{name: "order_number", aliases: []string{"order_id", "commande"}},
	{name: "tracking_number", aliases: []string{"tracking_id"}},
	{name: "delivery_date", aliases: []string{"date_livraison"}},
	{name: "amount", aliases: []string{"montant", "total"}},
	{name: "appointment_date", aliases: []string{"rdv", "appointment"}},
	{name: "reference", aliases: []string{"ref"}},

	// academic
	{name: "student_name", aliases: []string{"student", "eleve"}},
	{name: "class_name", aliases: []string{"class", "classe"}},
	{name: "school_name", aliases: []string{"school", "ecole"}},
	{name: "grade", aliases: []string{"note", "average"}},
	{name: "exam_date", aliases: []string{"date_examen"}},
	{name: "parent_name", aliases: []string{"parent", "guardian"}},
}

var (
	tokenPattern = regexp.MustCompile(`\{[a-z_]+\}`)
	byName       map[string]token
)

func init() {
	if err := buildCatalog(); err != nil {
		panic(err)
	}
}

// buildCatalog fills byName and rejects duplicate or unresolvable tokens.
func buildCatalog() error {
	byName = make(map[string]token, len(catalog))
	seen := make(map[string]string)
	for i, t := range catalog {
		if t.name == "" {
			return fmt.Errorf("template catalog entry %d has no name", i)
		}
		if !tokenPattern.MatchString("{" + t.name + "}") {
			return fmt.Errorf("template token %q is not a valid placeholder name", t.name)
		}
		for _, n := range append([]string{t.name}, t.aliases...) {
			if owner, dup := seen[n]; dup {
				return fmt.Errorf("template token %q: name %q already used by %q", t.name, n, owner)
			}
			seen[n] = t.name
		}
		if t.resolve == nil {
			t.resolve = fromFields(append([]string{t.name}, t.aliases...)...)
			catalog[i] = t
		}
		byName[t.name] = t
	}
	return nil
}

// Render substitutes every recognised placeholder in tmpl for contact.
// Unknown placeholders stay verbatim; {company} falls back to signature.
func Render(tmpl string, contact Contact, signature string) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	return tokenPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		t, ok := byName[match[1:len(match)-1]]
		if !ok {
			return match
		}
		return t.resolve(contact, signature)
	})
}

// Placeholders lists the recognised tokens used in tmpl, in first-seen order.
func Placeholders(tmpl string) []string {
	return collect(tmpl, true)
}

// Unknown lists placeholder-shaped tokens in tmpl that the catalog does not know.
func Unknown(tmpl string) []string {
	return collect(tmpl, false)
}

func collect(tmpl string, known bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range tokenPattern.FindAllString(tmpl, -1) {
		name := m[1 : len(m)-1]
		if _, ok := byName[name]; ok != known || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Tokens returns the catalog's placeholder names.
func Tokens() []string {
	names := make([]string, 0, len(catalog))
	for _, t := range catalog {
		names = append(names, t.name)
	}
	return names
}

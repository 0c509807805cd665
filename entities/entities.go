package entities

type Category string

const (
	CategoryMain   Category = "main"
	CategoryAccent Category = "accent"
	CategoryLatex  Category = "latex"
	CategoryWeight Category = "weight"
)

// Categories lists every bundle slot in display and validation order.
var Categories = []Category{CategoryMain, CategoryAccent, CategoryLatex, CategoryWeight}

// ParseCategory maps the catalog's "Bundle Category" tag onto a slot.
func ParseCategory(tag string) (Category, bool) {
	switch tag {
	case "Main":
		return CategoryMain, true
	case "Accent":
		return CategoryAccent, true
	case "Latex":
		return CategoryLatex, true
	case "Weight":
		return CategoryWeight, true
	}
	return "", false
}

type RangeRule struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type CountRule struct {
	Count int `json:"count"`
}

type BundleRules struct {
	Main         RangeRule `json:"main"`
	Accent       CountRule `json:"accent"`
	Latex        CountRule `json:"latex"`
	Weight       CountRule `json:"weight"`
	AllowNumbers bool      `json:"allowNumbers"`
	MixedAllowed bool      `json:"mixedAllowed"`
}

// Count returns the exact-count requirement for accent, latex and weight.
func (r BundleRules) Count(c Category) int {
	switch c {
	case CategoryAccent:
		return r.Accent.Count
	case CategoryLatex:
		return r.Latex.Count
	case CategoryWeight:
		return r.Weight.Count
	}
	return 0
}

type BundleTemplate struct {
	NK    string      `json:"nk"`
	Name  string      `json:"name"`
	Price float64     `json:"price"`
	Rules BundleRules `json:"rules"`
}

type TemplateSummary struct {
	NK    string  `json:"nk"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type BundleProduct struct {
	Id        string   `json:"id"`
	NK        *string  `json:"nk"`
	Name      string   `json:"name"`
	VariantId *string  `json:"variantId"`
	Category  Category `json:"category"`
	ImageUrl  *string  `json:"imageUrl"`
}

type ProductsByCategory struct {
	Main   []BundleProduct `json:"main"`
	Accent []BundleProduct `json:"accent"`
	Latex  []BundleProduct `json:"latex"`
	Weight []BundleProduct `json:"weight"`
}

func (p *ProductsByCategory) List(c Category) []BundleProduct {
	switch c {
	case CategoryMain:
		return p.Main
	case CategoryAccent:
		return p.Accent
	case CategoryLatex:
		return p.Latex
	case CategoryWeight:
		return p.Weight
	}
	return nil
}

func (p *ProductsByCategory) Append(prod BundleProduct) {
	switch prod.Category {
	case CategoryMain:
		p.Main = append(p.Main, prod)
	case CategoryAccent:
		p.Accent = append(p.Accent, prod)
	case CategoryLatex:
		p.Latex = append(p.Latex, prod)
	case CategoryWeight:
		p.Weight = append(p.Weight, prod)
	}
}

type BundleConfig struct {
	Template BundleTemplate     `json:"template"`
	Products ProductsByCategory `json:"products"`
}

type CatalogProduct struct {
	Id     string   `json:"id"`
	Name   string   `json:"name"`
	Price  any      `json:"price"`
	Sku    any      `json:"sku"`
	Images []string `json:"images"`
}

type DeliveryWindow struct {
	Id        string  `json:"id"`
	Label     any     `json:"label"`
	Value     any     `json:"value"`
	Zip       *string `json:"zip"`
	Available bool    `json:"available"`
}

type ServiceArea struct {
	Zip       string  `json:"zip"`
	InService bool    `json:"inService"`
	Territory *string `json:"territory"`
}

type Territory struct {
	Zip       *string `json:"zip"`
	Territory *string `json:"territory"`
}

// Cart

type LineType string

const (
	LineProduct LineType = "product"
	LineBundle  LineType = "bundle"
)

type ProductRef struct {
	Sku       string `json:"sku,omitempty"`
	VariantId string `json:"variantId,omitempty"`
}

type BundleItem struct {
	Id        string   `json:"id"`
	NK        string   `json:"nk"`
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	VariantId string   `json:"variantId,omitempty"`
}

type BundlePayload struct {
	BundleId   string       `json:"bundleId"`
	TemplateNK string       `json:"templateNK"`
	Items      []BundleItem `json:"items"`
	Summary    []string     `json:"summary"`
	Notes      string       `json:"notes"`
}

type CartLineItem struct {
	Id       string         `json:"id"`
	Type     LineType       `json:"type"`
	Name     string         `json:"name"`
	Price    float64        `json:"price"`
	Quantity int            `json:"quantity"`
	ImageUrl *string        `json:"imageUrl"`
	Product  *ProductRef    `json:"product"`
	Bundle   *BundlePayload `json:"bundle"`
}

// CartDraft is an add-to-cart request before normalisation. Quantity and
// price arrive loosely typed from clients.
type CartDraft struct {
	Id       string         `json:"id,omitempty"`
	Type     LineType       `json:"type"`
	Name     string         `json:"name,omitempty"`
	Price    any            `json:"price,omitempty"`
	Quantity any            `json:"quantity,omitempty"`
	ImageUrl *string        `json:"imageUrl,omitempty"`
	Product  *ProductRef    `json:"product,omitempty"`
	Bundle   *BundlePayload `json:"bundle,omitempty"`
}

// BundlePatch replaces the bundle payload fields of an existing line.
// Nil fields are left untouched.
type BundlePatch struct {
	Items   []BundleItem
	Summary []string
	Notes   *string
}

type CartResponse struct {
	Items    []CartLineItem `json:"items"`
	Subtotal float64        `json:"subtotal"`
	TotalQty int            `json:"totalQty"`
}

type Validation struct {
	Valid    bool     `json:"valid"`
	Messages []string `json:"messages"`
}

type Checkout struct {
	Url     string   `json:"url"`
	Skipped []string `json:"skipped"`
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ballunia/entities"
	"ballunia/models"
)

const (
	tableTemplates = "Bundle Templates"
	tableProducts  = "Product"
	tableImages    = "Product Images"

	fieldTemplateNK   = "Bundle Template NK"
	fieldImageAttach  = "Image (Attachment)"
	fieldProductName  = "Product Name"
	fieldProductSku   = "BX SKU"
	fieldProductImgs  = "Product Images"
	fieldVariantId    = "SQ Variant ID"
	fieldBundleCat    = "Bundle Category"
	fieldRetailPrice  = "Retail Price"
	debugProductLimit = 5
)

// BundleProductRow is a bundle-eligible product before its image is resolved.
type BundleProductRow struct {
	Product  entities.BundleProduct
	ImageRef string
}

type CatalogRepository interface {
	ListTemplates(ctx context.Context) ([]entities.TemplateSummary, error)
	FindTemplate(ctx context.Context, nk string) (tmpl entities.BundleTemplate, exists bool, err error)
	ListBundleProducts(ctx context.Context) ([]BundleProductRow, error)
	ImageUrl(ctx context.Context, imageRecordId string) (*string, error)
	ListProducts(ctx context.Context) ([]entities.CatalogProduct, error)
	SampleProducts(ctx context.Context) ([]models.AirtableRecord, error)
}

type CatalogRepo struct {
	at *AirtableClient
}

func NewCatalogRepository(client *AirtableClient) (CatalogRepository, error) {
	if client == nil {
		return nil, errors.New("client must be non-nil")
	}
	return &CatalogRepo{at: client}, nil
}

func (c *CatalogRepo) ListTemplates(ctx context.Context) ([]entities.TemplateSummary, error) {
	records, err := c.at.List(ctx, tableTemplates, ListParams{
		Fields: []string{fieldTemplateNK, "Name", "Price"},
		Sort:   []SortField{{Field: "Name", Direction: "asc"}},
	})
	if err != nil {
		return nil, fmt.Errorf("ListTemplates: %w", err)
	}
	templates := make([]entities.TemplateSummary, 0, len(records))
	for _, r := range records {
		nk, _ := stringField(r.Fields, fieldTemplateNK)
		name, _ := stringField(r.Fields, "Name")
		templates = append(templates, entities.TemplateSummary{
			NK:    nk,
			Name:  name,
			Price: numberField(r.Fields, "Price"),
		})
	}
	return templates, nil
}

func (c *CatalogRepo) FindTemplate(ctx context.Context, nk string) (tmpl entities.BundleTemplate, exists bool, err error) {
	records, e := c.at.FirstPage(ctx, tableTemplates, ListParams{
		Formula:    fmt.Sprintf("{%s} = %s", fieldTemplateNK, QuoteFormulaString(nk)),
		MaxRecords: 1,
	})
	if e != nil {
		err = fmt.Errorf("FindTemplate: %w", e)
		return
	}
	if len(records) == 0 {
		return
	}
	exists = true
	f := records[0].Fields
	tmpl.NK, _ = stringField(f, fieldTemplateNK)
	tmpl.Name, _ = stringField(f, "Name")
	tmpl.Price = numberField(f, "Price")
	tmpl.Rules = entities.BundleRules{
		Main: entities.RangeRule{
			Min: intField(f, "Main Balloon Min"),
			Max: intField(f, "Main Balloon Max"),
		},
		Accent:       entities.CountRule{Count: intField(f, "Accent Balloon Count")},
		Latex:        entities.CountRule{Count: intField(f, "Latex Balloon Count")},
		Weight:       entities.CountRule{Count: intField(f, "Weight Count")},
		AllowNumbers: boolField(f, "Allow Numbers"),
		MixedAllowed: boolField(f, "Mixed Allowed"),
	}
	return
}

// ListBundleProducts returns bundle-eligible products in upstream order.
// Products with an unknown category tag are dropped.
func (c *CatalogRepo) ListBundleProducts(ctx context.Context) ([]BundleProductRow, error) {
	records, err := c.at.List(ctx, tableProducts, ListParams{
		Formula: "{Bundle Eligible} = TRUE()",
	})
	if err != nil {
		return nil, fmt.Errorf("ListBundleProducts: %w", err)
	}
	rows := make([]BundleProductRow, 0, len(records))
	for _, r := range records {
		tag, _ := stringField(r.Fields, fieldBundleCat)
		cat, ok := entities.ParseCategory(tag)
		if !ok {
			continue
		}
		name, _ := stringField(r.Fields, fieldProductName)
		row := BundleProductRow{
			Product: entities.BundleProduct{
				Id:        r.Id,
				NK:        optionalString(r.Fields, fieldProductSku),
				Name:      name,
				VariantId: optionalString(r.Fields, fieldVariantId),
				Category:  cat,
			},
		}
		if refs := stringSliceField(r.Fields, fieldProductImgs); len(refs) > 0 {
			row.ImageRef = refs[0]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ImageUrl resolves the first attachment of an image record, upgraded to https.
func (c *CatalogRepo) ImageUrl(ctx context.Context, imageRecordId string) (*string, error) {
	rec, err := c.at.Find(ctx, tableImages, imageRecordId)
	if err != nil {
		return nil, fmt.Errorf("ImageUrl: %w", err)
	}
	atts, err := attachmentsField(rec.Fields, fieldImageAttach)
	if err != nil {
		return nil, fmt.Errorf("ImageUrl: %w", err)
	}
	if len(atts) == 0 || atts[0].Url == "" {
		return nil, nil
	}
	u := atts[0].Url
	if strings.HasPrefix(u, "http://") {
		u = "https://" + strings.TrimPrefix(u, "http://")
	}
	return &u, nil
}

func (c *CatalogRepo) ListProducts(ctx context.Context) ([]entities.CatalogProduct, error) {
	records, err := c.at.List(ctx, tableProducts, ListParams{})
	if err != nil {
		return nil, fmt.Errorf("ListProducts: %w", err)
	}
	products := make([]entities.CatalogProduct, 0, len(records))
	for _, r := range records {
		name, _ := stringField(r.Fields, fieldProductName)
		images := []string{}
		if refs := stringSliceField(r.Fields, fieldProductImgs); len(refs) > 0 {
			images, err = c.imageUrls(ctx, refs)
			if err != nil {
				return nil, fmt.Errorf("ListProducts: %w", err)
			}
		}
		products = append(products, entities.CatalogProduct{
			Id:     r.Id,
			Name:   name,
			Price:  r.Fields[fieldRetailPrice],
			Sku:    r.Fields[fieldProductSku],
			Images: images,
		})
	}
	return products, nil
}

func (c *CatalogRepo) imageUrls(ctx context.Context, refs []string) ([]string, error) {
	clauses := make([]string, 0, len(refs))
	for _, id := range refs {
		clauses = append(clauses, "RECORD_ID()="+QuoteFormulaSingle(id))
	}
	records, err := c.at.List(ctx, tableImages, ListParams{
		Formula: "OR(" + strings.Join(clauses, ",") + ")",
	})
	if err != nil {
		return nil, err
	}
	urls := []string{}
	for _, r := range records {
		atts, err := attachmentsField(r.Fields, fieldImageAttach)
		if err != nil {
			return nil, err
		}
		for _, a := range atts {
			urls = append(urls, a.Url)
		}
	}
	return urls, nil
}

func (c *CatalogRepo) SampleProducts(ctx context.Context) ([]models.AirtableRecord, error) {
	records, err := c.at.FirstPage(ctx, tableProducts, ListParams{MaxRecords: debugProductLimit})
	if err != nil {
		return nil, fmt.Errorf("SampleProducts: %w", err)
	}
	return records, nil
}

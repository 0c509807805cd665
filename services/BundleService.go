package services

import (
	"context"
	"fmt"

	"ballunia/entities"
	"ballunia/models"
	"ballunia/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const imageLookupLimit = 4

type BundleService struct {
	cr  repository.CatalogRepository
	log *zap.Logger
}

func NewBundleService(catalogRepo repository.CatalogRepository, log *zap.Logger) BundleService {
	return BundleService{
		cr:  catalogRepo,
		log: log,
	}
}

func (bs *BundleService) ListTemplates(ctx context.Context) ([]entities.TemplateSummary, error) {
	return bs.cr.ListTemplates(ctx)
}

// Resolve loads a template's rules and the bundle-eligible products split by
// category. It fails with models.ErrConfigNotFound for an unknown key.
func (bs *BundleService) Resolve(ctx context.Context, templateNK string) (cfg entities.BundleConfig, err error) {
	tmpl, exists, err := bs.cr.FindTemplate(ctx, templateNK)
	if err != nil {
		bs.log.Error("template lookup failed", zap.String("templateNK", templateNK), zap.Error(err))
		return
	}
	if !exists {
		err = fmt.Errorf("template %q: %w", templateNK, models.ErrConfigNotFound)
		return
	}

	rows, err := bs.cr.ListBundleProducts(ctx)
	if err != nil {
		bs.log.Error("bundle products lookup failed", zap.String("templateNK", templateNK), zap.Error(err))
		return
	}

	products := make([]entities.BundleProduct, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageLookupLimit)
	for i, row := range rows {
		products[i] = row.Product
		if row.ImageRef == "" {
			continue
		}
		g.Go(func() error {
			u, err := bs.cr.ImageUrl(gctx, row.ImageRef)
			if err != nil {
				return err
			}
			products[i].ImageUrl = u
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		bs.log.Error("image lookup failed", zap.String("templateNK", templateNK), zap.Error(err))
		return
	}

	cfg.Template = tmpl
	cfg.Products = entities.ProductsByCategory{
		Main:   []entities.BundleProduct{},
		Accent: []entities.BundleProduct{},
		Latex:  []entities.BundleProduct{},
		Weight: []entities.BundleProduct{},
	}
	for _, p := range products {
		cfg.Products.Append(p)
	}
	return
}

// ValidateSelection resolves the template and checks the requested ids.
func (bs *BundleService) ValidateSelection(ctx context.Context, templateNK string, req models.SelectionRequest) (entities.Validation, error) {
	cfg, err := bs.Resolve(ctx, templateNK)
	if err != nil {
		return entities.Validation{}, err
	}
	built, err := BuildSelection(cfg, req)
	if err != nil {
		return entities.Validation{}, err
	}
	return built.Validation, nil
}

// BundleSelection is a request checked against a resolved template.
type BundleSelection struct {
	Selection *Selection
	// Items follow catalog order within each category.
	Items []entities.BundleItem
	// Validation judges the distinct requested ids, not what Toggle kept,
	// so a request past the main max or with extra weights is invalid.
	Validation entities.Validation
}

// BuildSelection replays the requested ids through Toggle against the
// resolved products. Ids that are not offered in their category are a bad
// request. Repeated ids count once.
func BuildSelection(cfg entities.BundleConfig, req models.SelectionRequest) (BundleSelection, error) {
	sel := NewSelection(cfg.Template.Rules)
	requested := map[entities.Category][]string{
		entities.CategoryMain:   req.Main,
		entities.CategoryAccent: req.Accent,
		entities.CategoryLatex:  req.Latex,
		entities.CategoryWeight: req.Weight,
	}
	counts := Counts{}

	for _, c := range entities.Categories {
		offered := map[string]bool{}
		for _, p := range cfg.Products.List(c) {
			offered[p.Id] = true
		}
		seen := map[string]bool{}
		for _, id := range requested[c] {
			if !offered[id] {
				return BundleSelection{}, fmt.Errorf("%w: product %q is not offered as %s", models.ErrBadRequest, id, c)
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			counts[c]++
			sel.Toggle(c, id)
		}
	}

	var items []entities.BundleItem
	for _, c := range entities.Categories {
		for _, p := range cfg.Products.List(c) {
			if !sel.Has(c, p.Id) {
				continue
			}
			item := entities.BundleItem{Id: p.Id, Name: p.Name, Category: c}
			if p.NK != nil {
				item.NK = *p.NK
			}
			if p.VariantId != nil {
				item.VariantId = *p.VariantId
			}
			items = append(items, item)
		}
	}
	return BundleSelection{
		Selection:  sel,
		Items:      items,
		Validation: Validate(cfg.Template.Rules, counts),
	}, nil
}

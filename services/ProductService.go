package services

import (
	"context"
	"errors"
	"fmt"

	"ballunia/entities"
	"ballunia/models"
	"ballunia/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type ProductService struct {
	cr        repository.CatalogRepository
	debugHash []byte
	log       *zap.Logger
}

// NewProductService wires the catalog. debugTokenHash is a bcrypt hash; when
// empty the debug listing is disabled.
func NewProductService(catalogRepo repository.CatalogRepository, debugTokenHash string, log *zap.Logger) ProductService {
	return ProductService{
		cr:        catalogRepo,
		debugHash: []byte(debugTokenHash),
		log:       log,
	}
}

func (ps *ProductService) ListProducts(ctx context.Context) ([]entities.CatalogProduct, error) {
	products, err := ps.cr.ListProducts(ctx)
	if err != nil {
		ps.log.Error("product listing failed", zap.Error(err))
		return nil, err
	}
	return products, nil
}

// DebugProducts returns a few raw catalog records for the holder of the
// debug token.
func (ps *ProductService) DebugProducts(ctx context.Context, token string) ([]models.AirtableRecord, error) {
	if err := ps.checkDebugToken(token); err != nil {
		return nil, err
	}
	return ps.cr.SampleProducts(ctx)
}

func (ps *ProductService) checkDebugToken(token string) error {
	if len(ps.debugHash) == 0 || token == "" {
		return models.ErrUnauthorized
	}
	err := bcrypt.CompareHashAndPassword(ps.debugHash, []byte(token))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return models.ErrUnauthorized
	}
	ps.log.Error("debug token hash is unusable", zap.Error(err))
	return fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
}

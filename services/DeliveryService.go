package services

import (
	"context"
	"fmt"
	"strings"

	"ballunia/entities"
	"ballunia/models"
	"ballunia/repository"

	"go.uber.org/zap"
)

type DeliveryService struct {
	dr  repository.DeliveryRepository
	log *zap.Logger
}

func NewDeliveryService(deliveryRepo repository.DeliveryRepository, log *zap.Logger) DeliveryService {
	return DeliveryService{
		dr:  deliveryRepo,
		log: log,
	}
}

// CheckServiceArea reports whether any territory covers zip.
func (ds *DeliveryService) CheckServiceArea(ctx context.Context, zip string) (entities.ServiceArea, error) {
	zip = strings.TrimSpace(zip)
	if zip == "" {
		return entities.ServiceArea{}, fmt.Errorf("%w: Missing zip parameter", models.ErrBadRequest)
	}
	ds.log.Info("checking service area", zap.String("zip", zip))

	terr, exists, err := ds.dr.FindTerritoryByZip(ctx, zip)
	if err != nil {
		return entities.ServiceArea{}, err
	}
	return entities.ServiceArea{
		Zip:       zip,
		InService: exists,
		Territory: terr.Territory,
	}, nil
}

func (ds *DeliveryService) DeliveryWindows(ctx context.Context, zip string) ([]entities.DeliveryWindow, error) {
	windows, err := ds.dr.ListDeliveryWindows(ctx, strings.TrimSpace(zip))
	if err != nil {
		ds.log.Error("delivery windows lookup failed", zap.String("zip", zip), zap.Error(err))
		return nil, err
	}
	return windows, nil
}

func (ds *DeliveryService) Territories(ctx context.Context) ([]models.AirtableRecord, error) {
	return ds.dr.ListTerritories(ctx)
}

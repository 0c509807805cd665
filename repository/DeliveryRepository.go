package repository

import (
	"context"
	"errors"
	"fmt"

	"ballunia/entities"
	"ballunia/models"
)

const (
	tableDeliveryWindows = "Delivery Windows"
	tableServiceArea     = "Territories"
	territoryPreview     = 10
)

type DeliveryRepository interface {
	FindTerritoryByZip(ctx context.Context, zip string) (terr entities.Territory, exists bool, err error)
	ListDeliveryWindows(ctx context.Context, zip string) ([]entities.DeliveryWindow, error)
	ListTerritories(ctx context.Context) ([]models.AirtableRecord, error)
}

type DeliveryRepo struct {
	at               *AirtableClient
	territoriesTable string
}

// NewDeliveryRepository builds the delivery repository. territoriesTable is
// the table listed by ListTerritories; zip lookups always use "Territories".
func NewDeliveryRepository(client *AirtableClient, territoriesTable string) (DeliveryRepository, error) {
	if client == nil {
		return nil, errors.New("client must be non-nil")
	}
	if territoriesTable == "" {
		territoriesTable = tableServiceArea
	}
	return &DeliveryRepo{at: client, territoriesTable: territoriesTable}, nil
}

func (d *DeliveryRepo) FindTerritoryByZip(ctx context.Context, zip string) (terr entities.Territory, exists bool, err error) {
	records, e := d.at.FirstPage(ctx, tableServiceArea, ListParams{
		Formula: "{Zip Code}=" + QuoteFormulaSingle(zip),
	})
	if e != nil {
		err = fmt.Errorf("FindTerritoryByZip: %w", e)
		return
	}
	if len(records) == 0 {
		return
	}
	exists = true
	terr = MapTerritory(records[0])
	return
}

// MapTerritory reduces a raw territory record to its public fields.
func MapTerritory(r models.AirtableRecord) entities.Territory {
	return entities.Territory{
		Zip:       optionalString(r.Fields, "Zip Code"),
		Territory: optionalString(r.Fields, "Territory Name"),
	}
}

func (d *DeliveryRepo) ListDeliveryWindows(ctx context.Context, zip string) ([]entities.DeliveryWindow, error) {
	formula := "AND({API Include}=1, IS_AFTER({Delivery Window Date}, TODAY()))"
	if zip != "" {
		formula = fmt.Sprintf("AND({API Include}=1, IS_AFTER({Delivery Window Date}, TODAY()), {Territory Text}=%s)", QuoteFormulaSingle(zip))
	}
	records, err := d.at.List(ctx, tableDeliveryWindows, ListParams{
		Formula: formula,
		Sort:    []SortField{{Field: "Delivery Window Date", Direction: "asc"}},
	})
	if err != nil {
		return nil, fmt.Errorf("ListDeliveryWindows: %w", err)
	}

	var zipOut *string
	if zip != "" {
		zipOut = &zip
	}
	windows := make([]entities.DeliveryWindow, 0, len(records))
	for _, r := range records {
		date, hasDate := stringField(r.Fields, "Delivery Window Date")
		start, hasStart := stringField(r.Fields, "Start Time")
		var value any
		switch {
		case hasDate && hasStart:
			value = date + "T" + start
		case hasDate:
			value = date
		}
		windows = append(windows, entities.DeliveryWindow{
			Id:        r.Id,
			Label:     r.Fields["Label"],
			Value:     value,
			Zip:       zipOut,
			Available: boolField(r.Fields, "Available"),
		})
	}
	return windows, nil
}

func (d *DeliveryRepo) ListTerritories(ctx context.Context) ([]models.AirtableRecord, error) {
	records, err := d.at.FirstPage(ctx, d.territoriesTable, ListParams{MaxRecords: territoryPreview})
	if err != nil {
		return nil, fmt.Errorf("ListTerritories: %w", err)
	}
	return records, nil
}

package repository

import (
	"context"

	"app/internal/domain/model"
)

type DeliveryZoneRepository interface {
	FindByID(ctx context.Context, zoneID int64) (model.DeliveryZone, error)
}

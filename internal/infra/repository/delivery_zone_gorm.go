package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type DeliveryZoneGormRepository struct {
	db *gorm.DB
}

func NewDeliveryZoneGormRepository(db *gorm.DB) *DeliveryZoneGormRepository {
	return &DeliveryZoneGormRepository{db: db}
}

func (r *DeliveryZoneGormRepository) FindByID(ctx context.Context, zoneID int64) (model.DeliveryZone, error) {
	var z model.DeliveryZone
	err := r.db.WithContext(ctx).Where("id = ?", zoneID).First(&z).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DeliveryZone{}, repo.ErrNotFound
	}
	if err != nil {
		return model.DeliveryZone{}, err
	}
	return z, nil
}

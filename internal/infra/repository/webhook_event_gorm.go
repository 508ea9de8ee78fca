package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type WebhookEventGormRepository struct {
	db *gorm.DB
}

func NewWebhookEventGormRepository(db *gorm.DB) *WebhookEventGormRepository {
	return &WebhookEventGormRepository{db: db}
}

func (r *WebhookEventGormRepository) Create(ctx context.Context, event model.WebhookEvent) error {
	err := r.db.WithContext(ctx).Create(&event).Error
	if err == nil {
		return nil
	}

	// event_idのunique違反は再配送なので専用エラーに読み替える
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repo.ErrDuplicateEvent
	}
	return err
}

package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
)

// 同じイベントIDが既に記録済みのときにCreateが返す。
var ErrDuplicateEvent = errors.New("duplicate webhook event")

type WebhookEventRepository interface {
	// Create は処理済みイベントとして記録する。重複は ErrDuplicateEvent。
	Create(ctx context.Context, event model.WebhookEvent) error
}

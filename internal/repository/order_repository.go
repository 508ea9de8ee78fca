package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	// UpdateStatus は遷移ガードを通った後のステータスを書き込む。
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
}

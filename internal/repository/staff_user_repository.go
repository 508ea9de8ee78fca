package repository

import (
	"context"

	"app/internal/domain/model"
)

type StaffUserRepository interface {
	FindByID(ctx context.Context, userID int64) (*model.StaffUser, error)
	FindByEmail(ctx context.Context, email string) (*model.StaffUser, error)
	Update(ctx context.Context, user *model.StaffUser) error
}

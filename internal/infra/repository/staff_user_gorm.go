package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type StaffUserGormRepository struct {
	db *gorm.DB
}

func NewStaffUserGormRepository(db *gorm.DB) *StaffUserGormRepository {
	return &StaffUserGormRepository{db: db}
}

func (r *StaffUserGormRepository) FindByID(ctx context.Context, userID int64) (*model.StaffUser, error) {
	var u model.StaffUser
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *StaffUserGormRepository) FindByEmail(ctx context.Context, email string) (*model.StaffUser, error) {
	var u model.StaffUser
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *StaffUserGormRepository) Update(ctx context.Context, user *model.StaffUser) error {
	return r.db.WithContext(ctx).Save(user).Error
}

package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) FindByID(ctx context.Context, paymentID int64) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("id = ?", paymentID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) FindByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, false, nil
	}
	if err != nil {
		return model.Payment{}, false, err
	}
	return p, true, nil
}

func (r *PaymentGormRepository) FindByProviderTxnID(ctx context.Context, providerTxnID string) (model.Payment, bool, error) {
	if providerTxnID == "" {
		return model.Payment{}, false, nil
	}

	var p model.Payment
	err := r.db.WithContext(ctx).Where("provider_txn_id = ?", providerTxnID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, false, nil
	}
	if err != nil {
		return model.Payment{}, false, err
	}
	return p, true, nil
}

func (r *PaymentGormRepository) FindByCaptureID(ctx context.Context, captureID string) (model.Payment, bool, error) {
	if captureID == "" {
		return model.Payment{}, false, nil
	}

	// blobに保存したcapture_idで引くフォールバック
	var p model.Payment
	err := r.db.WithContext(ctx).
		Where("gateway_response ->> 'capture_id' = ?", captureID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, false, nil
	}
	if err != nil {
		return model.Payment{}, false, err
	}
	return p, true, nil
}

func (r *PaymentGormRepository) Create(ctx context.Context, payment model.Payment) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return 0, err
	}
	return payment.ID, nil
}

func (r *PaymentGormRepository) Update(ctx context.Context, payment model.Payment) error {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ?", payment.ID).
		Updates(map[string]any{
			"gateway":          payment.Gateway,
			"provider_txn_id":  payment.ProviderTxnID,
			"status":           payment.Status,
			"amount":           payment.Amount,
			"currency":         payment.Currency,
			"refunded_amount":  payment.RefundedAmount,
			"gateway_response": payment.GatewayResponse,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *PaymentGormRepository) UpdateStatus(ctx context.Context, paymentID int64, status model.PaymentStatus) error {
	return r.updateColumn(ctx, paymentID, "status", status)
}

func (r *PaymentGormRepository) UpdateProviderTxnID(ctx context.Context, paymentID int64, providerTxnID string) error {
	return r.updateColumn(ctx, paymentID, "provider_txn_id", providerTxnID)
}

func (r *PaymentGormRepository) UpdateRefundedAmount(ctx context.Context, paymentID int64, refundedAmount int64) error {
	return r.updateColumn(ctx, paymentID, "refunded_amount", refundedAmount)
}

func (r *PaymentGormRepository) UpdateGatewayResponse(ctx context.Context, paymentID int64, response model.JSONMap) error {
	return r.updateColumn(ctx, paymentID, "gateway_response", response)
}

func (r *PaymentGormRepository) updateColumn(ctx context.Context, paymentID int64, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ?", paymentID).
		Update(column, value)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *PaymentGormRepository) ListAdmin(ctx context.Context, f repo.AdminPaymentListFilter) ([]model.Payment, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Payment{})

	if f.Gateway != "" {
		q = q.Where("gateway = ?", f.Gateway)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Payment{}, 0, err
	}

	var items []model.Payment
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Payment{}, 0, err
	}

	return items, total, nil
}

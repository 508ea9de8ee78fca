package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type InvoiceGormRepository struct {
	db *gorm.DB
}

func NewInvoiceGormRepository(db *gorm.DB) *InvoiceGormRepository {
	return &InvoiceGormRepository{db: db}
}

func (r *InvoiceGormRepository) FindByOrderID(ctx context.Context, orderID int64) (model.Invoice, bool, error) {
	var inv model.Invoice
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Invoice{}, false, nil
	}
	if err != nil {
		return model.Invoice{}, false, err
	}
	return inv, true, nil
}

func (r *InvoiceGormRepository) Create(ctx context.Context, invoice model.Invoice) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return 0, err
	}
	return invoice.ID, nil
}

func (r *InvoiceGormRepository) UpdateStatus(ctx context.Context, invoiceID int64, status model.InvoiceStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("id = ?", invoiceID).
		Update("status", status)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// NextInvoiceNumber は月単位の連番を採番する。
// 同月の同時チェックアウトで重複しないよう advisory lock を取ってから
// 既存の最大連番を読む。ロックはトランザクション終了で解放される。
func (r *InvoiceGormRepository) NextInvoiceNumber(ctx context.Context, now time.Time) (string, error) {
	period := now.Format("200601")

	if err := r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "invoice-seq-"+period).Error; err != nil {
		return "", err
	}

	var maxSeq int64
	err := r.db.WithContext(ctx).
		Raw(`SELECT COALESCE(MAX(CAST(RIGHT(invoice_number, 4) AS INTEGER)), 0)
		     FROM invoices WHERE invoice_number LIKE ?`, "INV-"+period+"-%").
		Scan(&maxSeq).Error
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("INV-%s-%04d", period, maxSeq+1), nil
}

package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type InvoiceRepository interface {
	FindByOrderID(ctx context.Context, orderID int64) (model.Invoice, bool, error)
	Create(ctx context.Context, invoice model.Invoice) (int64, error)
	UpdateStatus(ctx context.Context, invoiceID int64, status model.InvoiceStatus) error

	// NextInvoiceNumber は INV-YYYYMM-NNNN の連番を採番する。
	// 同月の同時チェックアウトで番号が重複しないよう、トランザクション内で呼ぶこと。
	NextInvoiceNumber(ctx context.Context, now time.Time) (string, error)
}

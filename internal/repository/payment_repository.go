package repository

import (
	"context"

	"app/internal/domain/model"
)

type AdminPaymentListFilter struct {
	Page    int
	Limit   int
	Gateway string
	Status  string
}

type PaymentRepository interface {
	FindByID(ctx context.Context, paymentID int64) (model.Payment, error)
	FindByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error)
	FindByProviderTxnID(ctx context.Context, providerTxnID string) (model.Payment, bool, error)

	// webhookの照合用フォールバック。初回登録したIDとwebhookに載るIDの形式が
	// プロバイダによって違う（PayPalのcapture id等）ので、blob内のcapture_idでも引けるようにする。
	FindByCaptureID(ctx context.Context, captureID string) (model.Payment, bool, error)

	Create(ctx context.Context, payment model.Payment) (int64, error)

	// Update は可変フィールドをまとめて書き戻す。FAILEDの行を別ゲートウェイで再利用するときに使う。
	Update(ctx context.Context, payment model.Payment) error
	UpdateStatus(ctx context.Context, paymentID int64, status model.PaymentStatus) error
	UpdateProviderTxnID(ctx context.Context, paymentID int64, providerTxnID string) error
	UpdateRefundedAmount(ctx context.Context, paymentID int64, refundedAmount int64) error
	UpdateGatewayResponse(ctx context.Context, paymentID int64, response model.JSONMap) error

	// 管理画面用の一覧
	ListAdmin(ctx context.Context, f AdminPaymentListFilter) ([]model.Payment, int64, error)
}

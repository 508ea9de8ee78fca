package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

type PaymentGateway string

const (
	GatewayStripe   PaymentGateway = "stripe"
	GatewayPayPal   PaymentGateway = "paypal"
	GatewayAfterpay PaymentGateway = "afterpay"
	GatewayCOD      PaymentGateway = "cod"
)

type Payment struct {
	ID      int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID int64 `gorm:"not null;uniqueIndex" json:"order_id"`

	Gateway PaymentGateway `gorm:"type:varchar(20);not null;index" json:"gateway"`
	// プロバイダ側の取引ID。webhook/confirmの照合キーなので一意にする。
	ProviderTxnID string        `gorm:"type:varchar(255);index:idx_payments_provider_txn,unique,where:provider_txn_id <> ''" json:"provider_txn_id"`
	Status        PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	Amount         int64  `gorm:"not null" json:"amount"`
	Currency       string `gorm:"type:varchar(3);not null" json:"currency"`
	RefundedAmount int64  `gorm:"not null;default:0" json:"refunded_amount"`

	// プロバイダ応答を監査用に蓄積するblob（initiate/confirm/refund/webhookでマージ）
	GatewayResponse JSONMap `gorm:"type:jsonb" json:"gateway_response"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// RemainingRefundable は未返金の残額を返す。
func (p *Payment) RemainingRefundable() int64 {
	rest := p.Amount - p.RefundedAmount
	if rest < 0 {
		return 0
	}
	return rest
}

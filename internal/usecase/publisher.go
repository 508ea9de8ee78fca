package usecase

import "time"

// PaymentEvent は決済の状態変化を下流（通知・分析）に知らせるイベント。
type PaymentEvent struct {
	Type        string    `json:"type"`
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	PaymentID   int64     `json:"payment_id"`
	Gateway     string    `json:"gateway"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Mock        bool      `json:"mock,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

const (
	EventPaymentInitiated = "payment.initiated"
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

type Publisher interface {
	PublishPaymentEvent(event PaymentEvent) error
}

// NopPublisher はブローカー未設定のときの差し込み先。
type NopPublisher struct{}

func (NopPublisher) PublishPaymentEvent(PaymentEvent) error { return nil }

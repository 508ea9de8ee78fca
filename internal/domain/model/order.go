package model

import "time"

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusProcessing     OrderStatus = "PROCESSING"
	OrderStatusReady          OrderStatus = "READY"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

// 通常遷移の順序。CANCELLEDはこの表に含めない。
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:        0,
	OrderStatusConfirmed:      1,
	OrderStatusProcessing:     2,
	OrderStatusReady:          3,
	OrderStatusOutForDelivery: 4,
	OrderStatusDelivered:      5,
}

// CanTransitionTo は注文ステータスの遷移可否を返す。
// 通常遷移は前方向のみ（途中スキップは許可）。キャンセルは PENDING / CONFIRMED からのみ。
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next == OrderStatusCancelled {
		return s == OrderStatusPending || s == OrderStatusConfirmed
	}
	if s == OrderStatusCancelled {
		return false
	}

	cur, ok := orderStatusRank[s]
	nxt, ok2 := orderStatusRank[next]
	if !ok || !ok2 {
		return false
	}
	return nxt > cur
}

type Order struct {
	ID             int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64       `gorm:"not null;index" json:"user_id"`
	OrderNumber    string      `gorm:"type:varchar(32);not null;uniqueIndex" json:"order_number"`
	Status         OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Subtotal       int64       `gorm:"not null" json:"subtotal"`
	DeliveryFee    int64       `gorm:"not null" json:"delivery_fee"`
	Discount       int64       `gorm:"not null" json:"discount"`
	Total          int64       `gorm:"not null" json:"total"`
	Currency       string      `gorm:"type:varchar(3);not null" json:"currency"`
	ExchangeRate   float64     `gorm:"not null;default:1" json:"exchange_rate"`
	DeliveryZoneID int64       `gorm:"not null" json:"delivery_zone_id"`
	CreatedAt      time.Time   `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

package model

import "time"

// WebhookEvent はプロバイダのイベントIDを記録する。
// 同じイベントIDの再配送（retry）を二重適用しないための台帳。
type WebhookEvent struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID     string         `gorm:"type:varchar(128);not null;uniqueIndex" json:"event_id"`
	Gateway     PaymentGateway `gorm:"type:varchar(20);not null;index" json:"gateway"`
	EventType   string         `gorm:"type:varchar(64);not null" json:"event_type"`
	ProcessedAt time.Time      `gorm:"not null" json:"processed_at"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}

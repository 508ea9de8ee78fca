package model

import "time"

type DeliveryZone struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	DeliveryFee int64     `gorm:"not null" json:"delivery_fee"`
	SupportsCOD bool      `gorm:"not null;default:true" json:"supports_cod"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

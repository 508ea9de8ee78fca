package model_test

import (
	"testing"

	"app/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

// 通常遷移は前方向のみ
func TestOrderStatus_CanTransitionTo_Forward(t *testing.T) {
	assert.True(t, model.OrderStatusPending.CanTransitionTo(model.OrderStatusConfirmed))
	assert.True(t, model.OrderStatusConfirmed.CanTransitionTo(model.OrderStatusProcessing))
	assert.True(t, model.OrderStatusProcessing.CanTransitionTo(model.OrderStatusReady))
	assert.True(t, model.OrderStatusReady.CanTransitionTo(model.OrderStatusOutForDelivery))
	assert.True(t, model.OrderStatusOutForDelivery.CanTransitionTo(model.OrderStatusDelivered))
}

// 途中のステータスを飛ばすのは許可（CODはPENDING→DELIVERED相当まで進む）
func TestOrderStatus_CanTransitionTo_Skip(t *testing.T) {
	assert.True(t, model.OrderStatusPending.CanTransitionTo(model.OrderStatusDelivered))
	assert.True(t, model.OrderStatusConfirmed.CanTransitionTo(model.OrderStatusOutForDelivery))
}

// 後ろ向きは不可
func TestOrderStatus_CanTransitionTo_Backward(t *testing.T) {
	assert.False(t, model.OrderStatusConfirmed.CanTransitionTo(model.OrderStatusPending))
	assert.False(t, model.OrderStatusDelivered.CanTransitionTo(model.OrderStatusProcessing))
	assert.False(t, model.OrderStatusDelivered.CanTransitionTo(model.OrderStatusDelivered))
}

// キャンセルは PENDING / CONFIRMED からのみ
func TestOrderStatus_CanTransitionTo_Cancel(t *testing.T) {
	assert.True(t, model.OrderStatusPending.CanTransitionTo(model.OrderStatusCancelled))
	assert.True(t, model.OrderStatusConfirmed.CanTransitionTo(model.OrderStatusCancelled))
	assert.False(t, model.OrderStatusProcessing.CanTransitionTo(model.OrderStatusCancelled))
	assert.False(t, model.OrderStatusOutForDelivery.CanTransitionTo(model.OrderStatusCancelled))
	assert.False(t, model.OrderStatusDelivered.CanTransitionTo(model.OrderStatusCancelled))
}

// CANCELLEDからはどこへも動けない
func TestOrderStatus_CanTransitionTo_FromCancelled(t *testing.T) {
	assert.False(t, model.OrderStatusCancelled.CanTransitionTo(model.OrderStatusPending))
	assert.False(t, model.OrderStatusCancelled.CanTransitionTo(model.OrderStatusConfirmed))
	assert.False(t, model.OrderStatusCancelled.CanTransitionTo(model.OrderStatusCancelled))
}

func TestPayment_RemainingRefundable(t *testing.T) {
	p := model.Payment{Amount: 5000, RefundedAmount: 0}
	assert.Equal(t, int64(5000), p.RemainingRefundable())

	p.RefundedAmount = 2000
	assert.Equal(t, int64(3000), p.RemainingRefundable())

	p.RefundedAmount = 5000
	assert.Equal(t, int64(0), p.RemainingRefundable())

	// データ不整合でも負にはしない
	p.RefundedAmount = 6000
	assert.Equal(t, int64(0), p.RemainingRefundable())
}

func TestJSONMap_Merge(t *testing.T) {
	var base model.JSONMap
	merged := base.Merge(map[string]any{"a": 1})
	assert.Equal(t, 1, merged["a"])

	merged = merged.Merge(map[string]any{"a": 2, "b": "x"})
	assert.Equal(t, 2, merged["a"])
	assert.Equal(t, "x", merged["b"])
}

package cod_test

import (
	"context"
	"strings"
	"testing"

	"app/internal/domain/model"
	"app/internal/gateway"
	"app/internal/gateway/cod"

	"github.com/stretchr/testify/assert"
)

func codZone(supports bool) *model.DeliveryZone {
	return &model.DeliveryZone{ID: 1, Name: "Inner West", SupportsCOD: supports, IsActive: true}
}

func codOrder(total int64) model.Order {
	return model.Order{
		ID:          1,
		OrderNumber: "ORD-0002",
		Status:      model.OrderStatusPending,
		Total:       total,
		Currency:    "AUD",
	}
}

// 上限超えは業務ルールで拒否。メッセージに上限額を入れる
func TestCOD_Initiate_RejectsOverCap(t *testing.T) {
	g := cod.New(cod.Config{Enabled: true})

	_, err := g.Initiate(context.Background(), codOrder(50001), nil, gateway.InitiateParams{Zone: codZone(true)})
	ge, ok := gateway.AsError(err)
	assert.True(t, ok)
	assert.Equal(t, gateway.KindBusinessRule, ge.Kind)
	assert.Equal(t, "cash on delivery is available for orders up to $500.00", ge.Message)
}

// ちょうど上限は通る
func TestCOD_Initiate_AcceptsAtCap(t *testing.T) {
	g := cod.New(cod.Config{Enabled: true})

	res, err := g.Initiate(context.Background(), codOrder(50000), nil, gateway.InitiateParams{Zone: codZone(true)})
	assert.NoError(t, err)
	assert.Equal(t, "COD-ORD-0002", res.ProviderTxnID)
	assert.False(t, res.Mock)
}

// 上限は設定で変えられる
func TestCOD_Initiate_CustomCap(t *testing.T) {
	g := cod.New(cod.Config{Enabled: true, MaxTotal: 10000})

	_, err := g.Initiate(context.Background(), codOrder(10001), nil, gateway.InitiateParams{Zone: codZone(true)})
	ge, ok := gateway.AsError(err)
	assert.True(t, ok)
	assert.Equal(t, "cash on delivery is available for orders up to $100.00", ge.Message)
}

// 代引き非対応ゾーン、またはゾーン不明は拒否
func TestCOD_Initiate_RejectsUnsupportedZone(t *testing.T) {
	g := cod.New(cod.Config{Enabled: true})

	for _, zone := range []*model.DeliveryZone{codZone(false), nil} {
		_, err := g.Initiate(context.Background(), codOrder(10000), nil, gateway.InitiateParams{Zone: zone})
		ge, ok := gateway.AsError(err)
		assert.True(t, ok)
		assert.Equal(t, gateway.KindBusinessRule, ge.Kind)
		assert.Equal(t, "cash on delivery is not available in your delivery area", ge.Message)
	}
}

// 無効化時はモック経路。業務ルールは同じように適用される
func TestCOD_Initiate_MockStillValidates(t *testing.T) {
	g := cod.New(cod.Config{Enabled: false})

	_, err := g.Initiate(context.Background(), codOrder(50001), nil, gateway.InitiateParams{Zone: codZone(true)})
	ge, ok := gateway.AsError(err)
	assert.True(t, ok)
	assert.Equal(t, gateway.KindBusinessRule, ge.Kind)

	res, err := g.Initiate(context.Background(), codOrder(10000), nil, gateway.InitiateParams{Zone: codZone(true)})
	assert.NoError(t, err)
	assert.True(t, res.Mock)
	assert.True(t, strings.HasPrefix(res.ProviderTxnID, "COD_MOCK_"))
	assert.Equal(t, true, res.Response["mock"])
}

// 回収額は必須、数値のみ
func TestCOD_Confirm_RequiresCollectedAmount(t *testing.T) {
	g := cod.New(cod.Config{Enabled: true})
	payment := model.Payment{Amount: 10000, Currency: "AUD"}

	_, err := g.Confirm(context.Background(), payment, nil)
	ge, ok := gateway.AsError(err)
	assert.True(t, ok)
	assert.Equal(t, "collected_amount is required", ge.Message)

	_, err = g.Confirm(context.Background(), payment, map[string]string{"collected_amount": "abc"})
	ge, ok = gateway.AsError(err)
	assert.True(t, ok)
	assert.Equal(t, gateway.KindBusinessRule, ge.Kind)
}

// 不足額は拒否。メッセージに両方の金額を入れる
func TestCOD_Confirm_RejectsShortPayment(t *testing.T) {
	g := cod.New(cod.Config{Enabled: true})
	payment := model.Payment{Amount: 10000, Currency: "AUD"}

	_, err := g.Confirm(context.Background(), payment, map[string]string{"collected_amount": "9999"})
	ge, ok := gateway.AsError(err)
	assert.True(t, ok)
	assert.Equal(t, gateway.KindBusinessRule, ge.Kind)
	assert.Equal(t, "collected amount $99.99 is less than the payment amount $100.00", ge.Message)
}

// ちょうど、または多めの回収は成功
func TestCOD_Confirm_Success(t *testing.T) {
	g := cod.New(cod.Config{Enabled: true})
	payment := model.Payment{Amount: 10000, Currency: "AUD"}

	res, err := g.Confirm(context.Background(), payment, map[string]string{"collected_amount": "10000"})
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.CaptureID, "CASH-"))
	assert.Equal(t, int64(10000), res.Response["collected_amount"])
}

func TestCOD_Refund_RecordsManualRefund(t *testing.T) {
	g := cod.New(cod.Config{Enabled: true})

	res, err := g.Refund(context.Background(), model.Payment{Amount: 10000}, 4000)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.RefundID, "CODREF-"))
	assert.Equal(t, int64(4000), res.Amount)
	assert.Equal(t, true, res.Response["manual_cash_refund"])
}

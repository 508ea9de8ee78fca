package afterpay_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"app/internal/domain/model"
	"app/internal/gateway"
	"app/internal/gateway/afterpay"

	"github.com/stretchr/testify/assert"
)

func audOrder(total int64) model.Order {
	return model.Order{
		ID:          1,
		OrderNumber: "ORD-0001",
		Status:      model.OrderStatusPending,
		Total:       total,
		Currency:    "AUD",
	}
}

// AUD以外は業務ルールで拒否
func TestAfterpay_Initiate_RejectsNonAUD(t *testing.T) {
	g := afterpay.New(afterpay.Config{}, nil)

	order := audOrder(10000)
	order.Currency = "USD"

	_, err := g.Initiate(context.Background(), order, nil, gateway.InitiateParams{})
	ge, ok := gateway.AsError(err)
	assert.True(t, ok)
	assert.Equal(t, gateway.KindBusinessRule, ge.Kind)
	assert.Equal(t, "afterpay payments are only available in AUD", ge.Message)
}

// 金額の下限/上限。メッセージにはドル表記で範囲を入れる
func TestAfterpay_Initiate_RejectsOutOfRange(t *testing.T) {
	g := afterpay.New(afterpay.Config{}, nil)

	for _, total := range []int64{3499, 200001} {
		_, err := g.Initiate(context.Background(), audOrder(total), nil, gateway.InitiateParams{})
		ge, ok := gateway.AsError(err)
		assert.True(t, ok, "total=%d", total)
		assert.Equal(t, gateway.KindBusinessRule, ge.Kind)
		assert.Equal(t, "afterpay is available for orders between $35.00 and $2000.00", ge.Message)
	}
}

// 境界値はどちらも通る
func TestAfterpay_Initiate_AcceptsBoundaries(t *testing.T) {
	g := afterpay.New(afterpay.Config{}, nil)

	for _, total := range []int64{3500, 200000} {
		res, err := g.Initiate(context.Background(), audOrder(total), nil, gateway.InitiateParams{})
		assert.NoError(t, err, "total=%d", total)
		assert.True(t, res.Mock)
	}
}

// 資格情報なしはモック経路。レスポンスの形は本番と同じキーを持つ
func TestAfterpay_Initiate_MockShape(t *testing.T) {
	g := afterpay.New(afterpay.Config{}, nil)
	assert.False(t, g.Enabled())

	res, err := g.Initiate(context.Background(), audOrder(5000), nil, gateway.InitiateParams{})
	assert.NoError(t, err)
	assert.True(t, res.Mock)
	assert.True(t, strings.HasPrefix(res.ProviderTxnID, "AFTERPAY_MOCK_"))
	assert.Contains(t, res.RedirectURL, res.ProviderTxnID)
	assert.Equal(t, true, res.Response["mock"])
}

// 本番経路はcheckout APIを叩いてtokenとredirect先を受け取る
func TestAfterpay_Initiate_Live(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/checkouts", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "merchant-1", user)
		assert.Equal(t, "secret-1", pass)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		amount := body["amount"].(map[string]any)
		assert.Equal(t, "59.99", amount["amount"])
		assert.Equal(t, "AUD", amount["currency"])
		assert.Equal(t, "ORD-0001", body["merchantReference"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":               "chk_123",
			"redirectCheckoutUrl": "https://portal.afterpay.com/checkout/chk_123",
		})
	}))
	defer srv.Close()

	g := afterpay.New(afterpay.Config{
		MerchantID: "merchant-1",
		SecretKey:  "secret-1",
		APIBaseURL: srv.URL,
	}, srv.Client())

	items := []model.OrderItem{
		{ProductNameSnapshot: "Ribeye Steak", UnitPriceSnapshot: 5999, Quantity: 1},
	}
	res, err := g.Initiate(context.Background(), audOrder(5999), items, gateway.InitiateParams{
		ReturnURL: "https://shop.example/return",
		CancelURL: "https://shop.example/cancel",
	})
	assert.NoError(t, err)
	assert.False(t, res.Mock)
	assert.Equal(t, "chk_123", res.ProviderTxnID)
	assert.Equal(t, "https://portal.afterpay.com/checkout/chk_123", res.RedirectURL)
}

// captureがAPPROVED以外ならプロバイダエラー
func TestAfterpay_Confirm_NotApproved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/payments/capture", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pay_1", "status": "DECLINED"})
	}))
	defer srv.Close()

	g := afterpay.New(afterpay.Config{MerchantID: "m", SecretKey: "s", APIBaseURL: srv.URL}, srv.Client())

	_, err := g.Confirm(context.Background(), model.Payment{ProviderTxnID: "chk_123"}, nil)
	ge, ok := gateway.AsError(err)
	assert.True(t, ok)
	assert.Equal(t, gateway.KindProvider, ge.Kind)
	assert.Contains(t, ge.Message, "DECLINED")
}

func TestAfterpay_Confirm_Approved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pay_1", "status": "APPROVED"})
	}))
	defer srv.Close()

	g := afterpay.New(afterpay.Config{MerchantID: "m", SecretKey: "s", APIBaseURL: srv.URL}, srv.Client())

	res, err := g.Confirm(context.Background(), model.Payment{ProviderTxnID: "chk_123"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, "pay_1", res.CaptureID)
	assert.Equal(t, "pay_1", res.Response["afterpay_payment_id"])
}

// capture前のrefundは業務ルールで拒否
func TestAfterpay_Refund_WithoutCapture(t *testing.T) {
	g := afterpay.New(afterpay.Config{MerchantID: "m", SecretKey: "s"}, nil)

	_, err := g.Refund(context.Background(), model.Payment{Currency: "AUD"}, 1000)
	ge, ok := gateway.AsError(err)
	assert.True(t, ok)
	assert.Equal(t, gateway.KindBusinessRule, ge.Kind)
}

func TestAfterpay_Refund_Mock(t *testing.T) {
	g := afterpay.New(afterpay.Config{}, nil)

	res, err := g.Refund(context.Background(), model.Payment{Currency: "AUD"}, 1000)
	assert.NoError(t, err)
	assert.True(t, res.Mock)
	assert.True(t, strings.HasPrefix(res.RefundID, "AFTERPAY_REF_MOCK_"))
	assert.Equal(t, int64(1000), res.Amount)
}

package cod

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"app/internal/domain/model"
	"app/internal/gateway"

	"github.com/google/uuid"
)

// デフォルトの代引き上限（$500.00）
const DefaultMaxTotal = 50000

type Config struct {
	Enabled  bool
	MaxTotal int64
}

// Gateway は代金引換。外部APIは呼ばず、現金回収の記録だけを扱う。
type Gateway struct {
	cfg Config
}

func New(cfg Config) *Gateway {
	if cfg.MaxTotal <= 0 {
		cfg.MaxTotal = DefaultMaxTotal
	}
	return &Gateway{cfg: cfg}
}

func (g *Gateway) Name() model.PaymentGateway {
	return model.GatewayCOD
}

func (g *Gateway) Enabled() bool {
	return g.cfg.Enabled
}

func (g *Gateway) validateOrder(order model.Order, zone *model.DeliveryZone) error {
	if order.Currency != "AUD" {
		return gateway.NewBusinessRuleError("cash on delivery is only available in AUD")
	}
	if order.Total > g.cfg.MaxTotal {
		return gateway.NewBusinessRuleError(fmt.Sprintf(
			"cash on delivery is available for orders up to %s",
			gateway.FormatMoney(g.cfg.MaxTotal)))
	}
	if zone == nil || !zone.SupportsCOD {
		return gateway.NewBusinessRuleError("cash on delivery is not available in your delivery area")
	}
	return nil
}

func (g *Gateway) Initiate(_ context.Context, order model.Order, _ []model.OrderItem, p gateway.InitiateParams) (gateway.InitiateResult, error) {
	if err := g.validateOrder(order, p.Zone); err != nil {
		return gateway.InitiateResult{}, err
	}

	if !g.Enabled() {
		id := "COD_MOCK_" + randomSuffix()
		return gateway.InitiateResult{
			ProviderTxnID: id,
			Mock:          true,
			Response: model.JSONMap{
				"mock":           true,
				"payment_method": "cash_on_delivery",
			},
		}, nil
	}

	return gateway.InitiateResult{
		ProviderTxnID: "COD-" + order.OrderNumber,
		Response: model.JSONMap{
			"payment_method": "cash_on_delivery",
		},
	}, nil
}

// Confirm は配達時の現金回収を記録する。
// 回収額が決済額に満たない場合は失敗にし、決済はpendingのまま残す。
func (g *Gateway) Confirm(_ context.Context, payment model.Payment, data map[string]string) (gateway.ConfirmResult, error) {
	raw, ok := data["collected_amount"]
	if !ok || raw == "" {
		return gateway.ConfirmResult{}, gateway.NewBusinessRuleError("collected_amount is required")
	}
	collected, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return gateway.ConfirmResult{}, gateway.NewBusinessRuleError("collected_amount must be an integer amount in cents")
	}

	if collected < payment.Amount {
		return gateway.ConfirmResult{}, gateway.NewBusinessRuleError(fmt.Sprintf(
			"collected amount %s is less than the payment amount %s",
			gateway.FormatMoney(collected), gateway.FormatMoney(payment.Amount)))
	}

	res := gateway.ConfirmResult{
		CaptureID: "CASH-" + randomSuffix(),
		Response: model.JSONMap{
			"collected_amount": collected,
		},
	}
	if !g.Enabled() {
		res.Mock = true
		res.Response["mock"] = true
	}
	return res, nil
}

// Refund は返金を記録するだけで、現金の受け渡し自体は店頭・配達員の手作業。
func (g *Gateway) Refund(_ context.Context, _ model.Payment, amount int64) (gateway.RefundResult, error) {
	res := gateway.RefundResult{
		RefundID: "CODREF-" + randomSuffix(),
		Amount:   amount,
		Response: model.JSONMap{
			"refund_amount":      amount,
			"manual_cash_refund": true,
		},
	}
	if !g.Enabled() {
		res.Mock = true
		res.Response["mock"] = true
	}
	return res, nil
}

func randomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

package afterpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/gateway"

	"github.com/google/uuid"
)

const defaultAPIBaseURL = "https://global-api.afterpay.com"

// Afterpayの利用条件。AUDのみ、注文合計は[$35.00, $2000.00]。
const (
	minOrderTotal = 3500
	maxOrderTotal = 200000
)

type Config struct {
	MerchantID string
	SecretKey  string
	APIBaseURL string
}

type Gateway struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config, client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	return &Gateway{cfg: cfg, httpClient: client}
}

func (g *Gateway) Name() model.PaymentGateway {
	return model.GatewayAfterpay
}

func (g *Gateway) Enabled() bool {
	return g.cfg.MerchantID != "" && g.cfg.SecretKey != ""
}

// validateOrder は業務ルールを決済開始前に確認する。モック経路でも適用する。
func validateOrder(order model.Order) error {
	if order.Currency != "AUD" {
		return gateway.NewBusinessRuleError("afterpay payments are only available in AUD")
	}
	if order.Total < minOrderTotal || order.Total > maxOrderTotal {
		return gateway.NewBusinessRuleError(fmt.Sprintf(
			"afterpay is available for orders between %s and %s",
			gateway.FormatMoney(minOrderTotal), gateway.FormatMoney(maxOrderTotal)))
	}
	return nil
}

func (g *Gateway) Initiate(ctx context.Context, order model.Order, items []model.OrderItem, p gateway.InitiateParams) (gateway.InitiateResult, error) {
	if err := validateOrder(order); err != nil {
		return gateway.InitiateResult{}, err
	}

	if !g.Enabled() {
		token := "AFTERPAY_MOCK_" + randomSuffix()
		return gateway.InitiateResult{
			ProviderTxnID: token,
			RedirectURL:   "https://portal.sandbox.afterpay.com/checkout/" + token,
			Mock:          true,
			Response: model.JSONMap{
				"mock":           true,
				"checkout_token": token,
			},
		}, nil
	}

	lines := make([]map[string]any, 0, len(items))
	for _, it := range items {
		lines = append(lines, map[string]any{
			"name":     it.ProductNameSnapshot,
			"quantity": it.Quantity,
			"price": map[string]any{
				"amount":   gateway.DecimalString(it.UnitPriceSnapshot),
				"currency": order.Currency,
			},
		})
	}

	body := map[string]any{
		"amount": map[string]any{
			"amount":   gateway.DecimalString(order.Total),
			"currency": order.Currency,
		},
		"merchantReference": order.OrderNumber,
		"merchant": map[string]any{
			"redirectConfirmUrl": p.ReturnURL,
			"redirectCancelUrl":  p.CancelURL,
		},
		"items": lines,
	}

	resp, err := g.doJSON(ctx, http.MethodPost, "/v2/checkouts", body)
	if err != nil {
		return gateway.InitiateResult{}, err
	}

	token, _ := resp["token"].(string)
	redirect, _ := resp["redirectCheckoutUrl"].(string)

	return gateway.InitiateResult{
		ProviderTxnID: token,
		RedirectURL:   redirect,
		Response: model.JSONMap{
			"checkout_token": token,
			"redirect_url":   redirect,
		},
	}, nil
}

func (g *Gateway) Confirm(ctx context.Context, payment model.Payment, _ map[string]string) (gateway.ConfirmResult, error) {
	if !g.Enabled() {
		id := "AFTERPAY_PAY_MOCK_" + randomSuffix()
		return gateway.ConfirmResult{
			CaptureID: id,
			Mock:      true,
			Response: model.JSONMap{
				"mock":                true,
				"afterpay_payment_id": id,
			},
		}, nil
	}

	body := map[string]any{"token": payment.ProviderTxnID}

	resp, err := g.doJSON(ctx, http.MethodPost, "/v2/payments/capture", body)
	if err != nil {
		return gateway.ConfirmResult{}, err
	}

	status, _ := resp["status"].(string)
	if status != "APPROVED" {
		return gateway.ConfirmResult{}, gateway.NewProviderError(
			fmt.Sprintf("afterpay capture not approved (status=%s)", status), nil)
	}

	paymentID, _ := resp["id"].(string)

	return gateway.ConfirmResult{
		CaptureID: paymentID,
		Response: model.JSONMap{
			// refundはこのidを使うのでblobに残す
			"afterpay_payment_id": paymentID,
			"afterpay_status":     status,
		},
	}, nil
}

func (g *Gateway) Refund(ctx context.Context, payment model.Payment, amount int64) (gateway.RefundResult, error) {
	if !g.Enabled() {
		id := "AFTERPAY_REF_MOCK_" + randomSuffix()
		return gateway.RefundResult{
			RefundID: id,
			Amount:   amount,
			Mock:     true,
			Response: model.JSONMap{
				"mock":      true,
				"refund_id": id,
			},
		}, nil
	}

	paymentID, _ := payment.GatewayResponse["afterpay_payment_id"].(string)
	if paymentID == "" {
		return gateway.RefundResult{}, gateway.NewBusinessRuleError("payment has no afterpay capture to refund")
	}

	body := map[string]any{
		"amount": map[string]any{
			"amount":   gateway.DecimalString(amount),
			"currency": payment.Currency,
		},
		"requestId": uuid.NewString(),
	}

	resp, err := g.doJSON(ctx, http.MethodPost, "/v2/payments/"+paymentID+"/refund", body)
	if err != nil {
		return gateway.RefundResult{}, err
	}

	id, _ := resp["refundId"].(string)

	return gateway.RefundResult{
		RefundID: id,
		Amount:   amount,
		Response: model.JSONMap{
			"refund_id":     id,
			"refund_amount": amount,
		},
	}, nil
}

func (g *Gateway) doJSON(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, gateway.NewProviderError("afterpay request marshal failed", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.APIBaseURL+path, reader)
	if err != nil {
		return nil, gateway.NewProviderError("afterpay request build failed", err)
	}
	req.SetBasicAuth(g.cfg.MerchantID, g.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, gateway.NewProviderError("afterpay request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gateway.NewProviderError("afterpay response read failed", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			ErrorCode string `json:"errorCode"`
			Message   string `json:"message"`
		}
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			return nil, gateway.NewProviderError(
				fmt.Sprintf("afterpay api error (%s): %s", errResp.ErrorCode, errResp.Message), nil)
		}
		return nil, gateway.NewProviderError(fmt.Sprintf("afterpay api returned http %d", resp.StatusCode), nil)
	}

	var out map[string]any
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, gateway.NewProviderError("afterpay response parse failed", err)
	}
	return out, nil
}

func randomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/gateway"

	"github.com/google/uuid"
)

const (
	defaultAPIBaseURL = "https://api.stripe.com/v1"

	// webhook署名タイムスタンプの許容ずれ
	signatureTolerance = 5 * time.Minute
)

type Config struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	// テストでhttptestに差し替える
	APIBaseURL string
}

type Gateway struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config, client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	return &Gateway{cfg: cfg, httpClient: client}
}

func (g *Gateway) Name() model.PaymentGateway {
	return model.GatewayStripe
}

func (g *Gateway) Enabled() bool {
	return g.cfg.SecretKey != ""
}

func (g *Gateway) Initiate(ctx context.Context, order model.Order, _ []model.OrderItem, _ gateway.InitiateParams) (gateway.InitiateResult, error) {
	if !g.Enabled() {
		// モック経路。本番経路と同じ形で返す。
		id := "pi_mock_" + randomSuffix()
		return gateway.InitiateResult{
			ProviderTxnID:  id,
			ClientSecret:   id + "_secret_" + randomSuffix(),
			PublishableKey: "pk_test_mock",
			Mock:           true,
			Response: model.JSONMap{
				"mock":              true,
				"payment_intent_id": id,
			},
		}, nil
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(order.Total, 10))
	form.Set("currency", strings.ToLower(order.Currency))
	form.Set("metadata[order_number]", order.OrderNumber)
	form.Set("automatic_payment_methods[enabled]", "true")

	// 同じ注文のリトライで二重にintentを作らない
	idemKey := "init-" + order.OrderNumber

	resp, err := g.doForm(ctx, http.MethodPost, "/payment_intents", form, idemKey)
	if err != nil {
		return gateway.InitiateResult{}, err
	}

	id, _ := resp["id"].(string)
	secret, _ := resp["client_secret"].(string)
	status, _ := resp["status"].(string)

	return gateway.InitiateResult{
		ProviderTxnID:  id,
		ClientSecret:   secret,
		PublishableKey: g.cfg.PublishableKey,
		Response: model.JSONMap{
			"payment_intent_id": id,
			"intent_status":     status,
		},
	}, nil
}

func (g *Gateway) Confirm(ctx context.Context, payment model.Payment, _ map[string]string) (gateway.ConfirmResult, error) {
	if !g.Enabled() {
		id := "ch_mock_" + randomSuffix()
		return gateway.ConfirmResult{
			CaptureID: id,
			Mock:      true,
			Response: model.JSONMap{
				"mock":      true,
				"charge_id": id,
			},
		}, nil
	}

	// intentを取り直して現在の状態を見る
	resp, err := g.doForm(ctx, http.MethodGet, "/payment_intents/"+url.PathEscape(payment.ProviderTxnID), nil, "")
	if err != nil {
		return gateway.ConfirmResult{}, err
	}

	status, _ := resp["status"].(string)
	if status != "succeeded" {
		return gateway.ConfirmResult{}, gateway.NewProviderError(
			fmt.Sprintf("payment intent is not succeeded (status=%s)", status), nil)
	}

	chargeID, _ := resp["latest_charge"].(string)

	return gateway.ConfirmResult{
		CaptureID: chargeID,
		Response: model.JSONMap{
			"intent_status": status,
			"charge_id":     chargeID,
		},
	}, nil
}

func (g *Gateway) Refund(ctx context.Context, payment model.Payment, amount int64) (gateway.RefundResult, error) {
	if !g.Enabled() {
		id := "re_mock_" + randomSuffix()
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

	form := url.Values{}
	form.Set("payment_intent", payment.ProviderTxnID)
	form.Set("amount", strconv.FormatInt(amount, 10))

	resp, err := g.doForm(ctx, http.MethodPost, "/refunds", form, "refund-"+uuid.NewString())
	if err != nil {
		return gateway.RefundResult{}, err
	}

	id, _ := resp["id"].(string)

	return gateway.RefundResult{
		RefundID: id,
		Amount:   amount,
		Response: model.JSONMap{
			"refund_id":     id,
			"refund_amount": amount,
		},
	}, nil
}

func (g *Gateway) ParseWebhook(payload []byte, header http.Header) (gateway.WebhookEvent, error) {
	if g.cfg.WebhookSecret != "" {
		if err := g.verifySignature(payload, header.Get("Stripe-Signature")); err != nil {
			return gateway.WebhookEvent{}, err
		}
	}
	// secret未設定のときは署名なしで受ける（ローカル開発用の緩和）

	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object map[string]any `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return gateway.WebhookEvent{}, gateway.NewUnverifiedError("invalid webhook payload", err)
	}

	ev := gateway.WebhookEvent{
		EventID: raw.ID,
		RawType: raw.Type,
		Raw:     model.JSONMap(raw.Data.Object),
	}

	objectID, _ := raw.Data.Object["id"].(string)

	switch raw.Type {
	case "payment_intent.succeeded":
		ev.Kind = gateway.EventCaptureCompleted
		ev.ProviderTxnID = objectID
	case "payment_intent.payment_failed":
		ev.Kind = gateway.EventCaptureFailed
		ev.ProviderTxnID = objectID
	case "charge.refunded":
		ev.Kind = gateway.EventCaptureRefunded
		// chargeイベントはintent idが別フィールドに載る
		intentID, _ := raw.Data.Object["payment_intent"].(string)
		ev.ProviderTxnID = intentID
		ev.CaptureID = objectID
	default:
		ev.Kind = gateway.EventUnknown
	}

	return ev, nil
}

// verifySignature は Stripe-Signature ヘッダ（t=...,v1=...）を検証する。
func (g *Gateway) verifySignature(payload []byte, sigHeader string) error {
	if sigHeader == "" {
		return gateway.NewUnverifiedError("missing stripe signature", nil)
	}

	var ts string
	var candidates []string
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if ts == "" || len(candidates) == 0 {
		return gateway.NewUnverifiedError("malformed stripe signature", nil)
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return gateway.NewUnverifiedError("malformed stripe signature timestamp", err)
	}
	diff := time.Since(time.Unix(tsUnix, 0))
	if diff < 0 {
		diff = -diff
	}
	if diff > signatureTolerance {
		return gateway.NewUnverifiedError("stripe signature timestamp outside tolerance", nil)
	}

	mac := hmac.New(sha256.New, []byte(g.cfg.WebhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, c := range candidates {
		if hmac.Equal([]byte(expected), []byte(c)) {
			return nil
		}
	}
	return gateway.NewUnverifiedError("stripe signature mismatch", nil)
}

// doForm はStripe APIを叩いてJSONをmapで返す。エラー応答はProviderErrorに正規化する。
func (g *Gateway) doForm(ctx context.Context, method, path string, form url.Values, idemKey string) (map[string]any, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.APIBaseURL+path, body)
	if err != nil {
		return nil, gateway.NewProviderError("stripe request build failed", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, gateway.NewProviderError("stripe request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gateway.NewProviderError("stripe response read failed", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error struct {
				Type    string `json:"type"`
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, gateway.NewProviderError(
				fmt.Sprintf("stripe api error (%s): %s", errResp.Error.Code, errResp.Error.Message), nil)
		}
		return nil, gateway.NewProviderError(fmt.Sprintf("stripe api returned http %d", resp.StatusCode), nil)
	}

	var out map[string]any
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, gateway.NewProviderError("stripe response parse failed", err)
	}
	return out, nil
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

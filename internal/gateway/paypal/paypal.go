package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"app/internal/domain/model"
	"app/internal/gateway"

	"github.com/google/uuid"
)

const defaultAPIBaseURL = "https://api-m.sandbox.paypal.com"

type Config struct {
	ClientID   string
	Secret     string
	WebhookID  string
	APIBaseURL string
}

type Gateway struct {
	cfg        Config
	httpClient *http.Client

	// アクセストークンはアダプタ生存中だけキャッシュする
	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
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
	return model.GatewayPayPal
}

func (g *Gateway) Enabled() bool {
	return g.cfg.ClientID != "" && g.cfg.Secret != ""
}

func (g *Gateway) Initiate(ctx context.Context, order model.Order, _ []model.OrderItem, p gateway.InitiateParams) (gateway.InitiateResult, error) {
	if !g.Enabled() {
		id := "PAYPAL_MOCK_" + randomSuffix()
		return gateway.InitiateResult{
			ProviderTxnID: id,
			RedirectURL:   "https://www.sandbox.paypal.com/checkoutnow?token=" + id,
			Mock:          true,
			Response: model.JSONMap{
				"mock":            true,
				"paypal_order_id": id,
			},
		}, nil
	}

	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"reference_id": order.OrderNumber,
				"amount": map[string]any{
					"currency_code": order.Currency,
					"value":         gateway.DecimalString(order.Total),
				},
			},
		},
		"application_context": map[string]any{
			"return_url": p.ReturnURL,
			"cancel_url": p.CancelURL,
		},
	}

	resp, err := g.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", body)
	if err != nil {
		return gateway.InitiateResult{}, err
	}

	id, _ := resp["id"].(string)
	approveURL := linkByRel(resp, "approve")

	return gateway.InitiateResult{
		ProviderTxnID: id,
		RedirectURL:   approveURL,
		Response: model.JSONMap{
			"paypal_order_id": id,
			"approve_url":     approveURL,
		},
	}, nil
}

func (g *Gateway) Confirm(ctx context.Context, payment model.Payment, _ map[string]string) (gateway.ConfirmResult, error) {
	if !g.Enabled() {
		id := "PAYPAL_CAP_MOCK_" + randomSuffix()
		return gateway.ConfirmResult{
			CaptureID: id,
			Mock:      true,
			Response: model.JSONMap{
				"mock":       true,
				"capture_id": id,
			},
		}, nil
	}

	path := "/v2/checkout/orders/" + payment.ProviderTxnID + "/capture"
	resp, err := g.doJSON(ctx, http.MethodPost, path, map[string]any{})
	if err != nil {
		return gateway.ConfirmResult{}, err
	}

	status, _ := resp["status"].(string)
	if status != "COMPLETED" {
		return gateway.ConfirmResult{}, gateway.NewProviderError(
			fmt.Sprintf("paypal capture not completed (status=%s)", status), nil)
	}

	captureID := captureIDFromOrder(resp)

	return gateway.ConfirmResult{
		CaptureID: captureID,
		Response: model.JSONMap{
			"capture_id":    captureID,
			"paypal_status": status,
		},
	}, nil
}

func (g *Gateway) Refund(ctx context.Context, payment model.Payment, amount int64) (gateway.RefundResult, error) {
	if !g.Enabled() {
		id := "PAYPAL_REF_MOCK_" + randomSuffix()
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

	captureID, _ := payment.GatewayResponse["capture_id"].(string)
	if captureID == "" {
		return gateway.RefundResult{}, gateway.NewBusinessRuleError("payment has no capture to refund")
	}

	body := map[string]any{
		"amount": map[string]any{
			"currency_code": payment.Currency,
			"value":         gateway.DecimalString(amount),
		},
	}

	resp, err := g.doJSON(ctx, http.MethodPost, "/v2/payments/captures/"+captureID+"/refund", body)
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
	// webhook idが設定されていればPayPalの検証APIを通す
	if g.Enabled() && g.cfg.WebhookID != "" {
		if err := g.verifySignature(payload, header); err != nil {
			return gateway.WebhookEvent{}, err
		}
	}

	var raw struct {
		ID        string `json:"id"`
		EventType string `json:"event_type"`
		Resource  struct {
			ID                string `json:"id"`
			SupplementaryData struct {
				RelatedIDs struct {
					OrderID string `json:"order_id"`
				} `json:"related_ids"`
			} `json:"supplementary_data"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return gateway.WebhookEvent{}, gateway.NewUnverifiedError("invalid webhook payload", err)
	}

	var rawMap model.JSONMap
	_ = json.Unmarshal(payload, &rawMap)

	ev := gateway.WebhookEvent{
		EventID: raw.ID,
		RawType: raw.EventType,
		// webhookのresource.idはcapture id。注文側のidはrelated_idsに載る。
		ProviderTxnID: raw.Resource.SupplementaryData.RelatedIDs.OrderID,
		CaptureID:     raw.Resource.ID,
		Raw:           rawMap,
	}

	switch raw.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		ev.Kind = gateway.EventCaptureCompleted
	case "PAYMENT.CAPTURE.DENIED":
		ev.Kind = gateway.EventCaptureFailed
	case "PAYMENT.CAPTURE.REFUNDED":
		ev.Kind = gateway.EventCaptureRefunded
	default:
		ev.Kind = gateway.EventUnknown
	}

	return ev, nil
}

func (g *Gateway) verifySignature(payload []byte, header http.Header) error {
	body := map[string]any{
		"auth_algo":         header.Get("Paypal-Auth-Algo"),
		"cert_url":          header.Get("Paypal-Cert-Url"),
		"transmission_id":   header.Get("Paypal-Transmission-Id"),
		"transmission_sig":  header.Get("Paypal-Transmission-Sig"),
		"transmission_time": header.Get("Paypal-Transmission-Time"),
		"webhook_id":        g.cfg.WebhookID,
		"webhook_event":     json.RawMessage(payload),
	}

	resp, err := g.doJSON(context.Background(), http.MethodPost, "/v1/notifications/verify-webhook-signature", body)
	if err != nil {
		return gateway.NewUnverifiedError("paypal webhook verification call failed", err)
	}

	status, _ := resp["verification_status"].(string)
	if status != "SUCCESS" {
		return gateway.NewUnverifiedError("paypal webhook signature mismatch", nil)
	}
	return nil
}

// getAccessToken はclient credentialsでトークンを取り、期限までキャッシュする。
func (g *Gateway) getAccessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.APIBaseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", gateway.NewProviderError("paypal token request build failed", err)
	}
	req.SetBasicAuth(g.cfg.ClientID, g.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", gateway.NewProviderError("paypal token request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", gateway.NewProviderError("paypal token response read failed", err)
	}
	if resp.StatusCode >= 400 {
		return "", gateway.NewProviderError(fmt.Sprintf("paypal token api returned http %d", resp.StatusCode), nil)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tok); err != nil || tok.AccessToken == "" {
		return "", gateway.NewProviderError("paypal token response parse failed", err)
	}

	g.accessToken = tok.AccessToken
	// 期限ぎりぎりで使わないよう1分前倒し
	g.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)

	return g.accessToken, nil
}

func (g *Gateway) doJSON(ctx context.Context, method, path string, body any) (map[string]any, error) {
	token, err := g.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, gateway.NewProviderError("paypal request marshal failed", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.APIBaseURL+path, reader)
	if err != nil {
		return nil, gateway.NewProviderError("paypal request build failed", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, gateway.NewProviderError("paypal request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gateway.NewProviderError("paypal response read failed", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Name != "" {
			return nil, gateway.NewProviderError(
				fmt.Sprintf("paypal api error (%s): %s", errResp.Name, errResp.Message), nil)
		}
		return nil, gateway.NewProviderError(fmt.Sprintf("paypal api returned http %d", resp.StatusCode), nil)
	}

	var out map[string]any
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, gateway.NewProviderError("paypal response parse failed", err)
	}
	return out, nil
}

// linkByRel はHATEOASリンク配列からrel一致のhrefを探す。
func linkByRel(resp map[string]any, rel string) string {
	links, _ := resp["links"].([]any)
	for _, l := range links {
		m, ok := l.(map[string]any)
		if !ok {
			continue
		}
		if r, _ := m["rel"].(string); r == rel {
			href, _ := m["href"].(string)
			return href
		}
	}
	return ""
}

// captureIDFromOrder はcapture応答からcapture idを掘り出す。
func captureIDFromOrder(resp map[string]any) string {
	units, _ := resp["purchase_units"].([]any)
	if len(units) == 0 {
		return ""
	}
	unit, _ := units[0].(map[string]any)
	payments, _ := unit["payments"].(map[string]any)
	captures, _ := payments["captures"].([]any)
	if len(captures) == 0 {
		return ""
	}
	capture, _ := captures[0].(map[string]any)
	id, _ := capture["id"].(string)
	return id
}

func randomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

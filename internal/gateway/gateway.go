package gateway

import (
	"context"
	"net/http"

	"app/internal/domain/model"
)

// InitiateParams は決済開始時にアダプタへ渡す付帯情報。
type InitiateParams struct {
	ReturnURL string
	CancelURL string
	// 注文の配達ゾーン。CODの可否判定に使う。
	Zone *model.DeliveryZone
}

// InitiateResult は決済開始の結果。フロントがそのまま決済を続行できる情報を持つ。
type InitiateResult struct {
	ProviderTxnID  string
	ClientSecret   string
	RedirectURL    string
	PublishableKey string
	Mock           bool
	Response       model.JSONMap
}

type ConfirmResult struct {
	CaptureID string
	Mock      bool
	Response  model.JSONMap
}

type RefundResult struct {
	RefundID string
	Amount   int64
	Mock     bool
	Response model.JSONMap
}

// Gateway は決済プロバイダごとのアダプタの共通契約。
// アダプタはプロバイダAPIとの変換だけを担い、DBへの書き込みはusecase側で行う。
type Gateway interface {
	Name() model.PaymentGateway

	// Enabled は資格情報が設定されているかを返す。falseならモック経路。
	Enabled() bool

	Initiate(ctx context.Context, order model.Order, items []model.OrderItem, p InitiateParams) (InitiateResult, error)
	Confirm(ctx context.Context, payment model.Payment, data map[string]string) (ConfirmResult, error)
	Refund(ctx context.Context, payment model.Payment, amount int64) (RefundResult, error)
}

type WebhookEventKind int

const (
	EventUnknown WebhookEventKind = iota
	EventCaptureCompleted
	EventCaptureFailed
	EventCaptureRefunded
)

// WebhookEvent はプロバイダのwebhookを正規化したもの。
type WebhookEvent struct {
	EventID string
	Kind    WebhookEventKind
	RawType string
	// 初回登録時に保存した取引ID（Stripe: payment intent id / PayPal: order id）
	ProviderTxnID string
	// webhookにしか載らない副次ID（PayPalのcapture id等）。照合のフォールバックに使う。
	CaptureID string
	Raw       model.JSONMap
}

// WebhookGateway はwebhookを受けるプロバイダが追加で実装する。
type WebhookGateway interface {
	Gateway

	// ParseWebhook は署名検証とイベントの正規化を行う。
	// 検証失敗は KindUnverified のエラー。未知のイベント種別はエラーではなく EventUnknown。
	ParseWebhook(payload []byte, header http.Header) (WebhookEvent, error)
}

// Registry は有効なアダプタをゲートウェイ名で引く。
type Registry struct {
	gateways map[model.PaymentGateway]Gateway
}

func NewRegistry(gws ...Gateway) *Registry {
	m := make(map[model.PaymentGateway]Gateway, len(gws))
	for _, g := range gws {
		m[g.Name()] = g
	}
	return &Registry{gateways: m}
}

func (r *Registry) Get(name string) (Gateway, bool) {
	g, ok := r.gateways[model.PaymentGateway(name)]
	return g, ok
}

func (r *Registry) GetWebhook(name string) (WebhookGateway, bool) {
	g, ok := r.gateways[model.PaymentGateway(name)]
	if !ok {
		return nil, false
	}
	wg, ok := g.(WebhookGateway)
	return wg, ok
}

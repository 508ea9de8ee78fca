package usecase

// PaymentResult はチェックアウトAPIが返す共通の形。
// フロントはこの形だけを見る（モック経路でもキーは同じ）。
type PaymentResult struct {
	Success        bool   `json:"success"`
	PaymentID      int64  `json:"payment_id,omitempty"`
	ClientSecret   string `json:"client_secret,omitempty"`
	RedirectURL    string `json:"redirect_url,omitempty"`
	ApproveURL     string `json:"approve_url,omitempty"`
	PublishableKey string `json:"publishable_key,omitempty"`
	InvoiceID      int64  `json:"invoice_id,omitempty"`
	InvoiceNumber  string `json:"invoice_number,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	Mock           bool   `json:"mock,omitempty"`
}

// WebhookResult はwebhookエンドポイントの応答。
type WebhookResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

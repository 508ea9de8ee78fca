package usecase_test

import (
	"context"
	"net/http"
	"sync"
	"time"

	"app/internal/domain/model"
	"app/internal/gateway"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposStub struct {
	orders        repo.OrderRepository
	orderItems    repo.OrderItemRepository
	payments      repo.PaymentRepository
	invoices      repo.InvoiceRepository
	deliveryZones repo.DeliveryZoneRepository
	webhookEvents repo.WebhookEventRepository
}

func (r *TxReposStub) Orders() repo.OrderRepository               { return r.orders }
func (r *TxReposStub) OrderItems() repo.OrderItemRepository       { return r.orderItems }
func (r *TxReposStub) Payments() repo.PaymentRepository           { return r.payments }
func (r *TxReposStub) Invoices() repo.InvoiceRepository           { return r.invoices }
func (r *TxReposStub) DeliveryZones() repo.DeliveryZoneRepository { return r.deliveryZones }
func (r *TxReposStub) WebhookEvents() repo.WebhookEventRepository { return r.webhookEvents }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error) {
	args := m.Called(ctx, orderNumber)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

type PaymentRepoMock struct{ mock.Mock }

func (m *PaymentRepoMock) FindByID(ctx context.Context, paymentID int64) (model.Payment, error) {
	args := m.Called(ctx, paymentID)
	p, _ := args.Get(0).(model.Payment)
	return p, args.Error(1)
}

func (m *PaymentRepoMock) FindByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error) {
	args := m.Called(ctx, orderID)
	p, _ := args.Get(0).(model.Payment)
	return p, args.Bool(1), args.Error(2)
}

func (m *PaymentRepoMock) FindByProviderTxnID(ctx context.Context, providerTxnID string) (model.Payment, bool, error) {
	args := m.Called(ctx, providerTxnID)
	p, _ := args.Get(0).(model.Payment)
	return p, args.Bool(1), args.Error(2)
}

func (m *PaymentRepoMock) FindByCaptureID(ctx context.Context, captureID string) (model.Payment, bool, error) {
	args := m.Called(ctx, captureID)
	p, _ := args.Get(0).(model.Payment)
	return p, args.Bool(1), args.Error(2)
}

func (m *PaymentRepoMock) Create(ctx context.Context, payment model.Payment) (int64, error) {
	args := m.Called(ctx, payment)
	return args.Get(0).(int64), args.Error(1)
}

func (m *PaymentRepoMock) Update(ctx context.Context, payment model.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *PaymentRepoMock) UpdateStatus(ctx context.Context, paymentID int64, status model.PaymentStatus) error {
	args := m.Called(ctx, paymentID, status)
	return args.Error(0)
}

func (m *PaymentRepoMock) UpdateProviderTxnID(ctx context.Context, paymentID int64, providerTxnID string) error {
	args := m.Called(ctx, paymentID, providerTxnID)
	return args.Error(0)
}

func (m *PaymentRepoMock) UpdateRefundedAmount(ctx context.Context, paymentID int64, refundedAmount int64) error {
	args := m.Called(ctx, paymentID, refundedAmount)
	return args.Error(0)
}

func (m *PaymentRepoMock) UpdateGatewayResponse(ctx context.Context, paymentID int64, response model.JSONMap) error {
	args := m.Called(ctx, paymentID, response)
	return args.Error(0)
}

func (m *PaymentRepoMock) ListAdmin(ctx context.Context, f repo.AdminPaymentListFilter) ([]model.Payment, int64, error) {
	args := m.Called(ctx, f)
	items, _ := args.Get(0).([]model.Payment)
	return items, args.Get(1).(int64), args.Error(2)
}

type InvoiceRepoMock struct{ mock.Mock }

func (m *InvoiceRepoMock) FindByOrderID(ctx context.Context, orderID int64) (model.Invoice, bool, error) {
	args := m.Called(ctx, orderID)
	inv, _ := args.Get(0).(model.Invoice)
	return inv, args.Bool(1), args.Error(2)
}

func (m *InvoiceRepoMock) Create(ctx context.Context, invoice model.Invoice) (int64, error) {
	args := m.Called(ctx, invoice)
	return args.Get(0).(int64), args.Error(1)
}

func (m *InvoiceRepoMock) UpdateStatus(ctx context.Context, invoiceID int64, status model.InvoiceStatus) error {
	args := m.Called(ctx, invoiceID, status)
	return args.Error(0)
}

func (m *InvoiceRepoMock) NextInvoiceNumber(ctx context.Context, now time.Time) (string, error) {
	args := m.Called(ctx, now)
	return args.String(0), args.Error(1)
}

type DeliveryZoneRepoMock struct{ mock.Mock }

func (m *DeliveryZoneRepoMock) FindByID(ctx context.Context, zoneID int64) (model.DeliveryZone, error) {
	args := m.Called(ctx, zoneID)
	z, _ := args.Get(0).(model.DeliveryZone)
	return z, args.Error(1)
}

type WebhookEventRepoMock struct{ mock.Mock }

func (m *WebhookEventRepoMock) Create(ctx context.Context, event model.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type StaffUserRepoMock struct{ mock.Mock }

func (m *StaffUserRepoMock) FindByID(ctx context.Context, userID int64) (*model.StaffUser, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.StaffUser)
	return u, args.Error(1)
}

func (m *StaffUserRepoMock) FindByEmail(ctx context.Context, email string) (*model.StaffUser, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.StaffUser)
	return u, args.Error(1)
}

func (m *StaffUserRepoMock) Update(ctx context.Context, user *model.StaffUser) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// =====================
// Publisher / Gateway fakes
// =====================

// PublisherSpy は発行されたイベントをためる
type PublisherSpy struct {
	mu     sync.Mutex
	Events []usecase.PaymentEvent
	Err    error
}

func (p *PublisherSpy) PublishPaymentEvent(event usecase.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, event)
	return p.Err
}

func (p *PublisherSpy) TypesSeen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		types = append(types, e.Type)
	}
	return types
}

// FakeGateway は差し替え可能な関数でGateway/WebhookGatewayを満たす
type FakeGateway struct {
	GatewayName model.PaymentGateway
	Live        bool

	InitiateFn func(ctx context.Context, order model.Order, items []model.OrderItem, p gateway.InitiateParams) (gateway.InitiateResult, error)
	ConfirmFn  func(ctx context.Context, payment model.Payment, data map[string]string) (gateway.ConfirmResult, error)
	RefundFn   func(ctx context.Context, payment model.Payment, amount int64) (gateway.RefundResult, error)
	ParseFn    func(payload []byte, header http.Header) (gateway.WebhookEvent, error)
}

func (f *FakeGateway) Name() model.PaymentGateway { return f.GatewayName }
func (f *FakeGateway) Enabled() bool              { return f.Live }

func (f *FakeGateway) Initiate(ctx context.Context, order model.Order, items []model.OrderItem, p gateway.InitiateParams) (gateway.InitiateResult, error) {
	return f.InitiateFn(ctx, order, items, p)
}

func (f *FakeGateway) Confirm(ctx context.Context, payment model.Payment, data map[string]string) (gateway.ConfirmResult, error) {
	return f.ConfirmFn(ctx, payment, data)
}

func (f *FakeGateway) Refund(ctx context.Context, payment model.Payment, amount int64) (gateway.RefundResult, error) {
	return f.RefundFn(ctx, payment, amount)
}

func (f *FakeGateway) ParseWebhook(payload []byte, header http.Header) (gateway.WebhookEvent, error) {
	return f.ParseFn(payload, header)
}

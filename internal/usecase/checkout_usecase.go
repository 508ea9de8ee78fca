package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"app/internal/domain/model"
	"app/internal/gateway"
	"app/internal/metrics"
	repo "app/internal/repository"

	log "github.com/sirupsen/logrus"
)

type CheckoutUsecase struct {
	registry   *gateway.Registry
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	payments   repo.PaymentRepository
	zones      repo.DeliveryZoneRepository

	publisher Publisher
	metrics   *metrics.PaymentMetrics
	logger    *log.Entry

	now func() time.Time
}

func NewCheckoutUsecase(
	registry *gateway.Registry,
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	payments repo.PaymentRepository,
	zones repo.DeliveryZoneRepository,
	publisher Publisher,
	m *metrics.PaymentMetrics,
) *CheckoutUsecase {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &CheckoutUsecase{
		registry:   registry,
		tx:         tx,
		orders:     orders,
		orderItems: orderItems,
		payments:   payments,
		zones:      zones,
		publisher:  publisher,
		metrics:    m,
		logger:     log.WithField("component", "checkout"),
		now:        time.Now,
	}
}

type InitiatePaymentInput struct {
	OrderID   int64  `json:"order_id"`
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type ConfirmPaymentInput struct {
	OrderID int64             `json:"order_id"`
	Data    map[string]string `json:"data"`
}

type RefundPaymentInput struct {
	// 0なら未返金の全額
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// InitiatePayment は注文の決済を開始する。
// プロバイダ呼び出しはトランザクションの外、DB書き込みは中で行う。
func (u *CheckoutUsecase) InitiatePayment(ctx context.Context, gatewayName string, in InitiatePaymentInput) (PaymentResult, error) {
	g, ok := u.registry.Get(gatewayName)
	if !ok {
		return PaymentResult{}, NewHTTPError(http.StatusNotFound, "unknown payment gateway")
	}
	if in.OrderID <= 0 {
		return PaymentResult{}, NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}

	order, err := u.orders.FindByID(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return PaymentResult{}, NewHTTPError(http.StatusNotFound, "order not found")
		}
		return PaymentResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if order.Status != model.OrderStatusPending {
		return PaymentResult{}, NewHTTPError(http.StatusConflict, "order is not awaiting payment")
	}

	items, err := u.orderItems.ListByOrderID(ctx, order.ID)
	if err != nil {
		return PaymentResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// ゾーンが消えていても決済自体は止めない（COD可否判定ができないだけ）
	var zone *model.DeliveryZone
	if z, zerr := u.zones.FindByID(ctx, order.DeliveryZoneID); zerr == nil {
		zone = &z
	} else if !errors.Is(zerr, repo.ErrNotFound) {
		return PaymentResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// 同じ注文に生きている決済があれば二重開始を拒否。FAILEDの行だけ再利用する。
	existing, found, err := u.payments.FindByOrderID(ctx, order.ID)
	if err != nil {
		return PaymentResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if found && existing.Status != model.PaymentStatusFailed {
		return PaymentResult{}, NewHTTPError(http.StatusConflict, "payment already exists for this order")
	}

	start := u.now()
	res, err := g.Initiate(ctx, order, items, gateway.InitiateParams{
		ReturnURL: in.ReturnURL,
		CancelURL: in.CancelURL,
		Zone:      zone,
	})
	if u.metrics != nil {
		u.metrics.ObserveInitiate(gatewayName, u.now().Sub(start))
	}
	if err != nil {
		return u.initiateFailure(gatewayName, order, err), nil
	}

	payment := model.Payment{
		OrderID:         order.ID,
		Gateway:         g.Name(),
		ProviderTxnID:   res.ProviderTxnID,
		Status:          model.PaymentStatusPending,
		Amount:          order.Total,
		Currency:        order.Currency,
		GatewayResponse: res.Response,
	}

	var invoice model.Invoice

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if found {
			payment.ID = existing.ID
			payment.GatewayResponse = existing.GatewayResponse.Merge(res.Response)
			if err := r.Payments().Update(ctx, payment); err != nil {
				return err
			}
		} else {
			id, err := r.Payments().Create(ctx, payment)
			if err != nil {
				return err
			}
			payment.ID = id
		}

		// 請求書は注文ごとに一度だけ発行
		inv, invFound, err := r.Invoices().FindByOrderID(ctx, order.ID)
		if err != nil {
			return err
		}
		if invFound {
			invoice = inv
		} else {
			num, err := r.Invoices().NextInvoiceNumber(ctx, u.now())
			if err != nil {
				return err
			}
			invoice = model.Invoice{
				OrderID:       order.ID,
				InvoiceNumber: num,
				Status:        model.InvoiceStatusPending,
				Amount:        order.Total,
				Currency:      order.Currency,
				IssuedAt:      u.now(),
			}
			id, err := r.Invoices().Create(ctx, invoice)
			if err != nil {
				return err
			}
			invoice.ID = id
		}

		// CODは配達時決済なので、この時点で注文を確定させる
		if g.Name() == model.GatewayCOD && order.Status.CanTransitionTo(model.OrderStatusConfirmed) {
			return r.Orders().UpdateStatus(ctx, order.ID, model.OrderStatusConfirmed)
		}
		return nil
	})
	if err != nil {
		u.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist payment")
		return PaymentResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if u.metrics != nil {
		u.metrics.PaymentInitiated(gatewayName)
	}
	u.publish(PaymentEvent{
		Type:        EventPaymentInitiated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		PaymentID:   payment.ID,
		Gateway:     gatewayName,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Mock:        res.Mock,
		OccurredAt:  u.now(),
	})

	out := PaymentResult{
		Success:       true,
		PaymentID:     payment.ID,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		Mock:          res.Mock,
	}
	switch g.Name() {
	case model.GatewayStripe:
		out.ClientSecret = res.ClientSecret
		out.PublishableKey = res.PublishableKey
	case model.GatewayPayPal:
		out.ApproveURL = res.RedirectURL
	case model.GatewayAfterpay:
		out.RedirectURL = res.RedirectURL
	case model.GatewayCOD:
		out.Message = "order confirmed, payment due on delivery"
	}
	return out, nil
}

// プロバイダ/業務ルール起因の失敗は200で success:false を返す（HTTPエラーにはしない）。
func (u *CheckoutUsecase) initiateFailure(gatewayName string, order model.Order, err error) PaymentResult {
	if u.metrics != nil {
		u.metrics.PaymentFailed(gatewayName)
	}

	if ge, ok := gateway.AsError(err); ok && ge.Kind == gateway.KindBusinessRule {
		return PaymentResult{Success: false, Message: ge.Message}
	}

	u.logger.WithError(err).WithFields(log.Fields{
		"gateway":  gatewayName,
		"order_id": order.ID,
	}).Error("payment initiation failed")

	out := PaymentResult{Success: false, Message: "payment processing failed"}
	if ge, ok := gateway.AsError(err); ok {
		out.Error = ge.Message
	}
	return out
}

// ConfirmPayment はフロントから戻ってきた決済を確定する。
// 既にCOMPLETEDなら何もせず成功を返す（リトライ・二重POST対策）。
func (u *CheckoutUsecase) ConfirmPayment(ctx context.Context, gatewayName string, in ConfirmPaymentInput) (PaymentResult, error) {
	g, ok := u.registry.Get(gatewayName)
	if !ok {
		return PaymentResult{}, NewHTTPError(http.StatusNotFound, "unknown payment gateway")
	}
	if in.OrderID <= 0 {
		return PaymentResult{}, NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}

	payment, found, err := u.payments.FindByOrderID(ctx, in.OrderID)
	if err != nil {
		return PaymentResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !found {
		return PaymentResult{}, NewHTTPError(http.StatusNotFound, "payment not found")
	}
	if payment.Gateway != g.Name() {
		return PaymentResult{}, NewHTTPError(http.StatusConflict, "payment was initiated with a different gateway")
	}

	if payment.Status == model.PaymentStatusCompleted {
		return PaymentResult{Success: true, PaymentID: payment.ID, Message: "payment already completed"}, nil
	}
	if payment.Status != model.PaymentStatusPending {
		return PaymentResult{}, NewHTTPError(http.StatusConflict, "payment is not confirmable")
	}

	res, err := g.Confirm(ctx, payment, in.Data)
	if err != nil {
		return u.confirmFailure(ctx, gatewayName, payment, err)
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Payments().UpdateStatus(ctx, payment.ID, model.PaymentStatusCompleted); err != nil {
			return err
		}

		blob := payment.GatewayResponse.Merge(res.Response)
		if res.CaptureID != "" {
			blob = blob.Merge(map[string]any{"capture_id": res.CaptureID})
		}
		if err := r.Payments().UpdateGatewayResponse(ctx, payment.ID, blob); err != nil {
			return err
		}

		order, err := r.Orders().FindByID(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		// CODの確定は配達完了を意味する
		next := model.OrderStatusConfirmed
		if g.Name() == model.GatewayCOD {
			next = model.OrderStatusDelivered
		}
		if order.Status.CanTransitionTo(next) {
			if err := r.Orders().UpdateStatus(ctx, order.ID, next); err != nil {
				return err
			}
		}

		inv, invFound, err := r.Invoices().FindByOrderID(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if invFound && inv.Status != model.InvoiceStatusPaid {
			return r.Invoices().UpdateStatus(ctx, inv.ID, model.InvoiceStatusPaid)
		}
		return nil
	})
	if err != nil {
		u.logger.WithError(err).WithField("payment_id", payment.ID).Error("failed to persist payment confirmation")
		return PaymentResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if u.metrics != nil {
		u.metrics.PaymentCompleted(gatewayName)
	}
	u.publishForPayment(ctx, EventPaymentCompleted, payment, res.Mock)

	return PaymentResult{Success: true, PaymentID: payment.ID, Message: "payment completed", Mock: res.Mock}, nil
}

func (u *CheckoutUsecase) confirmFailure(ctx context.Context, gatewayName string, payment model.Payment, err error) (PaymentResult, error) {
	if ge, ok := gateway.AsError(err); ok && ge.Kind == gateway.KindBusinessRule {
		return PaymentResult{Success: false, PaymentID: payment.ID, Message: ge.Message}, nil
	}

	u.logger.WithError(err).WithFields(log.Fields{
		"gateway":    gatewayName,
		"payment_id": payment.ID,
	}).Error("payment confirmation failed")

	txErr := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Payments().UpdateStatus(ctx, payment.ID, model.PaymentStatusFailed)
	})
	if txErr != nil {
		u.logger.WithError(txErr).WithField("payment_id", payment.ID).Error("failed to mark payment as failed")
	}

	if u.metrics != nil {
		u.metrics.PaymentFailed(gatewayName)
	}
	u.publishForPayment(ctx, EventPaymentFailed, payment, false)

	out := PaymentResult{Success: false, PaymentID: payment.ID, Message: "payment processing failed"}
	if ge, ok := gateway.AsError(err); ok {
		out.Error = ge.Message
	}
	return out, nil
}

// RefundPayment は管理者向けの返金。amountが0以下なら未返金の全額を返す。
func (u *CheckoutUsecase) RefundPayment(ctx context.Context, paymentID int64, in RefundPaymentInput) (PaymentResult, error) {
	if paymentID <= 0 {
		return PaymentResult{}, NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}

	payment, err := u.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return PaymentResult{}, NewHTTPError(http.StatusNotFound, "payment not found")
		}
		return PaymentResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if payment.Status != model.PaymentStatusCompleted {
		return PaymentResult{}, NewHTTPError(http.StatusConflict, "payment is not refundable")
	}
	remaining := payment.RemainingRefundable()
	if remaining == 0 {
		return PaymentResult{}, NewHTTPError(http.StatusConflict, "payment is already fully refunded")
	}

	amount := in.Amount
	if amount <= 0 {
		amount = remaining
	}
	if amount > remaining {
		return PaymentResult{}, NewHTTPError(http.StatusBadRequest, "refund amount exceeds refundable balance")
	}

	g, ok := u.registry.Get(string(payment.Gateway))
	if !ok {
		return PaymentResult{}, NewHTTPError(http.StatusServiceUnavailable, "payment gateway unavailable")
	}

	res, err := g.Refund(ctx, payment, amount)
	if err != nil {
		if ge, ok := gateway.AsError(err); ok && ge.Kind == gateway.KindBusinessRule {
			return PaymentResult{Success: false, PaymentID: payment.ID, Message: ge.Message}, nil
		}
		u.logger.WithError(err).WithField("payment_id", payment.ID).Error("refund failed")
		out := PaymentResult{Success: false, PaymentID: payment.ID, Message: "refund processing failed"}
		if ge, ok := gateway.AsError(err); ok {
			out.Error = ge.Message
		}
		return out, nil
	}

	refunded := payment.RefundedAmount + amount
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Payments().UpdateRefundedAmount(ctx, payment.ID, refunded); err != nil {
			return err
		}

		blob := payment.GatewayResponse.Merge(res.Response)
		blob = blob.Merge(map[string]any{
			"refund_id":     res.RefundID,
			"refund_reason": in.Reason,
		})
		if err := r.Payments().UpdateGatewayResponse(ctx, payment.ID, blob); err != nil {
			return err
		}

		// 全額返金で初めてREFUNDEDにする。部分返金はCOMPLETEDのまま残額を追う。
		if refunded >= payment.Amount {
			if err := r.Payments().UpdateStatus(ctx, payment.ID, model.PaymentStatusRefunded); err != nil {
				return err
			}
			inv, invFound, err := r.Invoices().FindByOrderID(ctx, payment.OrderID)
			if err != nil {
				return err
			}
			if invFound {
				return r.Invoices().UpdateStatus(ctx, inv.ID, model.InvoiceStatusCancelled)
			}
		}
		return nil
	})
	if err != nil {
		u.logger.WithError(err).WithField("payment_id", payment.ID).Error("failed to persist refund")
		return PaymentResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if u.metrics != nil {
		u.metrics.PaymentRefunded(string(payment.Gateway))
	}
	event := PaymentEvent{
		Type:       EventPaymentRefunded,
		OrderID:    payment.OrderID,
		PaymentID:  payment.ID,
		Gateway:    string(payment.Gateway),
		Amount:     amount,
		Currency:   payment.Currency,
		Mock:       res.Mock,
		OccurredAt: u.now(),
	}
	if order, oerr := u.orders.FindByID(ctx, payment.OrderID); oerr == nil {
		event.OrderNumber = order.OrderNumber
	}
	u.publish(event)

	return PaymentResult{Success: true, PaymentID: payment.ID, Message: "refund processed", Mock: res.Mock}, nil
}

func (u *CheckoutUsecase) publishForPayment(ctx context.Context, eventType string, payment model.Payment, mock bool) {
	event := PaymentEvent{
		Type:       eventType,
		OrderID:    payment.OrderID,
		PaymentID:  payment.ID,
		Gateway:    string(payment.Gateway),
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		Mock:       mock,
		OccurredAt: u.now(),
	}
	if order, err := u.orders.FindByID(ctx, payment.OrderID); err == nil {
		event.OrderNumber = order.OrderNumber
	}
	u.publish(event)
}

// イベント送信失敗で決済を失敗扱いにはしない
func (u *CheckoutUsecase) publish(event PaymentEvent) {
	if err := u.publisher.PublishPaymentEvent(event); err != nil {
		u.logger.WithError(err).WithField("type", event.Type).Warn("failed to publish payment event")
	}
}

package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/gateway"
	"app/internal/metrics"
	repo "app/internal/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type WebhookUsecase struct {
	registry *gateway.Registry
	tx       repo.TransactionManager
	payments repo.PaymentRepository
	orders   repo.OrderRepository

	publisher Publisher
	metrics   *metrics.PaymentMetrics
	logger    *log.Entry

	now func() time.Time
}

func NewWebhookUsecase(
	registry *gateway.Registry,
	tx repo.TransactionManager,
	payments repo.PaymentRepository,
	orders repo.OrderRepository,
	publisher Publisher,
	m *metrics.PaymentMetrics,
) *WebhookUsecase {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &WebhookUsecase{
		registry:  registry,
		tx:        tx,
		payments:  payments,
		orders:    orders,
		publisher: publisher,
		metrics:   m,
		logger:    log.WithField("component", "webhook"),
		now:       time.Now,
	}
}

// Handle はプロバイダからのwebhookを検証して決済に反映する。
// 未知のイベント種別や対象レコード無しは200で受ける（プロバイダに再送させない）。
// 署名検証の失敗だけは400にする。
func (u *WebhookUsecase) Handle(ctx context.Context, gatewayName string, payload []byte, header http.Header) (WebhookResult, error) {
	g, ok := u.registry.GetWebhook(gatewayName)
	if !ok {
		return WebhookResult{}, NewHTTPError(http.StatusNotFound, "unknown payment gateway")
	}

	event, err := g.ParseWebhook(payload, header)
	if err != nil {
		if ge, ok := gateway.AsError(err); ok && ge.Kind == gateway.KindUnverified {
			u.countEvent(gatewayName, "unverified")
			u.logger.WithError(err).WithField("gateway", gatewayName).Warn("webhook signature verification failed")
			return WebhookResult{}, NewHTTPError(http.StatusBadRequest, "webhook verification failed")
		}
		u.countEvent(gatewayName, "error")
		u.logger.WithError(err).WithField("gateway", gatewayName).Error("failed to parse webhook")
		return WebhookResult{}, NewHTTPError(http.StatusBadRequest, "invalid webhook payload")
	}

	if event.Kind == gateway.EventUnknown {
		u.countEvent(gatewayName, "ignored")
		return WebhookResult{Success: true, Message: "event ignored: " + event.RawType}, nil
	}

	payment, found, err := u.findPayment(ctx, event)
	if err != nil {
		return WebhookResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !found {
		// 先にレコードが消えている・別環境からの配送など。再送されても結果は同じなので200で受ける。
		u.countEvent(gatewayName, "payment_not_found")
		u.logger.WithFields(log.Fields{
			"gateway":         gatewayName,
			"event_type":      event.RawType,
			"provider_txn_id": event.ProviderTxnID,
		}).Warn("webhook for unknown payment")
		return WebhookResult{Success: false, Message: "payment not found"}, nil
	}

	eventID := strings.TrimSpace(event.EventID)
	if eventID == "" {
		// イベントIDを持たないプロバイダ向け。重複排除は効かなくなるが記録は残す。
		eventID = gatewayName + "-" + uuid.NewString()
	}

	var applied bool
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		err := r.WebhookEvents().Create(ctx, model.WebhookEvent{
			EventID:     eventID,
			Gateway:     g.Name(),
			EventType:   event.RawType,
			ProcessedAt: u.now(),
		})
		if err != nil {
			return err
		}
		applied = true
		return u.apply(ctx, r, payment, event)
	})
	if errors.Is(err, repo.ErrDuplicateEvent) {
		u.countEvent(gatewayName, "duplicate")
		return WebhookResult{Success: true, Message: "event already processed"}, nil
	}
	if err != nil {
		u.logger.WithError(err).WithFields(log.Fields{
			"gateway":    gatewayName,
			"event_type": event.RawType,
		}).Error("failed to apply webhook")
		return WebhookResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if applied {
		u.countEvent(gatewayName, "processed")
		u.publishForEvent(ctx, gatewayName, payment, event)
	}
	return WebhookResult{Success: true, Message: "event processed"}, nil
}

// 取引IDで引けなければblob内のcapture_idで引く
func (u *WebhookUsecase) findPayment(ctx context.Context, event gateway.WebhookEvent) (model.Payment, bool, error) {
	payment, found, err := u.payments.FindByProviderTxnID(ctx, event.ProviderTxnID)
	if err != nil || found {
		return payment, found, err
	}
	return u.payments.FindByCaptureID(ctx, event.CaptureID)
}

// apply は正規化済みイベントを決済・注文・請求書に反映する。
// 既に同じ状態なら何もしない（confirmエンドポイント経由で反映済みのケース）。
func (u *WebhookUsecase) apply(ctx context.Context, r repo.TxRepos, payment model.Payment, event gateway.WebhookEvent) error {
	switch event.Kind {
	case gateway.EventCaptureCompleted:
		if payment.Status != model.PaymentStatusPending {
			return nil
		}
		if err := r.Payments().UpdateStatus(ctx, payment.ID, model.PaymentStatusCompleted); err != nil {
			return err
		}
		if event.CaptureID != "" {
			blob := payment.GatewayResponse.Merge(map[string]any{"capture_id": event.CaptureID})
			if err := r.Payments().UpdateGatewayResponse(ctx, payment.ID, blob); err != nil {
				return err
			}
		}

		order, err := r.Orders().FindByID(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if order.Status.CanTransitionTo(model.OrderStatusConfirmed) {
			if err := r.Orders().UpdateStatus(ctx, order.ID, model.OrderStatusConfirmed); err != nil {
				return err
			}
		}

		inv, found, err := r.Invoices().FindByOrderID(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if found && inv.Status != model.InvoiceStatusPaid {
			return r.Invoices().UpdateStatus(ctx, inv.ID, model.InvoiceStatusPaid)
		}
		return nil

	case gateway.EventCaptureFailed:
		if payment.Status != model.PaymentStatusPending {
			return nil
		}
		return r.Payments().UpdateStatus(ctx, payment.ID, model.PaymentStatusFailed)

	case gateway.EventCaptureRefunded:
		if payment.Status == model.PaymentStatusRefunded {
			return nil
		}
		if err := r.Payments().UpdateRefundedAmount(ctx, payment.ID, payment.Amount); err != nil {
			return err
		}
		if err := r.Payments().UpdateStatus(ctx, payment.ID, model.PaymentStatusRefunded); err != nil {
			return err
		}
		inv, found, err := r.Invoices().FindByOrderID(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if found {
			return r.Invoices().UpdateStatus(ctx, inv.ID, model.InvoiceStatusCancelled)
		}
		return nil
	}
	return nil
}

func (u *WebhookUsecase) publishForEvent(ctx context.Context, gatewayName string, payment model.Payment, event gateway.WebhookEvent) {
	var eventType string
	switch event.Kind {
	case gateway.EventCaptureCompleted:
		if payment.Status != model.PaymentStatusPending {
			return
		}
		eventType = EventPaymentCompleted
		if u.metrics != nil {
			u.metrics.PaymentCompleted(gatewayName)
		}
	case gateway.EventCaptureFailed:
		if payment.Status != model.PaymentStatusPending {
			return
		}
		eventType = EventPaymentFailed
		if u.metrics != nil {
			u.metrics.PaymentFailed(gatewayName)
		}
	case gateway.EventCaptureRefunded:
		if payment.Status == model.PaymentStatusRefunded {
			return
		}
		eventType = EventPaymentRefunded
		if u.metrics != nil {
			u.metrics.PaymentRefunded(gatewayName)
		}
	default:
		return
	}

	e := PaymentEvent{
		Type:       eventType,
		OrderID:    payment.OrderID,
		PaymentID:  payment.ID,
		Gateway:    gatewayName,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		OccurredAt: u.now(),
	}
	if order, err := u.orders.FindByID(ctx, payment.OrderID); err == nil {
		e.OrderNumber = order.OrderNumber
	}
	if err := u.publisher.PublishPaymentEvent(e); err != nil {
		u.logger.WithError(err).WithField("type", e.Type).Warn("failed to publish payment event")
	}
}

func (u *WebhookUsecase) countEvent(gatewayName, result string) {
	if u.metrics != nil {
		u.metrics.WebhookEvent(gatewayName, result)
	}
}

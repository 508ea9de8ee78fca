package usecase

import (
	"context"
	"net/http"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type AdminPaymentUsecase struct {
	payments repo.PaymentRepository
}

func NewAdminPaymentUsecase(payments repo.PaymentRepository) *AdminPaymentUsecase {
	return &AdminPaymentUsecase{payments: payments}
}

type AdminPaymentListInput struct {
	Page    int
	Limit   int
	Gateway string
	Status  string
}

type AdminPaymentListOutput struct {
	Items []model.Payment `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

var validGateways = map[string]struct{}{
	string(model.GatewayStripe):   {},
	string(model.GatewayPayPal):   {},
	string(model.GatewayAfterpay): {},
	string(model.GatewayCOD):      {},
}

var validStatuses = map[string]struct{}{
	string(model.PaymentStatusPending):   {},
	string(model.PaymentStatusCompleted): {},
	string(model.PaymentStatusFailed):    {},
	string(model.PaymentStatusRefunded):  {},
}

// List は管理画面向けの決済一覧。新しい順で返す。
func (u *AdminPaymentUsecase) List(ctx context.Context, in AdminPaymentListInput) (AdminPaymentListOutput, error) {
	if in.Page < 0 || in.Limit < 0 {
		return AdminPaymentListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid pagination")
	}
	if in.Gateway != "" {
		if _, ok := validGateways[in.Gateway]; !ok {
			return AdminPaymentListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid gateway filter")
		}
	}
	if in.Status != "" {
		if _, ok := validStatuses[in.Status]; !ok {
			return AdminPaymentListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status filter")
		}
	}

	f := repo.AdminPaymentListFilter{
		Page:    in.Page,
		Limit:   in.Limit,
		Gateway: in.Gateway,
		Status:  in.Status,
	}
	items, total, err := u.payments.ListAdmin(ctx, f)
	if err != nil {
		return AdminPaymentListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	page := f.Page
	if page <= 0 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return AdminPaymentListOutput{Items: items, Total: total, Page: page, Limit: limit}, nil
}

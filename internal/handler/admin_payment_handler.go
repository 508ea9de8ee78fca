package handler

import (
	"net/http"
	"strconv"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 管理画面向けの決済API（ADMINのみ）
type AdminPaymentHandler struct {
	list     *usecase.AdminPaymentUsecase
	checkout *usecase.CheckoutUsecase
}

func NewAdminPaymentHandler(list *usecase.AdminPaymentUsecase, checkout *usecase.CheckoutUsecase) *AdminPaymentHandler {
	return &AdminPaymentHandler{list: list, checkout: checkout}
}

func (h *AdminPaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, staffRepo repository.StaffUserRepository) {
	g := e.Group("/api/v1/admin/payments")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(staffRepo))
	g.Use(middleware.AdminRoleGuard())

	g.GET("", h.listPayments)
	g.POST("/:id/refund", h.refund)
}

func (h *AdminPaymentHandler) listPayments(c echo.Context) error {
	// page（default 1）
	page := 1
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
		}
		page = p
	}

	// limit（default 50）
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	out, err := h.list.List(c.Request().Context(), usecase.AdminPaymentListInput{
		Page:    page,
		Limit:   limit,
		Gateway: c.QueryParam("gateway"),
		Status:  c.QueryParam("status"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type RefundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (h *AdminPaymentHandler) refund(c echo.Context) error {
	paymentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || paymentID <= 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid payment id"})
	}

	var req RefundRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.checkout.RefundPayment(c.Request().Context(), paymentID, usecase.RefundPaymentInput{
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

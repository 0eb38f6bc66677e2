// Package api содержит HTTP обработчики для REST API авторизации платежей.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/payment-system/internal/domain"
	"example.com/payment-system/internal/orchestrator"
	"example.com/payment-system/internal/outcome"
	"example.com/payment-system/pkg/logger"
)

// PaymentHandler — обработчик платежей.
type PaymentHandler struct {
	orchestrator orchestrator.Orchestrator
	attempts     outcome.AttemptRecorder
}

// NewPaymentHandler создаёт новый обработчик платежей.
func NewPaymentHandler(orch orchestrator.Orchestrator, attempts outcome.AttemptRecorder) *PaymentHandler {
	return &PaymentHandler{
		orchestrator: orch,
		attempts:     attempts,
	}
}

// === Request/Response DTOs ===

// AuthorizePaymentRequest — запрос на авторизацию платежа.
type AuthorizePaymentRequest struct {
	PaymentID         string          `json:"payment_id" binding:"required,uuid"`
	Reference         string          `json:"reference" binding:"required,min=1"`
	Customer          CustomerRequest `json:"customer" binding:"required"`
	Method            string          `json:"method" binding:"required"`
	Card              *CardRequest    `json:"card,omitempty"`
	AuthorizationType string          `json:"authorization_type" binding:"required"`
	Amount            int64           `json:"amount" binding:"required,min=1"`
	Currency          string          `json:"currency" binding:"required,len=3"`
}

// CustomerRequest — покупатель в запросе на авторизацию.
type CustomerRequest struct {
	ID      string `json:"id" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Country string `json:"country" binding:"omitempty,len=2"`
}

// CardRequest — данные карты в запросе. PAN принимается только маскированным.
type CardRequest struct {
	Brand       string `json:"brand" binding:"required"`
	MaskedPAN   string `json:"masked_pan" binding:"required"`
	ExpiryMonth int    `json:"expiry_month" binding:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" binding:"required,min=2024"`
}

// ConfirmPaymentRequest — запрос на подтверждение после действия клиента.
// Параметры передаются шлюзу как есть (результат challenge, fingerprint и т.д.).
type ConfirmPaymentRequest struct {
	Params map[string]any `json:"params"`
}

// PaymentResponse — итог обработки платежа в ответе.
type PaymentResponse struct {
	PaymentID string                `json:"payment_id"`
	Reference string                `json:"reference,omitempty"`
	Status    string                `json:"status"`
	Action    *ClientActionResponse `json:"action,omitempty"`
	Reason    string                `json:"reason,omitempty"`
	Cause     string                `json:"cause,omitempty"`
	Timeout   bool                  `json:"timeout,omitempty"`
}

// ClientActionResponse — требуемое действие клиента в ответе.
type ClientActionResponse struct {
	Kind string            `json:"kind"`
	URL  string            `json:"url,omitempty"`
	Data map[string]string `json:"data,omitempty"`
}

// AttemptResponse — попытка авторизации в ответе.
type AttemptResponse struct {
	PaymentID  string `json:"payment_id"`
	Reference  string `json:"reference"`
	AccountID  string `json:"account_id"`
	Attempt    int    `json:"attempt"`
	Phase      string `json:"phase"`
	Succeeded  bool   `json:"succeeded"`
	RecordedAt int64  `json:"recorded_at"`
}

// ListAttemptsResponse — ответ на запрос попыток авторизации.
type ListAttemptsResponse struct {
	Attempts []AttemptResponse `json:"attempts"`
}

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// === Handlers ===

// Authorize запускает авторизацию нового платежа.
// POST /api/v1/payments
func (h *PaymentHandler) Authorize(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var req AuthorizePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Невалидный запрос на авторизацию платежа")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидные данные запроса",
		})
		return
	}

	payload := domain.PaymentPayload{
		PaymentID:              req.PaymentID,
		AuthorizationReference: req.Reference,
		Customer: domain.Customer{
			ID:      req.Customer.ID,
			Email:   req.Customer.Email,
			Country: req.Customer.Country,
		},
		Method:            domain.PaymentMethod(req.Method),
		AuthorizationType: domain.AuthorizationType(req.AuthorizationType),
		Amount:            req.Amount,
		Currency:          req.Currency,
	}
	if req.Card != nil {
		payload.Card = &domain.CardSummary{
			Brand:       req.Card.Brand,
			MaskedPAN:   req.Card.MaskedPAN,
			ExpiryMonth: req.Card.ExpiryMonth,
			ExpiryYear:  req.Card.ExpiryYear,
		}
	}

	result := h.orchestrator.Authorize(ctx, payload)

	log.Info().
		Str("payment_id", result.PaymentID).
		Str("outcome", string(result.Kind)).
		Msg("Авторизация платежа завершена")

	c.JSON(statusFor(result.Kind), toPaymentResponse(result))
}

// Confirm продолжает обработку платежа после действия клиента.
// POST /api/v1/payments/:id/confirm
func (h *PaymentHandler) Confirm(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	paymentID := c.Param("id")
	if paymentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "ID платежа обязателен",
		})
		return
	}

	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Невалидный запрос на подтверждение платежа")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидные данные запроса",
		})
		return
	}

	result := h.orchestrator.Confirm(ctx, paymentID, req.Params)

	log.Info().
		Str("payment_id", result.PaymentID).
		Str("outcome", string(result.Kind)).
		Msg("Подтверждение платежа завершено")

	c.JSON(statusFor(result.Kind), toPaymentResponse(result))
}

// ListAttempts возвращает историю попыток авторизации платежа.
// GET /api/v1/payments/:id/attempts
func (h *PaymentHandler) ListAttempts(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	paymentID := c.Param("id")
	if paymentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "ID платежа обязателен",
		})
		return
	}

	records, err := h.attempts.List(ctx, paymentID)
	if err != nil {
		log.Error().Err(err).Str("payment_id", paymentID).Msg("Ошибка чтения попыток авторизации")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	attempts := make([]AttemptResponse, len(records))
	for i, r := range records {
		attempts[i] = AttemptResponse{
			PaymentID:  r.PaymentID,
			Reference:  r.Reference,
			AccountID:  r.AccountID,
			Attempt:    int(r.Attempt),
			Phase:      string(r.Phase),
			Succeeded:  r.Succeeded,
			RecordedAt: r.RecordedAt.Unix(),
		}
	}

	c.JSON(http.StatusOK, ListAttemptsResponse{Attempts: attempts})
}

// === Helper functions ===

// statusFor отображает итог обработки в HTTP статус.
func statusFor(kind outcome.ResponseKind) int {
	switch kind {
	case outcome.ResponseAuthorized:
		return http.StatusOK
	case outcome.ResponseClientActionFromGateway:
		return http.StatusAccepted
	case outcome.ResponseRejectedByFraudEvaluation,
		outcome.ResponseRejectedByRouting,
		outcome.ResponseRejectedByAuthentication,
		outcome.ResponseRejectedByECIVerification,
		outcome.ResponseRejectedNoMoreRetries:
		return http.StatusPaymentRequired
	case outcome.ResponseInvalidPaymentStatus:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// toPaymentResponse преобразует outcome.Response в response DTO.
func toPaymentResponse(r outcome.Response) PaymentResponse {
	resp := PaymentResponse{
		PaymentID: r.PaymentID,
		Reference: r.Reference,
		Status:    string(r.Kind),
		Reason:    r.Reason,
		Cause:     r.Cause,
		Timeout:   r.Timeout,
	}
	if r.Action != nil {
		resp.Action = &ClientActionResponse{
			Kind: string(r.Action.Kind),
			URL:  r.Action.URL,
			Data: r.Action.Data,
		}
	}
	return resp
}

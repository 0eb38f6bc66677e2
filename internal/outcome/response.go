// Package outcome преобразует терминальное или приостановленное состояние
// платежа в ответ вызывающей стороне и ведёт read model попыток авторизации.
package outcome

import (
	"fmt"

	"example.com/payment-system/internal/domain"
)

// ResponseKind — вид ответа на запрос авторизации или подтверждения.
type ResponseKind string

const (
	ResponseAuthorized                 ResponseKind = "AUTHORIZED"
	ResponseRejectedByFraudEvaluation  ResponseKind = "REJECTED_BY_FRAUD_EVALUATION"
	ResponseRejectedByRouting          ResponseKind = "REJECTED_BY_ROUTING"
	ResponseRejectedByAuthentication   ResponseKind = "REJECTED_BY_AUTHENTICATION"
	ResponseRejectedByECIVerification  ResponseKind = "REJECTED_BY_ECI_VERIFICATION"
	ResponseRejectedNoMoreRetries      ResponseKind = "REJECTED_BY_GATEWAY_NO_MORE_RETRIES"
	ResponseClientActionFromGateway    ResponseKind = "CLIENT_ACTION_FROM_GATEWAY"
	ResponseInvalidPaymentStatus       ResponseKind = "INVALID_PAYMENT_STATUS"
	ResponseFailed                     ResponseKind = "FAILED"
)

// Response — итог обработки платежа, возвращаемый вызывающей стороне.
type Response struct {
	Kind      ResponseKind         `json:"kind"`
	PaymentID string               `json:"payment_id"`
	Reference string               `json:"reference,omitempty"`
	Action    *domain.ClientAction `json:"action,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	Timeout   bool                 `json:"timeout,omitempty"`
	Cause     string               `json:"cause,omitempty"`
}

// Failed строит ответ о технической ошибке обработки.
func Failed(paymentID, reason string) Response {
	return Response{Kind: ResponseFailed, PaymentID: paymentID, Reason: reason}
}

// InvalidPaymentStatus строит ответ на подтверждение платежа, который
// не ожидает действия клиента.
func InvalidPaymentStatus(paymentID string) Response {
	return Response{Kind: ResponseInvalidPaymentStatus, PaymentID: paymentID}
}

// FromPayment отображает текущую фазу платежа в ответ. Агрегат к этому
// моменту либо терминален, либо ждёт действия клиента.
func FromPayment(p *domain.Payment) Response {
	resp := Response{PaymentID: p.ID(), Reference: p.Reference()}

	switch p.Phase() {
	case domain.PhaseCaptured, domain.PhaseAuthorized:
		resp.Kind = ResponseAuthorized
	case domain.PhaseRejectedByRisk:
		resp.Kind = ResponseRejectedByFraudEvaluation
	case domain.PhaseRejectedByRouting:
		resp.Kind = ResponseRejectedByRouting
	case domain.PhaseRejectedByAuthentication:
		resp.Kind = ResponseRejectedByAuthentication
		resp.Reason = p.ErrorReason()
	case domain.PhaseRejectedByECIVerification:
		resp.Kind = ResponseRejectedByECIVerification
	case domain.PhaseRejectedByGatewayAndNotRetriable, domain.PhaseRejectedBySameAccountRetry:
		resp.Kind = ResponseRejectedNoMoreRetries
		resp.Reason = p.ErrorReason()
	case domain.PhaseFailed:
		resp.Kind = ResponseFailed
		resp.Reason = p.FailureReason()
		resp.Cause = p.FailureCause()
		resp.Timeout = p.FailureTimeout()
	default:
		if p.Phase().IsClientActionPending() {
			resp.Kind = ResponseClientActionFromGateway
			resp.Action = p.ClientAction()
			return resp
		}
		// Обработка остановилась в промежуточной фазе, это дефект оркестрации.
		resp.Kind = ResponseFailed
		resp.Reason = fmt.Sprintf("неожиданная фаза платежа: %s", p.Phase())
	}
	return resp
}

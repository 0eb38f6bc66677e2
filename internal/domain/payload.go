// Package domain содержит агрегат платежа и его state machine.
// Агрегат — чистая, реплицируемая свёртка журнала событий: текущая фаза
// всегда выводится применением событий от начальной фазы.
package domain

import "errors"

// PaymentMethod — способ оплаты.
type PaymentMethod string

const (
	// MethodCreditCard — оплата банковской картой.
	MethodCreditCard PaymentMethod = "CREDIT_CARD"

	// MethodKlarna — оплата через Klarna.
	MethodKlarna PaymentMethod = "KLARNA"

	// MethodPayPal — оплата через PayPal.
	MethodPayPal PaymentMethod = "PAYPAL"
)

// RequiresCombinedAuth возвращает true для методов, которые не поддерживают
// раздельную аутентификацию — для них авторизация и аутентификация
// выполняются одним вызовом шлюза.
func (m PaymentMethod) RequiresCombinedAuth() bool {
	return m == MethodKlarna || m == MethodPayPal
}

// AuthorizationType — тип авторизации платежа.
type AuthorizationType string

const (
	// PreAuthorization — блокировка средств без списания (capture отдельно).
	PreAuthorization AuthorizationType = "PRE_AUTHORIZATION"

	// FullAuthorization — авторизация со списанием средств сразу.
	FullAuthorization AuthorizationType = "FULL_AUTHORIZATION"
)

// Customer — данные покупателя, участвующие в принятии решений.
type Customer struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Country string `json:"country"`
}

// CardSummary — обезличенные данные карты (без PCI-данных).
type CardSummary struct {
	Brand       string `json:"brand"`
	MaskedPAN   string `json:"masked_pan"`
	ExpiryMonth int `json:"expiry_month"`
	ExpiryYear  int `json:"expiry_year"`
}

// PaymentPayload — неизменяемый запрос на авторизацию платежа.
// Задаётся один раз при приёме и больше не меняется.
type PaymentPayload struct {
	PaymentID              string            `json:"payment_id"`
	AuthorizationReference string            `json:"authorization_reference"`
	Customer               Customer          `json:"customer"`
	Method                 PaymentMethod     `json:"method"`
	Card                   *CardSummary      `json:"card,omitempty"`
	AuthorizationType      AuthorizationType `json:"authorization_type"`
	Amount                 int64             `json:"amount"`
	Currency               string            `json:"currency"`
}

// Validate проверяет корректность полей запроса.
func (p *PaymentPayload) Validate() error {
	if p.PaymentID == "" {
		return errors.New("payment_id обязателен")
	}
	if p.AuthorizationReference == "" {
		return errors.New("authorization_reference обязателен")
	}
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.Currency == "" {
		return errors.New("currency обязательна")
	}
	switch p.Method {
	case MethodCreditCard, MethodKlarna, MethodPayPal:
	default:
		return ErrUnknownPaymentMethod
	}
	switch p.AuthorizationType {
	case PreAuthorization, FullAuthorization:
	default:
		return ErrUnknownAuthorizationType
	}
	return nil
}

// AccountAction — режим обработки, заданный для банковского аккаунта.
type AccountAction string

const (
	// AccountActionThreeDS — аккаунт требует 3DS-аутентификацию.
	AccountActionThreeDS AccountAction = "THREE_DS"

	// AccountActionMoto — телефонные/почтовые заказы, аутентификация невозможна.
	AccountActionMoto AccountAction = "MOTO"

	// AccountActionEcommerce — обычный e-commerce без аутентификации.
	AccountActionEcommerce AccountAction = "ECOMMERCE"
)

// Account — банковский аккаунт, выбранный маршрутизацией.
type Account struct {
	ID     string        `json:"id"`
	Action AccountAction `json:"action"`
}

// RiskOutcome — вердикт фрод-оценки для одобренного платежа.
type RiskOutcome string

const (
	// RiskFrictionless — низкий риск, аутентификация без участия клиента.
	RiskFrictionless RiskOutcome = "FRICTIONLESS"

	// RiskAuthenticationMandatory — аутентификация клиента обязательна.
	RiskAuthenticationMandatory RiskOutcome = "AUTHENTICATION_MANDATORY"
)

// ThreeDSKind — вид 3DS-статуса в ответе шлюза.
type ThreeDSKind string

const (
	NoThreeDS      ThreeDSKind = "NO_THREE_DS"
	PendingThreeDS ThreeDSKind = "PENDING_THREE_DS"
	ThreeDS        ThreeDSKind = "THREE_DS"
)

// ExemptionStatus — статус заявки на exemption (освобождение от 3DS).
type ExemptionStatus string

const (
	ExemptionAccepted     ExemptionStatus = "ACCEPTED"
	ExemptionRejected     ExemptionStatus = "REJECTED"
	ExemptionNotRequested ExemptionStatus = "NOT_REQUESTED"
)

// ECI — Electronic Commerce Indicator, результат 3DS-аутентификации.
type ECI string

const (
	ECISuccessful ECI = "SUCCESSFUL"
	ECIAttempted  ECI = "ATTEMPTED"
	ECIRejected   ECI = "REJECTED"
)

// ThreeDSStatus — 3DS-данные, приходящие с каждым ответом шлюза.
type ThreeDSStatus struct {
	Kind      ThreeDSKind     `json:"kind"`
	Exemption ExemptionStatus `json:"exemption,omitempty"`
	Version   string          `json:"version,omitempty"`
	ECI       ECI             `json:"eci,omitempty"`
}

// ClientActionKind — вид действия, требуемого от клиента.
type ClientActionKind string

const (
	// ClientActionFingerprint — сбор browser fingerprint (3DS2).
	ClientActionFingerprint ClientActionKind = "FINGERPRINT"

	// ClientActionChallenge — challenge-подтверждение пользователем.
	ClientActionChallenge ClientActionKind = "CHALLENGE"

	// ClientActionRedirect — редирект на страницу провайдера.
	ClientActionRedirect ClientActionKind = "REDIRECT"
)

// ClientAction — действие на стороне клиента, запрошенное шлюзом.
type ClientAction struct {
	Kind ClientActionKind  `json:"kind"`
	URL  string            `json:"url,omitempty"`
	Data map[string]string `json:"data,omitempty"`
}

package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType — тип доменного события платежа.
type EventType string

const (
	EventPaymentRequested        EventType = "PAYMENT_REQUESTED"
	EventRiskEvaluated           EventType = "RISK_EVALUATED"
	EventRoutingEvaluated        EventType = "ROUTING_EVALUATED"
	EventAuthMethodDecided       EventType = "AUTH_METHOD_DECIDED"
	EventAuthenticationStarted   EventType = "AUTHENTICATION_STARTED"
	EventReturnedFromClient      EventType = "RETURNED_FROM_CLIENT"
	EventAuthenticationConfirmed EventType = "AUTHENTICATION_CONFIRMED"
	EventEciVerified             EventType = "ECI_VERIFIED"
	EventAuthorizationRequested  EventType = "AUTHORIZATION_REQUESTED"
	EventConfirmationRequested   EventType = "CONFIRMATION_REQUESTED"
	EventCapturedChecked         EventType = "CAPTURED_CHECKED"
	EventTriedToRetry            EventType = "TRIED_TO_RETRY"
)

// Event — неизменяемый факт о платеже. События — единственный законный
// драйвер переходов state machine; журнал append-only, replay детерминирован.
type Event interface {
	EventID() string
	PaymentID() string
	Version() Version
	Type() EventType
	OccurredAt() time.Time
}

// BaseEvent — общие поля всех событий платежа.
type BaseEvent struct {
	ID        string    `json:"id"`
	Payment   string    `json:"payment_id"`
	Ver       Version   `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

func (e BaseEvent) EventID() string {
	return e.ID
}

func (e BaseEvent) PaymentID() string {
	return e.Payment
}

func (e BaseEvent) Version() Version {
	return e.Ver
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.CreatedAt
}

// PaymentRequested — принят запрос на авторизацию платежа.
type PaymentRequested struct {
	BaseEvent
	Payload PaymentPayload `json:"payload"`
}

func (PaymentRequested) Type() EventType { return EventPaymentRequested }

// RiskEvaluated — получен результат фрод-оценки.
type RiskEvaluated struct {
	BaseEvent
	Result RiskResult `json:"result"`
}

func (RiskEvaluated) Type() EventType { return EventRiskEvaluated }

// RoutingEvaluated — получен результат маршрутизации
// (первичной или повторной — фаза агрегата определяет ветвление).
type RoutingEvaluated struct {
	BaseEvent
	Result RoutingResult `json:"result"`
}

func (RoutingEvaluated) Type() EventType { return EventRoutingEvaluated }

// AuthMethodDecided — выбран способ аутентификации.
// Событие фиксирует значение фичефлага DECOUPLED_AUTH на момент решения,
// чтобы replay не зависел от текущего состояния флагов.
type AuthMethodDecided struct {
	BaseEvent
	DecoupledEnabled bool `json:"decoupled_enabled"`
}

func (AuthMethodDecided) Type() EventType { return EventAuthMethodDecided }

// AuthenticationStarted — запущена аутентификация (раздельная или
// комбинированная), получен результат шлюза.
type AuthenticationStarted struct {
	BaseEvent
	Result GatewayResult `json:"result"`
}

func (AuthenticationStarted) Type() EventType { return EventAuthenticationStarted }

// ReturnedFromClient — клиент вернулся с параметрами подтверждения.
type ReturnedFromClient struct {
	BaseEvent
	Params map[string]any `json:"params"`
}

func (ReturnedFromClient) Type() EventType { return EventReturnedFromClient }

// AuthenticationConfirmed — получен результат подтверждения аутентификации
// после возврата клиента.
type AuthenticationConfirmed struct {
	BaseEvent
	Result GatewayResult `json:"result"`
}

func (AuthenticationConfirmed) Type() EventType { return EventAuthenticationConfirmed }

// EciVerified — выполнена проверка ECI/exemption. Событие фиксирует значение
// фичефлага ECI_CHECK; вердикт вычисляется из него и сохранённого
// 3DS-статуса детерминированно.
type EciVerified struct {
	BaseEvent
	EciCheckForced bool `json:"eci_check_forced"`
}

func (EciVerified) Type() EventType { return EventEciVerified }

// AuthorizationRequested — запрошена авторизация у шлюза, получен результат.
type AuthorizationRequested struct {
	BaseEvent
	Result GatewayResult `json:"result"`
}

func (AuthorizationRequested) Type() EventType { return EventAuthorizationRequested }

// ConfirmationRequested — запрошено подтверждение авторизации после возврата
// клиента, получен результат.
type ConfirmationRequested struct {
	BaseEvent
	Result GatewayResult `json:"result"`
}

func (ConfirmationRequested) Type() EventType { return EventConfirmationRequested }

// CapturedChecked — проверено, требуется ли немедленное списание.
type CapturedChecked struct {
	BaseEvent
}

func (CapturedChecked) Type() EventType { return EventCapturedChecked }

// TriedToRetry — принято решение о повторной попытке после отказа шлюза.
// Исход (повтор или терминальный отказ) вычисляется из счётчика попыток
// агрегата, поэтому событие не несёт дополнительных данных.
type TriedToRetry struct {
	BaseEvent
}

func (TriedToRetry) Type() EventType { return EventTriedToRetry }

// =============================================================================
// Сериализация событий
// =============================================================================

// MarshalEvent сериализует событие в JSON для хранения в журнале.
func MarshalEvent(evt Event) ([]byte, error) {
	return json.Marshal(evt)
}

// UnmarshalEvent восстанавливает событие из JSON по его типу.
func UnmarshalEvent(eventType EventType, data []byte) (Event, error) {
	var evt Event
	switch eventType {
	case EventPaymentRequested:
		evt = &PaymentRequested{}
	case EventRiskEvaluated:
		evt = &RiskEvaluated{}
	case EventRoutingEvaluated:
		evt = &RoutingEvaluated{}
	case EventAuthMethodDecided:
		evt = &AuthMethodDecided{}
	case EventAuthenticationStarted:
		evt = &AuthenticationStarted{}
	case EventReturnedFromClient:
		evt = &ReturnedFromClient{}
	case EventAuthenticationConfirmed:
		evt = &AuthenticationConfirmed{}
	case EventEciVerified:
		evt = &EciVerified{}
	case EventAuthorizationRequested:
		evt = &AuthorizationRequested{}
	case EventConfirmationRequested:
		evt = &ConfirmationRequested{}
	case EventCapturedChecked:
		evt = &CapturedChecked{}
	case EventTriedToRetry:
		evt = &TriedToRetry{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	if err := json.Unmarshal(data, evt); err != nil {
		return nil, fmt.Errorf("ошибка десериализации события %s: %w", eventType, err)
	}
	return evt, nil
}

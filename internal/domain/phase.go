package domain

// Phase — фаза авторизации платежа в state machine.
type Phase string

const (
	// PhaseRequested — платёж создан, ожидает приёма payload.
	PhaseRequested Phase = "REQUESTED"

	// PhaseRiskPending — ожидается результат фрод-оценки.
	PhaseRiskPending Phase = "RISK_PENDING"

	// PhaseRoutingPending — ожидается выбор банковского аккаунта.
	PhaseRoutingPending Phase = "ROUTING_PENDING"

	// PhaseAuthMethodPending — ожидается выбор способа аутентификации.
	PhaseAuthMethodPending Phase = "AUTH_METHOD_PENDING"

	// PhaseAuthenticationPending — ожидается результат раздельной аутентификации.
	PhaseAuthenticationPending Phase = "AUTHENTICATION_PENDING"

	// PhaseAuthenticationClientActionPending — аутентификация ждёт действия клиента.
	PhaseAuthenticationClientActionPending Phase = "AUTHENTICATION_CLIENT_ACTION_PENDING"

	// PhaseAuthenticationConfirmPending — клиент вернулся, ожидается подтверждение аутентификации.
	PhaseAuthenticationConfirmPending Phase = "AUTHENTICATION_CONFIRM_PENDING"

	// PhaseECIVerificationPending — ожидается проверка ECI/exemption.
	PhaseECIVerificationPending Phase = "ECI_VERIFICATION_PENDING"

	// PhaseCombinedAuthPending — ожидается результат комбинированной
	// аутентификации-и-авторизации (один вызов шлюза).
	PhaseCombinedAuthPending Phase = "COMBINED_AUTH_PENDING"

	// PhaseCombinedClientActionPending — комбинированный поток ждёт действия клиента.
	PhaseCombinedClientActionPending Phase = "COMBINED_CLIENT_ACTION_PENDING"

	// PhaseCombinedConfirmPending — клиент вернулся, ожидается подтверждение
	// комбинированного потока.
	PhaseCombinedConfirmPending Phase = "COMBINED_CONFIRM_PENDING"

	// PhaseAuthorizationPending — ожидается результат авторизации шлюза.
	PhaseAuthorizationPending Phase = "AUTHORIZATION_PENDING"

	// PhaseAuthorizationClientActionPending — авторизация ждёт действия клиента.
	PhaseAuthorizationClientActionPending Phase = "AUTHORIZATION_CLIENT_ACTION_PENDING"

	// PhaseAuthorizationConfirmPending — клиент вернулся, ожидается подтверждение авторизации.
	PhaseAuthorizationConfirmPending Phase = "AUTHORIZATION_CONFIRM_PENDING"

	// PhaseCaptureVerificationPending — ожидается проверка списания (capture).
	PhaseCaptureVerificationPending Phase = "CAPTURE_VERIFICATION_PENDING"

	// PhaseRoutingRetryPending — повторная маршрутизация после отказа шлюза.
	PhaseRoutingRetryPending Phase = "ROUTING_RETRY_PENDING"

	// PhaseRejectedByGateway — шлюз отклонил попытку; не терминальная фаза,
	// решение о повторе ещё не принято.
	PhaseRejectedByGateway Phase = "REJECTED_BY_GATEWAY"
)

// Терминальные фазы.
const (
	// PhaseRejectedByRisk — платёж отклонён фрод-оценкой.
	PhaseRejectedByRisk Phase = "REJECTED_BY_RISK"

	// PhaseRejectedByRouting — маршрутизация отказала в проведении платежа.
	PhaseRejectedByRouting Phase = "REJECTED_BY_ROUTING"

	// PhaseRejectedByAuthentication — аутентификация отклонена.
	PhaseRejectedByAuthentication Phase = "REJECTED_BY_AUTHENTICATION"

	// PhaseRejectedByECIVerification — проверка ECI не пройдена.
	PhaseRejectedByECIVerification Phase = "REJECTED_BY_ECI_VERIFICATION"

	// PhaseRejectedByGatewayAndNotRetriable — отказ шлюза, лимит повторов исчерпан.
	PhaseRejectedByGatewayAndNotRetriable Phase = "REJECTED_BY_GATEWAY_NOT_RETRIABLE"

	// PhaseRejectedBySameAccountRetry — повторная маршрутизация вернула тот же
	// аккаунт, повтор бессмыслен.
	PhaseRejectedBySameAccountRetry Phase = "REJECTED_BY_SAME_ACCOUNT_RETRY"

	// PhaseFailed — технический сбой; причина в FailureReason агрегата.
	PhaseFailed Phase = "FAILED"

	// PhaseCaptured — платёж авторизован и списан (full authorization).
	PhaseCaptured Phase = "CAPTURED"

	// PhaseAuthorized — платёж авторизован без списания (pre-authorization).
	PhaseAuthorized Phase = "AUTHORIZED"
)

// IsTerminal возвращает true для финальных фаз: после них агрегат
// фактически неизменяем.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseRejectedByRisk,
		PhaseRejectedByRouting,
		PhaseRejectedByAuthentication,
		PhaseRejectedByECIVerification,
		PhaseRejectedByGatewayAndNotRetriable,
		PhaseRejectedBySameAccountRetry,
		PhaseFailed,
		PhaseCaptured,
		PhaseAuthorized:
		return true
	}
	return false
}

// IsClientActionPending возвращает true, если платёж припаркован в ожидании
// возврата клиента (редирект, challenge, fingerprint).
func (p Phase) IsClientActionPending() bool {
	switch p {
	case PhaseAuthenticationClientActionPending,
		PhaseCombinedClientActionPending,
		PhaseAuthorizationClientActionPending:
		return true
	}
	return false
}

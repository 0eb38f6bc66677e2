package domain

// SideEffect — уведомление о бизнес-вехе платежа для внешних потребителей
// (телеметрия, вебхуки). Не несёт payload и никак не влияет на дальнейшие
// переходы агрегата. Накапливается вместе с доменными событиями и
// публикуется независимо от персистентности; при replay журнала
// side effects не эмитятся повторно.
type SideEffect string

const (
	SideEffectFraudEvaluationCompleted       SideEffect = "FRAUD_EVALUATION_COMPLETED"
	SideEffectRoutingCompleted               SideEffect = "ROUTING_COMPLETED"
	SideEffectAuthorizationAttemptRequested  SideEffect = "AUTHORIZATION_ATTEMPT_REQUESTED"
	SideEffectAuthorizationAttemptRejected   SideEffect = "AUTHORIZATION_ATTEMPT_REJECTED"
	SideEffectPaymentAuthorized              SideEffect = "PAYMENT_AUTHORIZED"
	SideEffectPaymentRejected                SideEffect = "PAYMENT_REJECTED"
	SideEffectPaymentFailed                  SideEffect = "PAYMENT_FAILED"
	SideEffectPaymentRetried                 SideEffect = "PAYMENT_RETRIED"
	SideEffectPaymentSettled                 SideEffect = "PAYMENT_SETTLED"
	SideEffectPaymentAuthenticationStarted   SideEffect = "PAYMENT_AUTHENTICATION_STARTED"
	SideEffectPaymentAuthenticationCompleted SideEffect = "PAYMENT_AUTHENTICATION_COMPLETED"
	SideEffectBrowserFingerprintRequested    SideEffect = "BROWSER_FINGERPRINT_REQUESTED"
	SideEffectUserApprovalRequested          SideEffect = "USER_APPROVAL_REQUESTED"
	SideEffectKlarnaOrderPlaced              SideEffect = "KLARNA_ORDER_PLACED"
)

package domain

// =============================================================================
// Результаты внешних сервисов
// =============================================================================
//
// Каждый результат — замкнутый набор вариантов (tagged union через Kind).
// Результаты целиком сохраняются внутри событий, чтобы replay журнала был
// детерминированным и не требовал повторных обращений к внешним сервисам.

// RiskResult — результат фрод-оценки.
type RiskResult struct {
	Denied  bool        `json:"denied"`
	Outcome RiskOutcome `json:"outcome,omitempty"`
}

// RiskApproved создаёт одобренный результат фрод-оценки.
func RiskApproved(outcome RiskOutcome) RiskResult {
	return RiskResult{Outcome: outcome}
}

// RiskDenied создаёт отклонённый результат фрод-оценки.
func RiskDenied() RiskResult {
	return RiskResult{Denied: true}
}

// RoutingResultKind — вариант результата маршрутизации.
type RoutingResultKind string

const (
	RoutingProceedKind RoutingResultKind = "PROCEED"
	RoutingRejectKind  RoutingResultKind = "REJECT"
	RoutingErrorKind   RoutingResultKind = "ERROR"
)

// RoutingErrorReason — причина ошибки маршрутизации.
type RoutingErrorReason string

const (
	RoutingInvalidCurrency     RoutingErrorReason = "INVALID_CURRENCY"
	RoutingBankAccountNotFound RoutingErrorReason = "BANK_ACCOUNT_NOT_FOUND"
)

// RoutingResult — результат выбора банковского аккаунта.
type RoutingResult struct {
	Kind    RoutingResultKind  `json:"kind"`
	Account *Account           `json:"account,omitempty"`
	Reason  RoutingErrorReason `json:"reason,omitempty"`
}

// RoutingProceed создаёт результат с выбранным аккаунтом.
func RoutingProceed(account Account) RoutingResult {
	return RoutingResult{Kind: RoutingProceedKind, Account: &account}
}

// RoutingReject создаёт отказ маршрутизации.
func RoutingReject() RoutingResult {
	return RoutingResult{Kind: RoutingRejectKind}
}

// RoutingError создаёт ошибку маршрутизации.
func RoutingError(reason RoutingErrorReason) RoutingResult {
	return RoutingResult{Kind: RoutingErrorKind, Reason: reason}
}

// GatewayResultKind — вариант результата вызова платёжного шлюза.
type GatewayResultKind string

const (
	GatewaySuccessKind      GatewayResultKind = "SUCCESS"
	GatewayClientActionKind GatewayResultKind = "CLIENT_ACTION_REQUESTED"
	GatewayRejectKind       GatewayResultKind = "REJECT"
	GatewayFailKind         GatewayResultKind = "FAIL"
)

// GatewayResult — результат вызова платёжного шлюза
// (authenticate / authorize / confirm и их комбинации).
type GatewayResult struct {
	Kind         GatewayResultKind `json:"kind"`
	ClientAction *ClientAction     `json:"client_action,omitempty"`
	ErrorCode    string            `json:"error_code,omitempty"`
	ErrorReason  string            `json:"error_reason,omitempty"`
	Cause        string            `json:"cause,omitempty"`
	Timeout      bool              `json:"timeout,omitempty"`
	ThreeDS      ThreeDSStatus     `json:"three_ds"`
}

// GatewaySuccess создаёт успешный результат шлюза.
func GatewaySuccess(threeDS ThreeDSStatus) GatewayResult {
	return GatewayResult{Kind: GatewaySuccessKind, ThreeDS: threeDS}
}

// GatewayClientAction создаёт результат, требующий действия клиента.
func GatewayClientAction(action ClientAction, threeDS ThreeDSStatus) GatewayResult {
	return GatewayResult{Kind: GatewayClientActionKind, ClientAction: &action, ThreeDS: threeDS}
}

// GatewayReject создаёт бизнес-отказ шлюза.
func GatewayReject(code, reason string) GatewayResult {
	return GatewayResult{
		Kind:        GatewayRejectKind,
		ErrorCode:   code,
		ErrorReason: reason,
		ThreeDS:     ThreeDSStatus{Kind: NoThreeDS},
	}
}

// GatewayFail создаёт технический сбой шлюза (исключение или таймаут).
// Транспортные ошибки вызывающая сторона обязана сводить именно к этому
// варианту — state machine обрабатывает их той же таблицей переходов.
func GatewayFail(cause string, timeout bool) GatewayResult {
	return GatewayResult{
		Kind:    GatewayFailKind,
		Cause:   cause,
		Timeout: timeout,
		ThreeDS: ThreeDSStatus{Kind: NoThreeDS},
	}
}

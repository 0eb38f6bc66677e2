package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Warning — отклонённый переход. Событие, не применимое в текущей фазе,
// не ломает агрегат и не меняет его состояние, а лишь сигнализирует вызывающему.
type Warning struct {
	Phase  Phase
	Event  EventType
	Reason string
}

func (w *Warning) String() string {
	return fmt.Sprintf("событие %s не применимо в фазе %s: %s", w.Event, w.Phase, w.Reason)
}

// Payment — агрегат платежа. Всё состояние выводится исключительно из
// журнала событий: одинаковая последовательность событий всегда даёт
// одинаковое состояние. Команды валидируют переход, применяют событие и
// накапливают его вместе с побочными эффектами до сохранения.
type Payment struct {
	id       string
	phase    Phase
	version  Version
	attempt  Attempt
	payload  *PaymentPayload
	outcome  RiskOutcome
	account  *Account
	// Счёт, отклонённый шлюзом в прошлой попытке. Повторная маршрутизация
	// на тот же счёт бессмысленна и отклоняется.
	rejectedAccount *Account
	threeDS         ThreeDSStatus
	clientAction    *ClientAction
	confirmParams   map[string]any
	errorCode       string
	errorReason     string
	failureReason   string
	failureCause    string
	failureTimeout  bool

	pendingEvents      []Event
	pendingSideEffects []SideEffect
}

// New создаёт новый платёж в начальной фазе.
func New(id string) *Payment {
	return &Payment{
		id:      id,
		phase:   PhaseRequested,
		version: 0,
	}
}

// Replay восстанавливает агрегат из журнала событий. События применяются
// без побочных эффектов: эффекты уже были опубликованы при первом применении.
func Replay(id string, events []Event) (*Payment, error) {
	p := New(id)
	for _, evt := range events {
		next, warn, err := p.Apply(evt, false)
		if err != nil {
			return nil, err
		}
		if warn != nil {
			return nil, fmt.Errorf("журнал платежа %s противоречив: %s", id, warn)
		}
		p = next
	}
	return p, nil
}

// ===== Геттеры =====

func (p *Payment) ID() string                      { return p.id }
func (p *Payment) Phase() Phase                    { return p.phase }
func (p *Payment) Version() Version                { return p.version }
func (p *Payment) Attempt() Attempt                { return p.attempt }
func (p *Payment) Payload() *PaymentPayload        { return p.payload }
func (p *Payment) Account() *Account               { return p.account }
func (p *Payment) RiskOutcome() RiskOutcome        { return p.outcome }
func (p *Payment) ThreeDS() ThreeDSStatus          { return p.threeDS }
func (p *Payment) ClientAction() *ClientAction     { return p.clientAction }
func (p *Payment) ConfirmParams() map[string]any   { return p.confirmParams }
func (p *Payment) ErrorCode() string               { return p.errorCode }
func (p *Payment) ErrorReason() string             { return p.errorReason }
func (p *Payment) FailureReason() string           { return p.failureReason }
func (p *Payment) FailureCause() string            { return p.failureCause }
func (p *Payment) FailureTimeout() bool            { return p.failureTimeout }
func (p *Payment) PendingEvents() []Event          { return p.pendingEvents }
func (p *Payment) PendingSideEffects() []SideEffect { return p.pendingSideEffects }

// Reference возвращает платёжную ссылку текущей попытки: после повтора
// к базовой ссылке добавляется суффикс "R".
func (p *Payment) Reference() string {
	if p.payload == nil {
		return ""
	}
	return p.attempt.Reference(p.payload.AuthorizationReference)
}

// Flushed возвращает копию агрегата с очищенными накопленными событиями
// и эффектами. Вызывается после успешного сохранения.
func (p *Payment) Flushed() *Payment {
	next := p.clone()
	next.pendingEvents = nil
	next.pendingSideEffects = nil
	return next
}

func (p *Payment) clone() *Payment {
	next := *p
	next.pendingEvents = append([]Event(nil), p.pendingEvents...)
	next.pendingSideEffects = append([]SideEffect(nil), p.pendingSideEffects...)
	return &next
}

// ===== Команды =====

func (p *Payment) nextBase() BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Payment:   p.id,
		Ver:       p.version.Next(),
		CreatedAt: time.Now().UTC(),
	}
}

// Request принимает запрос на авторизацию платежа.
func (p *Payment) Request(payload PaymentPayload) (*Payment, *Warning, error) {
	if err := payload.Validate(); err != nil {
		return nil, nil, err
	}
	return p.Apply(&PaymentRequested{BaseEvent: p.nextBase(), Payload: payload}, true)
}

// EvaluateRisk фиксирует результат фрод-оценки.
func (p *Payment) EvaluateRisk(result RiskResult) (*Payment, *Warning, error) {
	return p.Apply(&RiskEvaluated{BaseEvent: p.nextBase(), Result: result}, true)
}

// EvaluateRouting фиксирует результат маршрутизации.
func (p *Payment) EvaluateRouting(result RoutingResult) (*Payment, *Warning, error) {
	return p.Apply(&RoutingEvaluated{BaseEvent: p.nextBase(), Result: result}, true)
}

// DecideAuthMethod выбирает способ аутентификации с учётом фичефлага
// раздельной аутентификации.
func (p *Payment) DecideAuthMethod(decoupledEnabled bool) (*Payment, *Warning, error) {
	return p.Apply(&AuthMethodDecided{BaseEvent: p.nextBase(), DecoupledEnabled: decoupledEnabled}, true)
}

// StartAuthentication фиксирует результат запуска аутентификации.
func (p *Payment) StartAuthentication(result GatewayResult) (*Payment, *Warning, error) {
	return p.Apply(&AuthenticationStarted{BaseEvent: p.nextBase(), Result: result}, true)
}

// ReturnFromClient фиксирует возврат клиента с параметрами подтверждения.
func (p *Payment) ReturnFromClient(params map[string]any) (*Payment, *Warning, error) {
	return p.Apply(&ReturnedFromClient{BaseEvent: p.nextBase(), Params: params}, true)
}

// ConfirmAuthentication фиксирует результат подтверждения аутентификации.
func (p *Payment) ConfirmAuthentication(result GatewayResult) (*Payment, *Warning, error) {
	return p.Apply(&AuthenticationConfirmed{BaseEvent: p.nextBase(), Result: result}, true)
}

// VerifyECI выполняет проверку ECI/exemption с учётом фичефлага принудительной
// проверки ECI.
func (p *Payment) VerifyECI(eciCheckForced bool) (*Payment, *Warning, error) {
	return p.Apply(&EciVerified{BaseEvent: p.nextBase(), EciCheckForced: eciCheckForced}, true)
}

// RequestAuthorization фиксирует результат запроса авторизации у шлюза.
func (p *Payment) RequestAuthorization(result GatewayResult) (*Payment, *Warning, error) {
	return p.Apply(&AuthorizationRequested{BaseEvent: p.nextBase(), Result: result}, true)
}

// ConfirmAuthorization фиксирует результат подтверждения авторизации.
func (p *Payment) ConfirmAuthorization(result GatewayResult) (*Payment, *Warning, error) {
	return p.Apply(&ConfirmationRequested{BaseEvent: p.nextBase(), Result: result}, true)
}

// CheckCaptured завершает платёж списанием либо удержанием средств
// в зависимости от типа авторизации.
func (p *Payment) CheckCaptured() (*Payment, *Warning, error) {
	return p.Apply(&CapturedChecked{BaseEvent: p.nextBase()}, true)
}

// PrepareForRetry решает, возможна ли повторная попытка после отказа шлюза.
func (p *Payment) PrepareForRetry() (*Payment, *Warning, error) {
	return p.Apply(&TriedToRetry{BaseEvent: p.nextBase()}, true)
}

// ===== Применение событий =====

// Apply применяет событие к агрегату и возвращает новое состояние.
// При isNew событие валидируется на монотонность версии и накапливается
// вместе с побочными эффектами; при replay эффекты не порождаются повторно.
// Событие, не применимое в текущей фазе, возвращает исходный агрегат
// и предупреждение.
func (p *Payment) Apply(evt Event, isNew bool) (*Payment, *Warning, error) {
	if isNew && evt.Version() != p.version.Next() {
		return nil, nil, &VersionConflictError{
			PaymentID: p.id,
			Expected:  p.version.Next(),
			Got:       evt.Version(),
		}
	}

	next := p.clone()
	var warn *Warning

	switch e := evt.(type) {
	case *PaymentRequested:
		warn = next.applyPaymentRequested(e)
	case *RiskEvaluated:
		warn = next.applyRiskEvaluated(e)
	case *RoutingEvaluated:
		warn = next.applyRoutingEvaluated(e)
	case *AuthMethodDecided:
		warn = next.applyAuthMethodDecided(e)
	case *AuthenticationStarted:
		warn = next.applyAuthenticationStarted(e)
	case *ReturnedFromClient:
		warn = next.applyReturnedFromClient(e)
	case *AuthenticationConfirmed:
		warn = next.applyAuthenticationConfirmed(e)
	case *EciVerified:
		warn = next.applyEciVerified(e)
	case *AuthorizationRequested:
		warn = next.applyAuthorizationRequested(e)
	case *ConfirmationRequested:
		warn = next.applyConfirmationRequested(e)
	case *CapturedChecked:
		warn = next.applyCapturedChecked(e)
	case *TriedToRetry:
		warn = next.applyTriedToRetry(e)
	default:
		return nil, nil, fmt.Errorf("%w: %T", ErrUnknownEventType, evt)
	}

	if warn != nil {
		return p, warn, nil
	}

	next.version = evt.Version()
	if isNew {
		next.pendingEvents = append(next.pendingEvents, evt)
	} else {
		next.pendingSideEffects = nil
	}
	return next, nil, nil
}

func (p *Payment) reject(evt Event, expected ...Phase) *Warning {
	return &Warning{
		Phase:  p.phase,
		Event:  evt.Type(),
		Reason: fmt.Sprintf("допустимые фазы %v", expected),
	}
}

func (p *Payment) inPhase(candidates ...Phase) bool {
	for _, c := range candidates {
		if p.phase == c {
			return true
		}
	}
	return false
}

func (p *Payment) emit(effects ...SideEffect) {
	p.pendingSideEffects = append(p.pendingSideEffects, effects...)
}

func (p *Payment) fail(reason string) {
	p.phase = PhaseFailed
	p.failureReason = reason
	p.emit(SideEffectPaymentFailed)
}

func (p *Payment) applyPaymentRequested(e *PaymentRequested) *Warning {
	if !p.inPhase(PhaseRequested) {
		return p.reject(e, PhaseRequested)
	}
	payload := e.Payload
	p.payload = &payload
	p.phase = PhaseRiskPending
	return nil
}

func (p *Payment) applyRiskEvaluated(e *RiskEvaluated) *Warning {
	if !p.inPhase(PhaseRiskPending) {
		return p.reject(e, PhaseRiskPending)
	}
	p.emit(SideEffectFraudEvaluationCompleted)
	if e.Result.Denied {
		p.phase = PhaseRejectedByRisk
		p.emit(SideEffectPaymentRejected)
		return nil
	}
	p.outcome = e.Result.Outcome
	p.phase = PhaseRoutingPending
	return nil
}

func (p *Payment) applyRoutingEvaluated(e *RoutingEvaluated) *Warning {
	if !p.inPhase(PhaseRoutingPending, PhaseRoutingRetryPending) {
		return p.reject(e, PhaseRoutingPending, PhaseRoutingRetryPending)
	}
	switch e.Result.Kind {
	case RoutingErrorKind:
		p.fail(fmt.Sprintf("ошибка маршрутизации: %s", e.Result.Reason))
	case RoutingRejectKind:
		p.phase = PhaseRejectedByRouting
		p.emit(SideEffectPaymentRejected)
	case RoutingProceedKind:
		if p.phase == PhaseRoutingRetryPending {
			if p.rejectedAccount != nil && e.Result.Account != nil && e.Result.Account.ID == p.rejectedAccount.ID {
				p.phase = PhaseRejectedBySameAccountRetry
				p.emit(SideEffectPaymentRejected)
				return nil
			}
			p.account = e.Result.Account
			p.phase = PhaseAuthorizationPending
			p.emit(SideEffectRoutingCompleted)
			return nil
		}
		p.account = e.Result.Account
		p.phase = PhaseAuthMethodPending
		p.emit(SideEffectRoutingCompleted)
	}
	return nil
}

func (p *Payment) applyAuthMethodDecided(e *AuthMethodDecided) *Warning {
	if !p.inPhase(PhaseAuthMethodPending) {
		return p.reject(e, PhaseAuthMethodPending)
	}
	switch {
	case !e.DecoupledEnabled || p.payload.Method.RequiresCombinedAuth():
		p.phase = PhaseCombinedAuthPending
	case p.payload.Method == MethodCreditCard && p.account != nil && p.account.Action == AccountActionThreeDS:
		p.phase = PhaseAuthenticationPending
	default:
		p.phase = PhaseAuthorizationPending
	}
	return nil
}

// applyAuthResult обрабатывает результат шлюза по аутентификации. Разница
// между раздельным и комбинированным режимами только в фазах назначения:
// успешная раздельная аутентификация ведёт к проверке ECI, комбинированная
// сразу авторизует платёж.
func (p *Payment) applyAuthResult(result GatewayResult, combined bool) {
	p.threeDS = result.ThreeDS
	switch result.Kind {
	case GatewaySuccessKind:
		if combined {
			p.phase = PhaseCaptureVerificationPending
			p.emit(SideEffectPaymentAuthenticationCompleted, SideEffectPaymentAuthorized)
			if p.payload.Method == MethodKlarna {
				p.emit(SideEffectKlarnaOrderPlaced)
			}
			return
		}
		p.phase = PhaseECIVerificationPending
	case GatewayClientActionKind:
		if combined {
			p.phase = PhaseCombinedClientActionPending
		} else {
			p.phase = PhaseAuthenticationClientActionPending
		}
		action := *result.ClientAction
		p.clientAction = &action
		if action.Kind == ClientActionFingerprint {
			p.emit(SideEffectBrowserFingerprintRequested)
		} else {
			p.emit(SideEffectUserApprovalRequested)
		}
	case GatewayRejectKind:
		p.phase = PhaseRejectedByAuthentication
		p.errorCode = result.ErrorCode
		p.errorReason = result.ErrorReason
		p.emit(SideEffectPaymentRejected)
	case GatewayFailKind:
		p.failureCause = result.Cause
		p.failureTimeout = result.Timeout
		p.fail("Authentication failed")
	}
}

func (p *Payment) applyAuthenticationStarted(e *AuthenticationStarted) *Warning {
	if !p.inPhase(PhaseAuthenticationPending, PhaseCombinedAuthPending) {
		return p.reject(e, PhaseAuthenticationPending, PhaseCombinedAuthPending)
	}
	combined := p.phase == PhaseCombinedAuthPending
	p.emit(SideEffectPaymentAuthenticationStarted)
	p.applyAuthResult(e.Result, combined)
	return nil
}

func (p *Payment) applyReturnedFromClient(e *ReturnedFromClient) *Warning {
	switch p.phase {
	case PhaseAuthenticationClientActionPending:
		p.phase = PhaseAuthenticationConfirmPending
	case PhaseCombinedClientActionPending:
		p.phase = PhaseCombinedConfirmPending
	case PhaseAuthorizationClientActionPending:
		p.phase = PhaseAuthorizationConfirmPending
	default:
		return p.reject(e,
			PhaseAuthenticationClientActionPending,
			PhaseCombinedClientActionPending,
			PhaseAuthorizationClientActionPending,
		)
	}
	p.confirmParams = e.Params
	p.clientAction = nil
	return nil
}

func (p *Payment) applyAuthenticationConfirmed(e *AuthenticationConfirmed) *Warning {
	if !p.inPhase(PhaseAuthenticationConfirmPending, PhaseCombinedConfirmPending) {
		return p.reject(e, PhaseAuthenticationConfirmPending, PhaseCombinedConfirmPending)
	}
	combined := p.phase == PhaseCombinedConfirmPending
	p.applyAuthResult(e.Result, combined)
	return nil
}

func (p *Payment) applyEciVerified(e *EciVerified) *Warning {
	if !p.inPhase(PhaseECIVerificationPending) {
		return p.reject(e, PhaseECIVerificationPending)
	}
	// Принятый exemption освобождает от проверки ECI независимо от её исхода.
	if p.threeDS.Exemption == ExemptionAccepted {
		p.phase = PhaseAuthorizationPending
		p.emit(SideEffectPaymentAuthenticationCompleted)
		return nil
	}
	if p.account != nil && p.account.Action == AccountActionMoto {
		p.failureCause = "Invalid status MOTO"
		p.fail("Invalid status MOTO")
		return nil
	}
	if e.EciCheckForced && p.threeDS.ECI != ECISuccessful {
		p.phase = PhaseRejectedByECIVerification
		p.emit(SideEffectPaymentRejected)
		return nil
	}
	p.phase = PhaseAuthorizationPending
	p.emit(SideEffectPaymentAuthenticationCompleted)
	return nil
}

// applyAuthorizationResult обрабатывает результат шлюза по авторизации,
// общий для первичного запроса и подтверждения после возврата клиента.
func (p *Payment) applyAuthorizationResult(result GatewayResult) {
	switch result.Kind {
	case GatewaySuccessKind:
		p.phase = PhaseCaptureVerificationPending
		p.emit(SideEffectPaymentAuthorized)
	case GatewayClientActionKind:
		p.phase = PhaseAuthorizationClientActionPending
		action := *result.ClientAction
		p.clientAction = &action
		if action.Kind == ClientActionFingerprint {
			p.emit(SideEffectBrowserFingerprintRequested)
		} else {
			p.emit(SideEffectUserApprovalRequested)
		}
	case GatewayRejectKind:
		p.phase = PhaseRejectedByGateway
		p.errorCode = result.ErrorCode
		p.errorReason = result.ErrorReason
		rejected := *p.account
		p.rejectedAccount = &rejected
		p.emit(SideEffectAuthorizationAttemptRejected)
	case GatewayFailKind:
		p.failureCause = result.Cause
		p.failureTimeout = result.Timeout
		p.fail("exception on authorization")
	}
}

func (p *Payment) applyAuthorizationRequested(e *AuthorizationRequested) *Warning {
	if !p.inPhase(PhaseAuthorizationPending) {
		return p.reject(e, PhaseAuthorizationPending)
	}
	p.emit(SideEffectAuthorizationAttemptRequested)
	p.applyAuthorizationResult(e.Result)
	return nil
}

func (p *Payment) applyConfirmationRequested(e *ConfirmationRequested) *Warning {
	if !p.inPhase(PhaseAuthorizationConfirmPending) {
		return p.reject(e, PhaseAuthorizationConfirmPending)
	}
	p.applyAuthorizationResult(e.Result)
	return nil
}

func (p *Payment) applyCapturedChecked(e *CapturedChecked) *Warning {
	if !p.inPhase(PhaseCaptureVerificationPending) {
		return p.reject(e, PhaseCaptureVerificationPending)
	}
	if p.payload.AuthorizationType == FullAuthorization {
		p.phase = PhaseCaptured
		p.emit(SideEffectPaymentSettled)
		return nil
	}
	p.phase = PhaseAuthorized
	return nil
}

func (p *Payment) applyTriedToRetry(e *TriedToRetry) *Warning {
	if !p.inPhase(PhaseRejectedByGateway) {
		return p.reject(e, PhaseRejectedByGateway)
	}
	if p.attempt.CanRetry() {
		p.attempt = p.attempt.Next()
		p.phase = PhaseRoutingRetryPending
		p.emit(SideEffectPaymentRetried)
		return nil
	}
	p.phase = PhaseRejectedByGatewayAndNotRetriable
	p.emit(SideEffectPaymentRejected)
	return nil
}

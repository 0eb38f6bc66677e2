// Package orchestrator координирует обработку платежа: вызывает внешние
// сервисы (фрод-оценка, маршрутизация, платёжный шлюз), применяет их
// результаты к агрегату и сохраняет журнал после каждого шага.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"example.com/payment-system/internal/domain"
	"example.com/payment-system/internal/featureflag"
	"example.com/payment-system/internal/outcome"
	"example.com/payment-system/internal/repository"
	"example.com/payment-system/pkg/logger"
	"example.com/payment-system/pkg/metrics"
)

// =============================================================================
// Интерфейсы внешних сервисов
// =============================================================================

// RiskAssessmentService — внешний сервис фрод-оценки.
type RiskAssessmentService interface {
	AssessRisk(ctx context.Context, p *domain.Payment) (domain.RiskResult, error)
}

// RoutingService — внешний сервис маршрутизации на банковский аккаунт.
type RoutingService interface {
	RouteForPayment(ctx context.Context, p *domain.Payment) (domain.RoutingResult, error)
}

// AuthorizationGateway — платёжный шлюз. Ошибка означает транспортный сбой,
// бизнес-отказы приходят внутри GatewayResult.
type AuthorizationGateway interface {
	// Authenticate запускает раздельную 3DS-аутентификацию.
	Authenticate(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error)

	// AuthenticateAndAuthorize выполняет аутентификацию и авторизацию одним вызовом.
	AuthenticateAndAuthorize(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error)

	// Authorize запрашивает авторизацию средств.
	Authorize(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error)

	// ConfirmAuthenticate подтверждает аутентификацию после возврата клиента.
	ConfirmAuthenticate(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error)

	// Confirm подтверждает авторизацию после возврата клиента.
	Confirm(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error)
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator — точка входа обработки платежа.
type Orchestrator interface {
	// Authorize принимает новый платёж и ведёт его до терминальной фазы
	// либо до действия на стороне клиента.
	Authorize(ctx context.Context, payload domain.PaymentPayload) outcome.Response

	// Confirm продолжает платёж после возврата клиента.
	Confirm(ctx context.Context, paymentID string, params map[string]any) outcome.Response
}

// orchestrator — реализация Orchestrator.
type orchestrator struct {
	store    repository.PaymentStore
	risk     RiskAssessmentService
	routing  RoutingService
	gateway  AuthorizationGateway
	flags    featureflag.Flags
	attempts outcome.AttemptRecorder
}

// New создаёт координатор обработки платежей.
func New(
	store repository.PaymentStore,
	risk RiskAssessmentService,
	routing RoutingService,
	gateway AuthorizationGateway,
	flags featureflag.Flags,
	attempts outcome.AttemptRecorder,
) Orchestrator {
	return &orchestrator{
		store:    store,
		risk:     risk,
		routing:  routing,
		gateway:  gateway,
		flags:    flags,
		attempts: attempts,
	}
}

// Authorize принимает платёж и прогоняет его через state machine.
func (o *orchestrator) Authorize(ctx context.Context, payload domain.PaymentPayload) outcome.Response {
	log := logger.FromContext(ctx)

	p, warn, err := domain.New(payload.PaymentID).Request(payload)
	if err != nil {
		log.Warn().Err(err).Str("payment_id", payload.PaymentID).Msg("Невалидный запрос на авторизацию")
		return o.finish(outcome.Failed(payload.PaymentID, err.Error()))
	}
	if warn != nil {
		return o.finish(outcome.Failed(payload.PaymentID, warn.String()))
	}

	if err := o.persist(ctx, &p); err != nil {
		return o.finish(o.persistFailure(ctx, payload.PaymentID, err))
	}

	log.Info().
		Str("payment_id", p.ID()).
		Str("method", string(payload.Method)).
		Int64("amount", payload.Amount).
		Str("currency", payload.Currency).
		Msg("Платёж принят в обработку")

	return o.finish(o.advance(ctx, p))
}

// Confirm продолжает платёж после действия на стороне клиента.
func (o *orchestrator) Confirm(ctx context.Context, paymentID string, params map[string]any) outcome.Response {
	log := logger.FromContext(ctx)

	p, err := o.store.Load(ctx, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			log.Warn().Str("payment_id", paymentID).Msg("Подтверждение неизвестного платежа")
			return o.finish(outcome.Failed(paymentID, "платёж не найден"))
		}
		log.Error().Err(err).Str("payment_id", paymentID).Msg("Ошибка чтения журнала платежа")
		return o.finish(outcome.Failed(paymentID, "ошибка чтения платежа"))
	}

	if !p.Phase().IsClientActionPending() {
		log.Warn().
			Str("payment_id", paymentID).
			Str("phase", string(p.Phase())).
			Msg("Подтверждение платежа, не ожидающего действия клиента")
		return o.finish(outcome.InvalidPaymentStatus(paymentID))
	}

	p, warn, err := p.ReturnFromClient(params)
	if err != nil {
		return o.finish(outcome.Failed(paymentID, err.Error()))
	}
	if warn != nil {
		return o.finish(outcome.InvalidPaymentStatus(paymentID))
	}

	if err := o.persist(ctx, &p); err != nil {
		return o.finish(o.persistFailure(ctx, paymentID, err))
	}

	log.Info().Str("payment_id", paymentID).Msg("Клиент вернулся, продолжаем обработку")

	return o.finish(o.advance(ctx, p))
}

// finish записывает метрику исхода и возвращает ответ.
func (o *orchestrator) finish(resp outcome.Response) outcome.Response {
	metrics.RecordAuthorization(string(resp.Kind))
	return resp
}

// =============================================================================
// Цикл продвижения платежа
// =============================================================================

// advance продвигает платёж по фазам до терминальной либо до ожидания клиента.
func (o *orchestrator) advance(ctx context.Context, p *domain.Payment) outcome.Response {
	log := logger.FromContext(ctx)

	for {
		if p.Phase().IsTerminal() || p.Phase().IsClientActionPending() {
			o.recordFinalAttempt(ctx, p)
			return outcome.FromPayment(p)
		}

		next, warn, err := o.dispatch(ctx, p)
		if err != nil {
			var external *externalError
			if errors.As(err, &external) {
				log.Error().
					Err(external.cause).
					Str("payment_id", p.ID()).
					Str("phase", string(p.Phase())).
					Str("service", external.service).
					Msg("Внешний сервис недоступен")
				return outcome.Failed(p.ID(), fmt.Sprintf("%s недоступен", external.service))
			}
			return o.persistFailure(ctx, p.ID(), err)
		}
		if warn != nil {
			// Событие не легло на текущую фазу: состояние не изменилось,
			// продолжать цикл бессмысленно.
			log.Warn().Str("payment_id", p.ID()).Msg(warn.String())
			return outcome.Failed(p.ID(), warn.String())
		}

		if err := o.persist(ctx, &next); err != nil {
			return o.persistFailure(ctx, p.ID(), err)
		}
		p = next
	}
}

// dispatch выполняет один шаг обработки в зависимости от текущей фазы.
func (o *orchestrator) dispatch(ctx context.Context, p *domain.Payment) (*domain.Payment, *domain.Warning, error) {
	switch p.Phase() {
	case domain.PhaseRiskPending:
		res, err := o.risk.AssessRisk(ctx, p)
		if err != nil {
			return nil, nil, &externalError{service: "сервис фрод-оценки", cause: err}
		}
		return p.EvaluateRisk(res)

	case domain.PhaseRoutingPending, domain.PhaseRoutingRetryPending:
		res, err := o.routing.RouteForPayment(ctx, p)
		if err != nil {
			return nil, nil, &externalError{service: "сервис маршрутизации", cause: err}
		}
		return p.EvaluateRouting(res)

	case domain.PhaseAuthMethodPending:
		return p.DecideAuthMethod(o.flags.IsEnabled(ctx, featureflag.FlagDecoupledAuth))

	case domain.PhaseAuthenticationPending:
		return p.StartAuthentication(o.callGateway(ctx, p, o.gateway.Authenticate))

	case domain.PhaseCombinedAuthPending:
		return p.StartAuthentication(o.callGateway(ctx, p, o.gateway.AuthenticateAndAuthorize))

	case domain.PhaseAuthenticationConfirmPending, domain.PhaseCombinedConfirmPending:
		return p.ConfirmAuthentication(o.callGateway(ctx, p, o.gateway.ConfirmAuthenticate))

	case domain.PhaseECIVerificationPending:
		return p.VerifyECI(o.flags.IsEnabled(ctx, featureflag.FlagECICheck))

	case domain.PhaseAuthorizationPending:
		return p.RequestAuthorization(o.callGateway(ctx, p, o.gateway.Authorize))

	case domain.PhaseAuthorizationConfirmPending:
		return p.ConfirmAuthorization(o.callGateway(ctx, p, o.gateway.Confirm))

	case domain.PhaseCaptureVerificationPending:
		return p.CheckCaptured()

	case domain.PhaseRejectedByGateway:
		o.recordRejectedAttempt(ctx, p)
		return p.PrepareForRetry()

	default:
		return nil, nil, fmt.Errorf("нет обработчика для фазы %s", p.Phase())
	}
}

// callGateway выполняет вызов шлюза, транслируя транспортные сбои
// в результат FAIL. Решение о дальнейшей судьбе платежа остаётся за агрегатом.
func (o *orchestrator) callGateway(
	ctx context.Context,
	p *domain.Payment,
	call func(context.Context, *domain.Payment) (domain.GatewayResult, error),
) domain.GatewayResult {
	res, err := call(ctx, p)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("payment_id", p.ID()).
			Str("phase", string(p.Phase())).
			Msg("Транспортная ошибка платёжного шлюза")
		return domain.GatewayFail(err.Error(), isTimeout(err))
	}
	return res
}

// persist сохраняет накопленные события и очищает их в агрегате.
func (o *orchestrator) persist(ctx context.Context, p **domain.Payment) error {
	if err := o.store.Save(ctx, *p); err != nil {
		return err
	}
	for _, evt := range (*p).PendingEvents() {
		metrics.RecordTransition(string(evt.Type()))
	}
	*p = (*p).Flushed()
	return nil
}

// persistFailure логирует ошибку сохранения и строит ответ FAILED.
// Конфликт версий означает конкурентную обработку того же платежа.
func (o *orchestrator) persistFailure(ctx context.Context, paymentID string, err error) outcome.Response {
	log := logger.FromContext(ctx)

	if errors.Is(err, domain.ErrVersionConflict) {
		log.Warn().Err(err).Str("payment_id", paymentID).Msg("Конфликт версий журнала платежа")
		return outcome.Failed(paymentID, "платёж обрабатывается конкурентно")
	}

	log.Error().Err(err).Str("payment_id", paymentID).Msg("Ошибка сохранения журнала платежа")
	return outcome.Failed(paymentID, "ошибка сохранения платежа")
}

// =============================================================================
// История попыток
// =============================================================================

// recordRejectedAttempt фиксирует попытку, отклонённую шлюзом.
func (o *orchestrator) recordRejectedAttempt(ctx context.Context, p *domain.Payment) {
	o.recordAttempt(ctx, p, false)
}

// recordFinalAttempt фиксирует успешную попытку при достижении
// терминальной авторизации.
func (o *orchestrator) recordFinalAttempt(ctx context.Context, p *domain.Payment) {
	if p.Phase() != domain.PhaseCaptured && p.Phase() != domain.PhaseAuthorized {
		return
	}
	o.recordAttempt(ctx, p, true)
}

func (o *orchestrator) recordAttempt(ctx context.Context, p *domain.Payment, succeeded bool) {
	rec := outcome.AttemptRecord{
		PaymentID:  p.ID(),
		Reference:  p.Reference(),
		Attempt:    p.Attempt(),
		Phase:      p.Phase(),
		Succeeded:  succeeded,
		RecordedAt: timeNow(),
	}
	if acc := p.Account(); acc != nil {
		rec.AccountID = acc.ID
	}

	// История попыток вторична к результату платежа, её сбой не роняет обработку.
	if err := o.attempts.Record(ctx, rec); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("payment_id", p.ID()).
			Msg("Не удалось записать историю попыток")
	}
}

// =============================================================================
// Вспомогательные типы
// =============================================================================

// externalError — транспортный сбой сервиса фрод-оценки или маршрутизации.
type externalError struct {
	service string
	cause   error
}

func (e *externalError) Error() string {
	return fmt.Sprintf("%s: %v", e.service, e.cause)
}

func (e *externalError) Unwrap() error {
	return e.cause
}

// timeNow вынесен в переменную для подмены в тестах.
var timeNow = func() time.Time { return time.Now().UTC() }

// isTimeout определяет, был ли транспортный сбой таймаутом.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

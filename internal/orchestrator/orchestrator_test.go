// Package orchestrator содержит unit тесты координатора обработки платежей.
package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/payment-system/internal/domain"
	"example.com/payment-system/internal/featureflag"
	"example.com/payment-system/internal/outcome"
)

// =====================================
// Вспомогательные функции
// =====================================

type fixture struct {
	store    *memoryStore
	risk     *MockRiskService
	routing  *MockRoutingService
	gateway  *MockGateway
	attempts *memoryAttempts
	orch     Orchestrator
}

func newFixture(flags featureflag.Static) *fixture {
	f := &fixture{
		store:    newMemoryStore(),
		risk:     new(MockRiskService),
		routing:  new(MockRoutingService),
		gateway:  new(MockGateway),
		attempts: &memoryAttempts{},
	}
	f.orch = New(f.store, f.risk, f.routing, f.gateway, flags, f.attempts)
	return f
}

func testPayload() domain.PaymentPayload {
	return domain.PaymentPayload{
		PaymentID:              "payment-uuid-123",
		AuthorizationReference: "REF-001",
		Customer:               domain.Customer{ID: "customer-1", Email: "test@example.com", Country: "DE"},
		Method:                 domain.MethodCreditCard,
		AuthorizationType:      domain.FullAuthorization,
		Amount:                 10000,
		Currency:               "EUR",
	}
}

func threeDSAccount() domain.Account {
	return domain.Account{ID: "acc-3ds", Action: domain.AccountActionThreeDS}
}

func ecomAccount() domain.Account {
	return domain.Account{ID: "acc-ecom", Action: domain.AccountActionEcommerce}
}

// =====================================
// Тесты Authorize
// =====================================

// TestAuthorize_Frictionless тестирует полный успешный сценарий без участия клиента.
func TestAuthorize_Frictionless(t *testing.T) {
	f := newFixture(featureflag.Static{featureflag.FlagDecoupledAuth: true})
	ctx := context.Background()

	f.risk.On("AssessRisk", ctx, mock.Anything).Return(domain.RiskApproved(domain.RiskFrictionless), nil)
	f.routing.On("RouteForPayment", ctx, mock.Anything).Return(domain.RoutingProceed(ecomAccount()), nil)
	f.gateway.On("Authorize", ctx, mock.Anything).Return(domain.GatewaySuccess(domain.ThreeDSStatus{Kind: domain.NoThreeDS}), nil)

	resp := f.orch.Authorize(ctx, testPayload())

	assert.Equal(t, outcome.ResponseAuthorized, resp.Kind)
	assert.Equal(t, "payment-uuid-123", resp.PaymentID)
	assert.Equal(t, "REF-001", resp.Reference)

	// Состояние восстановимо из журнала
	p, err := f.store.Load(ctx, "payment-uuid-123")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCaptured, p.Phase())

	// Эффекты опубликованы через хранилище
	effects := f.store.publishedEffects("payment-uuid-123")
	assert.Contains(t, effects, domain.SideEffectPaymentAuthorized)
	assert.Contains(t, effects, domain.SideEffectPaymentSettled)

	// Успешная попытка записана в историю
	records, err := f.attempts.List(ctx, "payment-uuid-123")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Succeeded)

	f.risk.AssertExpectations(t)
	f.routing.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.gateway.AssertNotCalled(t, "Authenticate")
}

// TestAuthorize_RiskDenied тестирует отклонение фрод-оценкой.
func TestAuthorize_RiskDenied(t *testing.T) {
	f := newFixture(featureflag.Static{})
	ctx := context.Background()

	f.risk.On("AssessRisk", ctx, mock.Anything).Return(domain.RiskDenied(), nil)

	resp := f.orch.Authorize(ctx, testPayload())

	assert.Equal(t, outcome.ResponseRejectedByFraudEvaluation, resp.Kind)
	f.routing.AssertNotCalled(t, "RouteForPayment")
}

// TestAuthorize_RiskServiceDown тестирует недоступность сервиса фрод-оценки.
func TestAuthorize_RiskServiceDown(t *testing.T) {
	f := newFixture(featureflag.Static{})
	ctx := context.Background()

	f.risk.On("AssessRisk", ctx, mock.Anything).Return(domain.RiskResult{}, errors.New("connection refused"))

	resp := f.orch.Authorize(ctx, testPayload())

	assert.Equal(t, outcome.ResponseFailed, resp.Kind)
	assert.Contains(t, resp.Reason, "фрод-оценки")

	// Приём платежа уже записан в журнал
	p, err := f.store.Load(ctx, "payment-uuid-123")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseRiskPending, p.Phase())
}

// TestAuthorize_InvalidPayload тестирует отклонение невалидного запроса.
func TestAuthorize_InvalidPayload(t *testing.T) {
	f := newFixture(featureflag.Static{})

	payload := testPayload()
	payload.Amount = 0

	resp := f.orch.Authorize(context.Background(), payload)

	assert.Equal(t, outcome.ResponseFailed, resp.Kind)
	f.risk.AssertNotCalled(t, "AssessRisk")
}

// TestAuthorize_GatewayTransportFailure тестирует транспортный сбой шлюза.
func TestAuthorize_GatewayTransportFailure(t *testing.T) {
	f := newFixture(featureflag.Static{featureflag.FlagDecoupledAuth: true})
	ctx := context.Background()

	f.risk.On("AssessRisk", ctx, mock.Anything).Return(domain.RiskApproved(domain.RiskFrictionless), nil)
	f.routing.On("RouteForPayment", ctx, mock.Anything).Return(domain.RoutingProceed(ecomAccount()), nil)
	f.gateway.On("Authorize", ctx, mock.Anything).Return(domain.GatewayResult{}, context.DeadlineExceeded)

	resp := f.orch.Authorize(ctx, testPayload())

	assert.Equal(t, outcome.ResponseFailed, resp.Kind)
	assert.Equal(t, "exception on authorization", resp.Reason)
	assert.True(t, resp.Timeout)

	p, err := f.store.Load(ctx, "payment-uuid-123")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseFailed, p.Phase())
}

// TestAuthorize_SaveFailure тестирует ошибку сохранения журнала.
func TestAuthorize_SaveFailure(t *testing.T) {
	f := newFixture(featureflag.Static{})
	f.store.failSave = errors.New("mysql has gone away")

	resp := f.orch.Authorize(context.Background(), testPayload())

	assert.Equal(t, outcome.ResponseFailed, resp.Kind)
	f.risk.AssertNotCalled(t, "AssessRisk")
}

// =====================================
// Тесты 3DS challenge и Confirm
// =====================================

// TestAuthorize_ChallengeThenConfirm тестирует challenge-сценарий:
// платёж приостанавливается, затем подтверждается после возврата клиента.
func TestAuthorize_ChallengeThenConfirm(t *testing.T) {
	f := newFixture(featureflag.Static{featureflag.FlagDecoupledAuth: true})
	ctx := context.Background()
	action := domain.ClientAction{Kind: domain.ClientActionChallenge, URL: "https://acs.example.com/challenge"}

	f.risk.On("AssessRisk", ctx, mock.Anything).Return(domain.RiskApproved(domain.RiskAuthenticationMandatory), nil)
	f.routing.On("RouteForPayment", ctx, mock.Anything).Return(domain.RoutingProceed(threeDSAccount()), nil)
	f.gateway.On("Authenticate", ctx, mock.Anything).
		Return(domain.GatewayClientAction(action, domain.ThreeDSStatus{Kind: domain.PendingThreeDS}), nil)

	resp := f.orch.Authorize(ctx, testPayload())

	require.Equal(t, outcome.ResponseClientActionFromGateway, resp.Kind)
	require.NotNil(t, resp.Action)
	assert.Equal(t, domain.ClientActionChallenge, resp.Action.Kind)

	// Клиент вернулся: подтверждаем аутентификацию и доводим до авторизации
	f.gateway.On("ConfirmAuthenticate", ctx, mock.Anything).
		Return(domain.GatewaySuccess(domain.ThreeDSStatus{Kind: domain.ThreeDS, ECI: domain.ECISuccessful}), nil)
	f.gateway.On("Authorize", ctx, mock.Anything).
		Return(domain.GatewaySuccess(domain.ThreeDSStatus{Kind: domain.ThreeDS, ECI: domain.ECISuccessful}), nil)

	confirmResp := f.orch.Confirm(ctx, "payment-uuid-123", map[string]any{"cres": "abc"})

	assert.Equal(t, outcome.ResponseAuthorized, confirmResp.Kind)
	f.gateway.AssertExpectations(t)
}

// TestAuthorize_ChallengeRejectRetrySuccess тестирует полную цепочку:
// challenge, отказ шлюза на первом счёте, повтор на резервном счёте, успех.
// Повтор не проходит аутентификацию заново.
func TestAuthorize_ChallengeRejectRetrySuccess(t *testing.T) {
	f := newFixture(featureflag.Static{featureflag.FlagDecoupledAuth: true})
	ctx := context.Background()
	action := domain.ClientAction{Kind: domain.ClientActionChallenge, URL: "https://acs.example.com/challenge"}

	f.risk.On("AssessRisk", ctx, mock.Anything).Return(domain.RiskApproved(domain.RiskAuthenticationMandatory), nil)
	f.routing.On("RouteForPayment", ctx, mock.Anything).Return(domain.RoutingProceed(threeDSAccount()), nil).Once()
	f.gateway.On("Authenticate", ctx, mock.Anything).
		Return(domain.GatewayClientAction(action, domain.ThreeDSStatus{Kind: domain.PendingThreeDS}), nil).Once()

	resp := f.orch.Authorize(ctx, testPayload())
	require.Equal(t, outcome.ResponseClientActionFromGateway, resp.Kind)

	// Клиент прошёл challenge; авторизация на первом счёте отклонена,
	// повторная маршрутизация даёт резервный счёт и авторизация проходит
	f.gateway.On("ConfirmAuthenticate", ctx, mock.Anything).
		Return(domain.GatewaySuccess(domain.ThreeDSStatus{Kind: domain.ThreeDS, ECI: domain.ECISuccessful}), nil).Once()
	f.gateway.On("Authorize", ctx, mock.Anything).Return(domain.GatewayReject("51", "insufficient funds"), nil).Once()
	f.routing.On("RouteForPayment", ctx, mock.Anything).
		Return(domain.RoutingProceed(domain.Account{ID: "acc-backup", Action: domain.AccountActionEcommerce}), nil).Once()
	f.gateway.On("Authorize", ctx, mock.Anything).Return(domain.GatewaySuccess(domain.ThreeDSStatus{Kind: domain.NoThreeDS}), nil).Once()

	confirmResp := f.orch.Confirm(ctx, "payment-uuid-123", map[string]any{"cres": "abc"})

	assert.Equal(t, outcome.ResponseAuthorized, confirmResp.Kind)
	assert.Equal(t, "REF-001R", confirmResp.Reference)

	p, err := f.store.Load(ctx, "payment-uuid-123")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCaptured, p.Phase())
	assert.True(t, p.Attempt().DidRetry())

	// Аутентификация выполнялась ровно один раз, до повтора
	f.gateway.AssertNumberOfCalls(t, "Authenticate", 1)
	f.gateway.AssertNumberOfCalls(t, "ConfirmAuthenticate", 1)

	// В истории обе попытки: отклонённая на основном счёте и успешная на резервном
	records, err := f.attempts.List(ctx, "payment-uuid-123")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, records[0].Succeeded)
	assert.Equal(t, "acc-3ds", records[0].AccountID)
	assert.True(t, records[1].Succeeded)
	assert.Equal(t, "acc-backup", records[1].AccountID)
	assert.Equal(t, "REF-001R", records[1].Reference)

	f.routing.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

// TestAuthorize_AttemptHistoryDown тестирует недоступность хранилища истории:
// сбой записи попытки не влияет на результат платежа.
func TestAuthorize_AttemptHistoryDown(t *testing.T) {
	f := newFixture(featureflag.Static{featureflag.FlagDecoupledAuth: true})
	f.attempts.failRecord = errors.New("redis connection refused")
	ctx := context.Background()

	f.risk.On("AssessRisk", ctx, mock.Anything).Return(domain.RiskApproved(domain.RiskFrictionless), nil)
	f.routing.On("RouteForPayment", ctx, mock.Anything).Return(domain.RoutingProceed(ecomAccount()), nil)
	f.gateway.On("Authorize", ctx, mock.Anything).Return(domain.GatewaySuccess(domain.ThreeDSStatus{Kind: domain.NoThreeDS}), nil)

	resp := f.orch.Authorize(ctx, testPayload())

	assert.Equal(t, outcome.ResponseAuthorized, resp.Kind)

	p, err := f.store.Load(ctx, "payment-uuid-123")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCaptured, p.Phase())
}

// TestConfirm_UnknownPayment тестирует подтверждение неизвестного платежа.
func TestConfirm_UnknownPayment(t *testing.T) {
	f := newFixture(featureflag.Static{})

	resp := f.orch.Confirm(context.Background(), "payment-uuid-999", nil)

	assert.Equal(t, outcome.ResponseFailed, resp.Kind)
	assert.Equal(t, "платёж не найден", resp.Reason)
}

// TestConfirm_InvalidStatus тестирует подтверждение платежа,
// не ожидающего действия клиента.
func TestConfirm_InvalidStatus(t *testing.T) {
	f := newFixture(featureflag.Static{featureflag.FlagDecoupledAuth: true})
	ctx := context.Background()

	f.risk.On("AssessRisk", ctx, mock.Anything).Return(domain.RiskApproved(domain.RiskFrictionless), nil)
	f.routing.On("RouteForPayment", ctx, mock.Anything).Return(domain.RoutingProceed(ecomAccount()), nil)
	f.gateway.On("Authorize", ctx, mock.Anything).Return(domain.GatewaySuccess(domain.ThreeDSStatus{Kind: domain.NoThreeDS}), nil)

	resp := f.orch.Authorize(ctx, testPayload())
	require.Equal(t, outcome.ResponseAuthorized, resp.Kind)

	confirmResp := f.orch.Confirm(ctx, "payment-uuid-123", map[string]any{"cres": "abc"})

	assert.Equal(t, outcome.ResponseInvalidPaymentStatus, confirmResp.Kind)
}

// =====================================
// Тесты повторных попыток
// =====================================

// TestAuthorize_RetryOnDifferentAccount тестирует повтор на другом счёте
// после отказа шлюза.
func TestAuthorize_RetryOnDifferentAccount(t *testing.T) {
	f := newFixture(featureflag.Static{featureflag.FlagDecoupledAuth: true})
	ctx := context.Background()

	f.risk.On("AssessRisk", ctx, mock.Anything).Return(domain.RiskApproved(domain.RiskFrictionless), nil)
	// Первая маршрутизация — основной счёт, повторная — резервный
	f.routing.On("RouteForPayment", ctx, mock.Anything).Return(domain.RoutingProceed(ecomAccount()), nil).Once()
	f.routing.On("RouteForPayment", ctx, mock.Anything).
		Return(domain.RoutingProceed(domain.Account{ID: "acc-backup", Action: domain.AccountActionEcommerce}), nil).Once()
	// Первая авторизация отклонена, вторая успешна
	f.gateway.On("Authorize", ctx, mock.Anything).Return(domain.GatewayReject("51", "insufficient funds"), nil).Once()
	f.gateway.On("Authorize", ctx, mock.Anything).Return(domain.GatewaySuccess(domain.ThreeDSStatus{Kind: domain.NoThreeDS}), nil).Once()

	resp := f.orch.Authorize(ctx, testPayload())

	assert.Equal(t, outcome.ResponseAuthorized, resp.Kind)
	// Ссылка второй попытки с суффиксом "R"
	assert.Equal(t, "REF-001R", resp.Reference)

	// В истории обе попытки: отклонённая и успешная
	records, err := f.attempts.List(ctx, "payment-uuid-123")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, records[0].Succeeded)
	assert.Equal(t, "acc-ecom", records[0].AccountID)
	assert.True(t, records[1].Succeeded)
	assert.Equal(t, "acc-backup", records[1].AccountID)

	f.routing.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

// TestAuthorize_RetryOnSameAccount тестирует отказ при маршрутизации повтора
// на тот же счёт.
func TestAuthorize_RetryOnSameAccount(t *testing.T) {
	f := newFixture(featureflag.Static{featureflag.FlagDecoupledAuth: true})
	ctx := context.Background()

	f.risk.On("AssessRisk", ctx, mock.Anything).Return(domain.RiskApproved(domain.RiskFrictionless), nil)
	f.routing.On("RouteForPayment", ctx, mock.Anything).Return(domain.RoutingProceed(ecomAccount()), nil)
	f.gateway.On("Authorize", ctx, mock.Anything).Return(domain.GatewayReject("05", "do not honor"), nil).Once()

	resp := f.orch.Authorize(ctx, testPayload())

	assert.Equal(t, outcome.ResponseRejectedNoMoreRetries, resp.Kind)

	p, err := f.store.Load(ctx, "payment-uuid-123")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseRejectedBySameAccountRetry, p.Phase())
}

// TestAuthorize_RetriesExhausted тестирует исчерпание лимита попыток.
func TestAuthorize_RetriesExhausted(t *testing.T) {
	f := newFixture(featureflag.Static{featureflag.FlagDecoupledAuth: true})
	ctx := context.Background()

	f.risk.On("AssessRisk", ctx, mock.Anything).Return(domain.RiskApproved(domain.RiskFrictionless), nil)
	f.routing.On("RouteForPayment", ctx, mock.Anything).Return(domain.RoutingProceed(ecomAccount()), nil).Once()
	f.routing.On("RouteForPayment", ctx, mock.Anything).
		Return(domain.RoutingProceed(domain.Account{ID: "acc-backup", Action: domain.AccountActionEcommerce}), nil).Once()
	// Обе попытки отклонены шлюзом
	f.gateway.On("Authorize", ctx, mock.Anything).Return(domain.GatewayReject("05", "do not honor"), nil).Times(2)

	resp := f.orch.Authorize(ctx, testPayload())

	assert.Equal(t, outcome.ResponseRejectedNoMoreRetries, resp.Kind)

	records, err := f.attempts.List(ctx, "payment-uuid-123")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, records[0].Succeeded)
	assert.False(t, records[1].Succeeded)
}

// =====================================
// Тесты комбинированной аутентификации
// =====================================

// TestAuthorize_CombinedWhenFlagDisabled тестирует комбинированный вызов
// при выключенной раздельной аутентификации.
func TestAuthorize_CombinedWhenFlagDisabled(t *testing.T) {
	f := newFixture(featureflag.Static{featureflag.FlagDecoupledAuth: false})
	ctx := context.Background()

	f.risk.On("AssessRisk", ctx, mock.Anything).Return(domain.RiskApproved(domain.RiskFrictionless), nil)
	f.routing.On("RouteForPayment", ctx, mock.Anything).Return(domain.RoutingProceed(threeDSAccount()), nil)
	f.gateway.On("AuthenticateAndAuthorize", ctx, mock.Anything).
		Return(domain.GatewaySuccess(domain.ThreeDSStatus{Kind: domain.ThreeDS, ECI: domain.ECISuccessful}), nil)

	resp := f.orch.Authorize(ctx, testPayload())

	assert.Equal(t, outcome.ResponseAuthorized, resp.Kind)
	f.gateway.AssertNotCalled(t, "Authenticate")
	f.gateway.AssertNotCalled(t, "Authorize")
}

// TestAuthorize_EciCheckRejects тестирует принудительную проверку ECI.
func TestAuthorize_EciCheckRejects(t *testing.T) {
	f := newFixture(featureflag.Static{
		featureflag.FlagDecoupledAuth: true,
		featureflag.FlagECICheck:      true,
	})
	ctx := context.Background()

	f.risk.On("AssessRisk", ctx, mock.Anything).Return(domain.RiskApproved(domain.RiskFrictionless), nil)
	f.routing.On("RouteForPayment", ctx, mock.Anything).Return(domain.RoutingProceed(threeDSAccount()), nil)
	f.gateway.On("Authenticate", ctx, mock.Anything).
		Return(domain.GatewaySuccess(domain.ThreeDSStatus{Kind: domain.ThreeDS, ECI: domain.ECIAttempted}), nil)

	resp := f.orch.Authorize(ctx, testPayload())

	assert.Equal(t, outcome.ResponseRejectedByECIVerification, resp.Kind)
	f.gateway.AssertNotCalled(t, "Authorize")
}

// Package orchestrator содержит моки и фейки для тестирования координатора.
// Хранилище журнала реализовано in-memory фейком: он проверяет монотонность
// версий так же, как уникальный индекс в MySQL.
package orchestrator

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"example.com/payment-system/internal/domain"
	"example.com/payment-system/internal/outcome"
)

// =============================================================================
// memoryStore — in-memory PaymentStore
// =============================================================================

type memoryStore struct {
	mu      sync.Mutex
	events  map[string][]domain.Event
	effects map[string][]domain.SideEffect

	// failSave подменяет результат следующего Save (для тестов ошибок).
	failSave error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		events:  make(map[string][]domain.Event),
		effects: make(map[string][]domain.SideEffect),
	}
}

func (s *memoryStore) Save(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSave != nil {
		err := s.failSave
		s.failSave = nil
		return err
	}

	stored := s.events[p.ID()]
	next := domain.Version(len(stored))
	for _, evt := range p.PendingEvents() {
		next = next.Next()
		if evt.Version() != next {
			return &domain.VersionConflictError{
				PaymentID: p.ID(),
				Expected:  next,
				Got:       evt.Version(),
			}
		}
	}

	s.events[p.ID()] = append(stored, p.PendingEvents()...)
	s.effects[p.ID()] = append(s.effects[p.ID()], p.PendingSideEffects()...)
	return nil
}

func (s *memoryStore) Load(_ context.Context, paymentID string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, ok := s.events[paymentID]
	if !ok || len(events) == 0 {
		return nil, domain.ErrPaymentNotFound
	}
	return domain.Replay(paymentID, events)
}

func (s *memoryStore) publishedEffects(paymentID string) []domain.SideEffect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SideEffect(nil), s.effects[paymentID]...)
}

// =============================================================================
// MockRiskService — мок RiskAssessmentService
// =============================================================================

type MockRiskService struct {
	mock.Mock
}

func (m *MockRiskService) AssessRisk(ctx context.Context, p *domain.Payment) (domain.RiskResult, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.RiskResult), args.Error(1)
}

// =============================================================================
// MockRoutingService — мок RoutingService
// =============================================================================

type MockRoutingService struct {
	mock.Mock
}

func (m *MockRoutingService) RouteForPayment(ctx context.Context, p *domain.Payment) (domain.RoutingResult, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.RoutingResult), args.Error(1)
}

// =============================================================================
// MockGateway — мок AuthorizationGateway
// =============================================================================

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Authenticate(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.GatewayResult), args.Error(1)
}

func (m *MockGateway) AuthenticateAndAuthorize(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.GatewayResult), args.Error(1)
}

func (m *MockGateway) Authorize(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.GatewayResult), args.Error(1)
}

func (m *MockGateway) ConfirmAuthenticate(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.GatewayResult), args.Error(1)
}

func (m *MockGateway) Confirm(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.GatewayResult), args.Error(1)
}

// =============================================================================
// memoryAttempts — in-memory AttemptRecorder
// =============================================================================

type memoryAttempts struct {
	mu      sync.Mutex
	records []outcome.AttemptRecord

	// failRecord подменяет результат всех Record (для тестов ошибок).
	failRecord error
}

func (a *memoryAttempts) Record(_ context.Context, rec outcome.AttemptRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failRecord != nil {
		return a.failRecord
	}
	a.records = append(a.records, rec)
	return nil
}

func (a *memoryAttempts) List(_ context.Context, paymentID string) ([]outcome.AttemptRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var result []outcome.AttemptRecord
	for _, rec := range a.records {
		if rec.PaymentID == paymentID {
			result = append(result, rec)
		}
	}
	return result, nil
}

// Package sandbox содержит детерминированные реализации внешних сервисов
// для локального запуска и демо-окружения. Поведение управляется данными
// платежа, чтобы каждый сценарий state machine был воспроизводим без
// реальных интеграций.
package sandbox

import (
	"context"
	"strings"
	"sync"

	"example.com/payment-system/internal/domain"
)

// =============================================================================
// Фрод-оценка
// =============================================================================

// riskDenyThreshold — суммы от этого значения отклоняются фрод-оценкой.
const riskDenyThreshold = 1_000_000

// RiskService — sandbox-реализация фрод-оценки.
// Отклоняет крупные суммы, требует аутентификацию для покупателей
// вне страны "DE".
type RiskService struct{}

func NewRiskService() *RiskService {
	return &RiskService{}
}

func (s *RiskService) AssessRisk(_ context.Context, p *domain.Payment) (domain.RiskResult, error) {
	payload := p.Payload()
	if payload.Amount >= riskDenyThreshold {
		return domain.RiskDenied(), nil
	}
	if payload.Customer.Country != "" && payload.Customer.Country != "DE" {
		return domain.RiskApproved(domain.RiskAuthenticationMandatory), nil
	}
	return domain.RiskApproved(domain.RiskFrictionless), nil
}

// =============================================================================
// Маршрутизация
// =============================================================================

// RoutingService — sandbox-реализация маршрутизации.
// Первая попытка платежа идёт на основной счёт, повторная — на резервный.
// Валюта вне списка поддерживаемых даёт ошибку INVALID_CURRENCY.
type RoutingService struct {
	mu       sync.Mutex
	routed   map[string]int
	accounts []domain.Account
}

func NewRoutingService() *RoutingService {
	return &RoutingService{
		routed: make(map[string]int),
		accounts: []domain.Account{
			{ID: "sandbox-primary", Action: domain.AccountActionThreeDS},
			{ID: "sandbox-backup", Action: domain.AccountActionEcommerce},
		},
	}
}

var supportedCurrencies = map[string]bool{
	"EUR": true,
	"USD": true,
	"GBP": true,
}

func (s *RoutingService) RouteForPayment(_ context.Context, p *domain.Payment) (domain.RoutingResult, error) {
	if !supportedCurrencies[p.Payload().Currency] {
		return domain.RoutingError(domain.RoutingInvalidCurrency), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.routed[p.ID()]
	s.routed[p.ID()]++
	if idx >= len(s.accounts) {
		idx = len(s.accounts) - 1
	}
	return domain.RoutingProceed(s.accounts[idx]), nil
}

// =============================================================================
// Платёжный шлюз
// =============================================================================

// Gateway — sandbox-реализация платёжного шлюза.
// Сценарий выбирается по последним цифрам маскированной карты:
//
//	"0002" — отказ авторизации (insufficient funds)
//	"0003" — challenge перед авторизацией
//	остальные — успех
type Gateway struct{}

func NewGateway() *Gateway {
	return &Gateway{}
}

func (g *Gateway) Authenticate(_ context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	if cardSuffix(p) == "0003" {
		return domain.GatewayClientAction(domain.ClientAction{
			Kind: domain.ClientActionChallenge,
			URL:  "https://sandbox.example.com/3ds/challenge",
		}, domain.ThreeDSStatus{Kind: domain.PendingThreeDS, Version: "2.2.0"}), nil
	}
	return domain.GatewaySuccess(domain.ThreeDSStatus{
		Kind:    domain.ThreeDS,
		Version: "2.2.0",
		ECI:     domain.ECISuccessful,
	}), nil
}

func (g *Gateway) AuthenticateAndAuthorize(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	if p.Payload().Method != domain.MethodCreditCard {
		// Редирект на страницу провайдера для Klarna / PayPal
		return domain.GatewayClientAction(domain.ClientAction{
			Kind: domain.ClientActionRedirect,
			URL:  "https://sandbox.example.com/checkout/" + p.ID(),
		}, domain.ThreeDSStatus{Kind: domain.NoThreeDS}), nil
	}
	return g.Authorize(ctx, p)
}

func (g *Gateway) Authorize(_ context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	if cardSuffix(p) == "0002" {
		return domain.GatewayReject("51", "insufficient funds"), nil
	}
	return domain.GatewaySuccess(p.ThreeDS()), nil
}

func (g *Gateway) ConfirmAuthenticate(_ context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	return domain.GatewaySuccess(domain.ThreeDSStatus{
		Kind:    domain.ThreeDS,
		Version: "2.2.0",
		ECI:     domain.ECISuccessful,
	}), nil
}

func (g *Gateway) Confirm(_ context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	return domain.GatewaySuccess(p.ThreeDS()), nil
}

func cardSuffix(p *domain.Payment) string {
	card := p.Payload().Card
	if card == nil {
		return ""
	}
	pan := card.MaskedPAN
	if len(pan) < 4 {
		return pan
	}
	return strings.TrimSpace(pan[len(pan)-4:])
}

// Package gateway содержит декораторы над платёжным шлюзом.
package gateway

import (
	"context"

	"example.com/payment-system/internal/domain"
	"example.com/payment-system/internal/orchestrator"
	"example.com/payment-system/pkg/circuitbreaker"
)

// Resilient оборачивает вызовы шлюза в circuit breaker: при серии
// отказов транспорта запросы быстро завершаются ошибкой, не дожидаясь
// таймаутов. Доменные отказы (REJECT) ошибками не считаются.
type Resilient struct {
	next    orchestrator.AuthorizationGateway
	breaker *circuitbreaker.Breaker
}

func NewResilient(next orchestrator.AuthorizationGateway, breaker *circuitbreaker.Breaker) *Resilient {
	return &Resilient{next: next, breaker: breaker}
}

func (r *Resilient) call(ctx context.Context, fn func(context.Context, *domain.Payment) (domain.GatewayResult, error), p *domain.Payment) (domain.GatewayResult, error) {
	var result domain.GatewayResult
	err := r.breaker.Do(ctx, func() error {
		var callErr error
		result, callErr = fn(ctx, p)
		return callErr
	})
	if err != nil {
		return domain.GatewayResult{}, err
	}
	return result, nil
}

func (r *Resilient) Authenticate(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	return r.call(ctx, r.next.Authenticate, p)
}

func (r *Resilient) AuthenticateAndAuthorize(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	return r.call(ctx, r.next.AuthenticateAndAuthorize, p)
}

func (r *Resilient) Authorize(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	return r.call(ctx, r.next.Authorize, p)
}

func (r *Resilient) ConfirmAuthenticate(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	return r.call(ctx, r.next.ConfirmAuthenticate, p)
}

func (r *Resilient) Confirm(ctx context.Context, p *domain.Payment) (domain.GatewayResult, error) {
	return r.call(ctx, r.next.Confirm, p)
}

package domain

import (
	"errors"
	"fmt"
)

// Доменные ошибки платёжного агрегата.
// Бизнес-отказы (reject по риску, маршрутизации и т.д.) ошибками не являются —
// они выражаются терминальными фазами агрегата.
var (
	// ErrVersionConflict возвращается при нарушении optimistic concurrency:
	// версия события не совпадает с ожидаемой следующей версией агрегата.
	ErrVersionConflict = errors.New("конфликт версий платежа")

	// ErrPaymentNotFound возвращается, когда журнал событий платежа пуст.
	ErrPaymentNotFound = errors.New("платёж не найден")

	// ErrInvalidAmount возвращается при сумме меньше или равной нулю.
	ErrInvalidAmount = errors.New("сумма должна быть больше нуля")

	// ErrUnknownPaymentMethod возвращается при неизвестном способе оплаты.
	ErrUnknownPaymentMethod = errors.New("неизвестный способ оплаты")

	// ErrUnknownAuthorizationType возвращается при неизвестном типе авторизации.
	ErrUnknownAuthorizationType = errors.New("неизвестный тип авторизации")

	// ErrUnknownEventType возвращается при десериализации события неизвестного типа.
	ErrUnknownEventType = errors.New("неизвестный тип события")
)

// VersionConflictError — детализированный конфликт версий.
// Совместим с errors.Is(err, ErrVersionConflict).
type VersionConflictError struct {
	PaymentID string
	Expected  Version
	Got       Version
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("конфликт версий платежа %s: ожидалась версия %d, получена %d",
		e.PaymentID, e.Expected, e.Got)
}

func (e *VersionConflictError) Unwrap() error {
	return ErrVersionConflict
}

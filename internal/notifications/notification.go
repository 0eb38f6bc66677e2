// Package notifications описывает уведомления о платежах, публикуемые
// через outbox в Kafka, и их потребителя.
package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"example.com/payment-system/internal/domain"
)

// Notification — уведомление о побочном эффекте обработки платежа.
// Сериализуется в JSON и публикуется в топик payments.notifications.
type Notification struct {
	PaymentID  string            `json:"payment_id"`
	Type       domain.SideEffect `json:"type"`
	Reference  string            `json:"reference,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Marshal сериализует уведомление для записи в outbox.
func (n Notification) Marshal() ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации уведомления: %w", err)
	}
	return data, nil
}

// Unmarshal восстанавливает уведомление из сообщения Kafka.
func Unmarshal(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("ошибка десериализации уведомления: %w", err)
	}
	return n, nil
}

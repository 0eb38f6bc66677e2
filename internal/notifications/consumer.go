package notifications

import (
	"context"

	"example.com/payment-system/pkg/kafka"
	"example.com/payment-system/pkg/logger"
	"example.com/payment-system/pkg/metrics"
)

// Handler обрабатывает одно уведомление о платеже.
type Handler func(ctx context.Context, n Notification) error

// Consumer читает уведомления из Kafka и передаёт их обработчику.
type Consumer struct {
	consumer *kafka.Consumer
	handler  Handler
}

// NewConsumer создаёт потребителя уведомлений.
// handler может быть nil, тогда уведомления только логируются и считаются.
func NewConsumer(consumer *kafka.Consumer, handler Handler) *Consumer {
	return &Consumer{consumer: consumer, handler: handler}
}

// Run запускает чтение уведомлений. Блокирует выполнение до отмены контекста.
func (c *Consumer) Run(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handle)
}

func (c *Consumer) handle(ctx context.Context, msg *kafka.Message) error {
	log := logger.FromContext(ctx)

	n, err := Unmarshal(msg.Value)
	if err != nil {
		log.Error().
			Err(err).
			Str("key", string(msg.Key)).
			Msg("Не удалось разобрать уведомление о платеже")
		return err
	}

	log.Info().
		Str("payment_id", n.PaymentID).
		Str("type", string(n.Type)).
		Str("reference", n.Reference).
		Msg("Получено уведомление о платеже")

	metrics.RecordNotification(string(n.Type))

	if c.handler != nil {
		return c.handler(ctx, n)
	}
	return nil
}

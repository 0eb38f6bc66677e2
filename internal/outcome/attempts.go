package outcome

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/payment-system/internal/domain"
)

const (
	// attemptsPrefix — префикс ключа Redis со списком попыток платежа.
	attemptsPrefix = "payments:attempts:"

	// attemptsTTL — срок хранения read model попыток.
	attemptsTTL = 30 * 24 * time.Hour
)

// AttemptRecord — запись об одной попытке авторизации.
type AttemptRecord struct {
	PaymentID  string         `json:"payment_id"`
	Reference  string         `json:"reference"`
	AccountID  string         `json:"account_id,omitempty"`
	Attempt    domain.Attempt `json:"attempt"`
	Phase      domain.Phase   `json:"phase"`
	Succeeded  bool           `json:"succeeded"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// AttemptRecorder ведёт историю попыток авторизации платежа.
// Позволяет мокать в тестах без Redis.
type AttemptRecorder interface {
	// Record добавляет запись о попытке.
	Record(ctx context.Context, rec AttemptRecord) error

	// List возвращает попытки платежа в порядке записи.
	List(ctx context.Context, paymentID string) ([]AttemptRecord, error)
}

// redisAttemptRecorder — реализация AttemptRecorder на Redis.
type redisAttemptRecorder struct {
	rdb *redis.Client
}

// NewAttemptRecorder создаёт AttemptRecorder на базе Redis.
func NewAttemptRecorder(rdb *redis.Client) AttemptRecorder {
	return &redisAttemptRecorder{rdb: rdb}
}

func (r *redisAttemptRecorder) Record(ctx context.Context, rec AttemptRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации попытки: %w", err)
	}

	key := attemptsPrefix + rec.PaymentID
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, attemptsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ошибка записи попытки: %w", err)
	}
	return nil
}

func (r *redisAttemptRecorder) List(ctx context.Context, paymentID string) ([]AttemptRecord, error) {
	raw, err := r.rdb.LRange(ctx, attemptsPrefix+paymentID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения попыток: %w", err)
	}

	records := make([]AttemptRecord, 0, len(raw))
	for _, item := range raw {
		var rec AttemptRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("ошибка десериализации попытки: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Package featureflag — хранилище фичефлагов на Redis с дефолтами в коде.
// Флаг читается на каждое решение, поэтому переключение не требует рестарта.
package featureflag

import (
	"context"

	"github.com/redis/go-redis/v9"

	"example.com/payment-system/pkg/logger"
)

const (
	// FlagDecoupledAuth включает раздельную аутентификацию для карт.
	FlagDecoupledAuth = "DECOUPLED_AUTH"

	// FlagECICheck включает принудительную проверку ECI после аутентификации.
	FlagECICheck = "ECI_CHECK"
)

// flagPrefix — префикс ключа Redis со значением флага.
const flagPrefix = "payments:feature:"

// defaults — значения флагов при отсутствии ключа в Redis.
var defaults = map[string]bool{
	FlagDecoupledAuth: true,
	FlagECICheck:      false,
}

// Flags — интерфейс чтения фичефлагов.
// Позволяет мокать в тестах без Redis.
type Flags interface {
	// IsEnabled возвращает текущее значение флага.
	IsEnabled(ctx context.Context, flag string) bool
}

// redisFlags — реализация Flags на Redis.
type redisFlags struct {
	rdb *redis.Client
}

// New создаёт хранилище флагов на базе Redis.
func New(rdb *redis.Client) Flags {
	return &redisFlags{rdb: rdb}
}

// IsEnabled читает флаг из Redis. Отсутствие ключа или недоступность Redis
// не должны ломать обработку платежа, поэтому в этих случаях возвращается
// значение по умолчанию.
func (f *redisFlags) IsEnabled(ctx context.Context, flag string) bool {
	val, err := f.rdb.Get(ctx, flagPrefix+flag).Result()
	if err == redis.Nil {
		return defaults[flag]
	}
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("flag", flag).
			Msg("Ошибка чтения фичефлага, используется значение по умолчанию")
		return defaults[flag]
	}
	return val == "1" || val == "true" || val == "on"
}

// Static — реализация Flags с фиксированными значениями, для тестов и sandbox.
type Static map[string]bool

func (s Static) IsEnabled(_ context.Context, flag string) bool {
	if v, ok := s[flag]; ok {
		return v
	}
	return defaults[flag]
}

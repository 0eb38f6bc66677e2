// Package repository содержит реализацию хранения журнала событий платежа.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/payment-system/internal/domain"
	"example.com/payment-system/internal/notifications"
	"example.com/payment-system/pkg/kafka"
	"example.com/payment-system/pkg/outbox"
)

// aggregateType — тип агрегата в таблице outbox.
const aggregateType = "payment"

// PaymentStore определяет интерфейс хранилища журнала событий платежа.
type PaymentStore interface {
	// Save атомарно дописывает накопленные события платежа и ставит
	// уведомления о побочных эффектах в outbox.
	Save(ctx context.Context, p *domain.Payment) error

	// Load восстанавливает платёж из журнала событий.
	Load(ctx context.Context, paymentID string) (*domain.Payment, error)
}

// =============================================================================
// GORM модель
// =============================================================================

// PaymentEventModel — GORM модель для таблицы payment_events.
// Уникальный индекс (payment_id, version) реализует optimistic concurrency:
// конкурирующая запись с той же версией падает на дубликате ключа.
type PaymentEventModel struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	PaymentID string    `gorm:"column:payment_id;type:varchar(36);not null;uniqueIndex:idx_payment_events_version"`
	Version   uint64    `gorm:"column:version;not null;uniqueIndex:idx_payment_events_version"`
	Type      string    `gorm:"column:type;type:varchar(50);not null"`
	Payload   []byte    `gorm:"column:payload;type:json;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (PaymentEventModel) TableName() string {
	return "payment_events"
}

func modelFromEvent(evt domain.Event) (*PaymentEventModel, error) {
	payload, err := domain.MarshalEvent(evt)
	if err != nil {
		return nil, err
	}
	return &PaymentEventModel{
		ID:        evt.EventID(),
		PaymentID: evt.PaymentID(),
		Version:   uint64(evt.Version()),
		Type:      string(evt.Type()),
		Payload:   payload,
		CreatedAt: evt.OccurredAt(),
	}, nil
}

// =============================================================================
// Реализация хранилища
// =============================================================================

// paymentStore — GORM реализация PaymentStore.
type paymentStore struct {
	db *gorm.DB
}

// NewPaymentStore создаёт хранилище журнала событий платежа.
func NewPaymentStore(db *gorm.DB) PaymentStore {
	return &paymentStore{db: db}
}

// Save дописывает накопленные события и уведомления в одной транзакции.
// Конфликт версий транслируется в *domain.VersionConflictError, чтобы
// вызывающая сторона могла перечитать журнал и повторить команду.
func (s *paymentStore) Save(ctx context.Context, p *domain.Payment) error {
	events := p.PendingEvents()
	if len(events) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, evt := range events {
			model, err := modelFromEvent(evt)
			if err != nil {
				return err
			}
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		for _, effect := range p.PendingSideEffects() {
			payload, err := notifications.Notification{
				PaymentID:  p.ID(),
				Type:       effect,
				Reference:  p.Reference(),
				OccurredAt: now,
			}.Marshal()
			if err != nil {
				return err
			}

			record := outbox.ModelFromDomain(&outbox.Outbox{
				ID:            uuid.NewString(),
				AggregateType: aggregateType,
				AggregateID:   p.ID(),
				EventType:     string(effect),
				Topic:         kafka.TopicNotifications,
				MessageKey:    p.ID(),
				Payload:       payload,
			})
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return s.conflictError(ctx, p.ID(), events[0].Version())
		}
		return err
	}
	return nil
}

// conflictError строит VersionConflictError, дочитывая актуальную версию
// журнала: Expected — версия, которую примет хранилище, Got — версия,
// которую пытались записать.
func (s *paymentStore) conflictError(ctx context.Context, paymentID string, got domain.Version) error {
	var head uint64
	if err := s.db.WithContext(ctx).
		Model(&PaymentEventModel{}).
		Where("payment_id = ?", paymentID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&head).Error; err != nil {
		head = uint64(got)
	}
	return &domain.VersionConflictError{
		PaymentID: paymentID,
		Expected:  domain.Version(head).Next(),
		Got:       got,
	}
}

// Load читает журнал событий платежа и восстанавливает агрегат.
func (s *paymentStore) Load(ctx context.Context, paymentID string) (*domain.Payment, error) {
	var models []PaymentEventModel

	if err := s.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("version ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	if len(models) == 0 {
		return nil, domain.ErrPaymentNotFound
	}

	events := make([]domain.Event, 0, len(models))
	for _, m := range models {
		evt, err := domain.UnmarshalEvent(domain.EventType(m.Type), m.Payload)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}

	return domain.Replay(paymentID, events)
}

// isDuplicateKeyError проверяет, является ли ошибка дубликатом ключа.
// MySQL возвращает ошибку с кодом 1062 при попытке вставить дубликат.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	// GORM v2 имеет ErrDuplicatedKey, также проверяем текст ошибки MySQL
	errMsg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "1062")
}

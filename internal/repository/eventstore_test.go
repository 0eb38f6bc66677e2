// Package repository содержит unit тесты хранилища журнала событий.
package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"example.com/payment-system/internal/domain"
)

// =====================================
// Вспомогательные функции
// =====================================

// setupMockDB создаёт мок базы данных с GORM.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Ошибка создания sqlmock")

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Ошибка инициализации GORM")

	return gormDB, mock, func() { _ = db.Close() }
}

func requestedPayment(t *testing.T) *domain.Payment {
	t.Helper()
	p, warn, err := domain.New("payment-uuid-123").Request(domain.PaymentPayload{
		PaymentID:              "payment-uuid-123",
		AuthorizationReference: "REF-001",
		Customer:               domain.Customer{ID: "customer-1", Email: "test@example.com", Country: "DE"},
		Method:                 domain.MethodCreditCard,
		AuthorizationType:      domain.FullAuthorization,
		Amount:                 10000,
		Currency:               "EUR",
	})
	require.NoError(t, err)
	require.Nil(t, warn)
	return p
}

// =====================================
// Тесты Save
// =====================================

func TestSave_AppendsEvents(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	p := requestedPayment(t)
	require.Len(t, p.PendingEvents(), 1)
	require.Empty(t, p.PendingSideEffects())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payment_events`")).
		WithArgs(sqlmock.AnyArg(), "payment-uuid-123", 1, string(domain.EventPaymentRequested), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	store := NewPaymentStore(gormDB)
	err := store.Save(context.Background(), p)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_WritesOutbox(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	p := requestedPayment(t)
	p, warn, err := p.EvaluateRisk(domain.RiskDenied())
	require.NoError(t, err)
	require.Nil(t, warn)
	require.Len(t, p.PendingEvents(), 2)
	require.Len(t, p.PendingSideEffects(), 2)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payment_events`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payment_events`")).
		WillReturnResult(sqlmock.NewResult(2, 1))
	// По одной записи outbox на каждый побочный эффект
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `outbox`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `outbox`")).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	store := NewPaymentStore(gormDB)
	err = store.Save(context.Background(), p)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_VersionConflict(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	p := requestedPayment(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payment_events`")).
		WillReturnError(errors.New("Error 1062: Duplicate entry '1' for key 'idx_payment_events_version'"))
	mock.ExpectRollback()
	// Для детализации конфликта дочитывается актуальная версия журнала
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM `payment_events`")).
		WithArgs("payment-uuid-123").
		WillReturnRows(sqlmock.NewRows([]string{"COALESCE(MAX(version), 0)"}).AddRow(3))

	store := NewPaymentStore(gormDB)
	err := store.Save(context.Background(), p)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVersionConflict))

	// Expected — следующая версия по журналу, Got — та, что пытались записать
	var conflict *domain.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "payment-uuid-123", conflict.PaymentID)
	assert.Equal(t, domain.Version(4), conflict.Expected)
	assert.Equal(t, domain.Version(1), conflict.Got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_NothingPending(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	p := requestedPayment(t).Flushed()

	store := NewPaymentStore(gormDB)
	err := store.Save(context.Background(), p)

	// Без накопленных событий транзакция не открывается
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =====================================
// Тесты Load
// =====================================

func TestLoad_RestoresPayment(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	p := requestedPayment(t)
	p, warn, err := p.EvaluateRisk(domain.RiskApproved(domain.RiskFrictionless))
	require.NoError(t, err)
	require.Nil(t, warn)

	rows := sqlmock.NewRows([]string{"id", "payment_id", "version", "type", "payload", "created_at"})
	for _, evt := range p.PendingEvents() {
		payload, merr := domain.MarshalEvent(evt)
		require.NoError(t, merr)
		rows.AddRow(evt.EventID(), evt.PaymentID(), uint64(evt.Version()), string(evt.Type()), payload, evt.OccurredAt())
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `payment_events` WHERE payment_id = ? ORDER BY version ASC")).
		WithArgs("payment-uuid-123").
		WillReturnRows(rows)

	store := NewPaymentStore(gormDB)
	loaded, err := store.Load(context.Background(), "payment-uuid-123")

	require.NoError(t, err)
	assert.Equal(t, p.Phase(), loaded.Phase())
	assert.Equal(t, p.Version(), loaded.Version())
	assert.Empty(t, loaded.PendingEvents())
	assert.Empty(t, loaded.PendingSideEffects())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_NotFound(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `payment_events`")).
		WithArgs("payment-uuid-999").
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_id", "version", "type", "payload", "created_at"}))

	store := NewPaymentStore(gormDB)
	_, err := store.Load(context.Background(), "payment-uuid-999")

	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =====================================
// Тесты isDuplicateKeyError
// =====================================

func TestIsDuplicateKeyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"MySQL Error 1062", errors.New("Error 1062: Duplicate entry"), true},
		{"Duplicate entry текст", errors.New("Duplicate entry '5' for key"), true},
		{"GORM ErrDuplicatedKey", gorm.ErrDuplicatedKey, true},
		{"другая ошибка", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isDuplicateKeyError(tt.err))
		})
	}
}

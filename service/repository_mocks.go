package service

import (
	"context"
	"time"

	"walletledger/events"
	"walletledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.NewAccount) (*models.Account, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) LockByID(ctx context.Context, id int64) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetSystemWallet(ctx context.Context) (*models.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) LockSystemWallet(ctx context.Context) (*models.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) UpdateBalance(ctx context.Context, id int64, newBalance decimal.Decimal) error {
	args := m.Called(ctx, id, newBalance)
	return args.Error(0)
}

func (m *MockAccountRepository) Deactivate(ctx context.Context, id int64, actorID int64, reason string) error {
	args := m.Called(ctx, id, actorID, reason)
	return args.Error(0)
}

func (m *MockAccountRepository) Reactivate(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAccountRepository) Anonymize(ctx context.Context, id int64, anonymizedName string, actorID int64, reason string) error {
	args := m.Called(ctx, id, anonymizedName, actorID, reason)
	return args.Error(0)
}

func (m *MockAccountRepository) SoftDelete(ctx context.Context, id int64, actorID int64) error {
	args := m.Called(ctx, id, actorID)
	return args.Error(0)
}

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Append(ctx context.Context, entry *models.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByID(ctx context.Context, id int64) (*models.LedgerEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) LockByID(ctx context.Context, id int64) (*models.LedgerEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) List(ctx context.Context, filter models.LedgerFilter, page models.Pagination) ([]*models.LedgerEntry, int64, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerRepository) ListByAccount(ctx context.Context, accountID int64) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) ListOlderThan(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, cutoff, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) Retract(ctx context.Context, id int64, retraction models.Retraction) error {
	args := m.Called(ctx, id, retraction)
	return args.Error(0)
}

func (m *MockLedgerRepository) UpdateDisplayNames(ctx context.Context, accountID int64, displayName string) (int64, error) {
	args := m.Called(ctx, accountID, displayName)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) DeleteArchived(ctx context.Context, ids []int64) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) Counterparts(ctx context.Context, accountID int64) ([]models.Counterpart, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Counterpart), args.Error(1)
}

// MockArchiveRepository is a mock implementation of ArchiveRepository
type MockArchiveRepository struct {
	mock.Mock
}

func (m *MockArchiveRepository) CopyEntry(ctx context.Context, entry *models.LedgerEntry, batchID uuid.UUID) (bool, error) {
	args := m.Called(ctx, entry, batchID)
	return args.Bool(0), args.Error(1)
}

func (m *MockArchiveRepository) CopyAccount(ctx context.Context, account *models.Account, reason string, actorID int64) error {
	args := m.Called(ctx, account, reason, actorID)
	return args.Error(0)
}

func (m *MockArchiveRepository) ListBatch(ctx context.Context, batchID uuid.UUID) ([]*models.ArchivedLedgerEntry, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ArchivedLedgerEntry), args.Error(1)
}

func (m *MockArchiveRepository) RestoreBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	args := m.Called(ctx, batchID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockArchiveRepository) UpdateDisplayNames(ctx context.Context, accountID int64, displayName string) (int64, error) {
	args := m.Called(ctx, accountID, displayName)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockArchiveRepository) Stats(ctx context.Context, cutoff time.Time) (*models.ArchiveStats, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ArchiveStats), args.Error(1)
}

// MockObligationRepository is a mock implementation of ObligationRepository
type MockObligationRepository struct {
	mock.Mock
}

func (m *MockObligationRepository) CountForAccount(ctx context.Context, accountID int64) (models.ObligationCounts, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(models.ObligationCounts), args.Error(1)
}

// MockOperationalLogRepository is a mock implementation of OperationalLogRepository
type MockOperationalLogRepository struct {
	mock.Mock
}

func (m *MockOperationalLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOperationalLogRepository) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOperationalLogRepository) SampleOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.GameRoundLog, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.GameRoundLog), args.Error(1)
}

func (m *MockOperationalLogRepository) Stats(ctx context.Context, cutoff time.Time) (*models.RetentionStats, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RetentionStats), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	accountRepo    AccountRepository
	ledgerRepo     LedgerRepository
	archiveRepo    ArchiveRepository
	obligationRepo ObligationRepository
	eventBus       EventPublisher
}

// SetRepositories wires the repositories returned by the unit of work.
// A nil event bus is replaced by a publisher that accepts every event.
func (m *MockUnitOfWork) SetRepositories(accountRepo AccountRepository, ledgerRepo LedgerRepository, archiveRepo ArchiveRepository, obligationRepo ObligationRepository, eventBus EventPublisher) {
	m.accountRepo = accountRepo
	m.ledgerRepo = ledgerRepo
	m.archiveRepo = archiveRepo
	m.obligationRepo = obligationRepo
	if eventBus == nil {
		publisher := new(MockEventPublisher)
		publisher.On("Publish", mock.Anything).Return()
		eventBus = publisher
	}
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) AccountRepository() AccountRepository {
	return m.accountRepo
}

func (m *MockUnitOfWork) LedgerRepository() LedgerRepository {
	return m.ledgerRepo
}

func (m *MockUnitOfWork) ArchiveRepository() ArchiveRepository {
	return m.archiveRepo
}

func (m *MockUnitOfWork) ObligationRepository() ObligationRepository {
	return m.obligationRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

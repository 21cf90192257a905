package service

import (
	"context"

	"walletledger/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

const (
	TestOwnerID        = int64(1)
	TestOtherOwnerID   = int64(2)
	TestPlayerID       = int64(10)
	TestOtherPlayerID  = int64(11)
	TestSystemWalletID = int64(99)
	TestActorID        = int64(500)
)

var testActor = models.Actor{ID: TestActorID, Name: "admin"}

func ptr[T any](v T) *T { return &v }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// decEq matches a decimal argument by numeric value regardless of scale
func decEq(s string) interface{} {
	expected := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(expected)
	})
}

func newOwner(id int64, balance string) *models.Account {
	return &models.Account{
		ID:       id,
		Type:     models.AccountTypeOwner,
		UserName: "owner",
		Balance:  dec(balance),
		Status:   models.AccountStatusActive,
	}
}

func newPlayer(id, ownerID int64, balance string) *models.Account {
	return &models.Account{
		ID:       id,
		Type:     models.AccountTypePlayer,
		UserName: "player",
		Balance:  dec(balance),
		OwnerRef: ptr(ownerID),
		Status:   models.AccountStatusActive,
	}
}

func newSystemWallet(balance string) *models.Account {
	return &models.Account{
		ID:       TestSystemWalletID,
		Type:     models.AccountTypeSystemWallet,
		UserName: "system",
		Balance:  dec(balance),
		Status:   models.AccountStatusActive,
	}
}

// testMocks bundles a unit of work wired to fresh repository mocks
type testMocks struct {
	Factory        *MockUnitOfWorkFactory
	UoW            *MockUnitOfWork
	AccountRepo    *MockAccountRepository
	LedgerRepo     *MockLedgerRepository
	ArchiveRepo    *MockArchiveRepository
	ObligationRepo *MockObligationRepository
	EventBus       *MockEventPublisher
}

func newTestMocks(ctx context.Context) *testMocks {
	m := &testMocks{
		Factory:        new(MockUnitOfWorkFactory),
		UoW:            new(MockUnitOfWork),
		AccountRepo:    new(MockAccountRepository),
		LedgerRepo:     new(MockLedgerRepository),
		ArchiveRepo:    new(MockArchiveRepository),
		ObligationRepo: new(MockObligationRepository),
		EventBus:       new(MockEventPublisher),
	}
	m.UoW.SetRepositories(m.AccountRepo, m.LedgerRepo, m.ArchiveRepo, m.ObligationRepo, m.EventBus)

	m.Factory.On("Create").Return(m.UoW)
	m.UoW.On("Begin", ctx).Return(nil)
	m.UoW.On("Rollback").Return(nil)
	return m
}

func (m *testMocks) AssertExpectations(t mock.TestingT) {
	m.Factory.AssertExpectations(t)
	m.UoW.AssertExpectations(t)
	m.AccountRepo.AssertExpectations(t)
	m.LedgerRepo.AssertExpectations(t)
	m.ArchiveRepo.AssertExpectations(t)
	m.ObligationRepo.AssertExpectations(t)
	m.EventBus.AssertExpectations(t)
}

// expectAppend accepts one ledger append and assigns it id
func (m *testMocks) expectAppend(ctx context.Context, id int64, match func(e *models.LedgerEntry) bool) *mock.Call {
	return m.LedgerRepo.On("Append", ctx, mock.MatchedBy(match)).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.LedgerEntry).ID = id
		}).
		Return(nil)
}

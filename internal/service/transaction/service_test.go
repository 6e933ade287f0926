package transaction_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mintarch/ledger/internal/errs"
	"github.com/mintarch/ledger/internal/ledger"
	"github.com/mintarch/ledger/internal/service/transaction"
	"github.com/mintarch/ledger/internal/storage/memory"
)

type fixture struct {
	store   *memory.Store
	svc     transaction.Service
	ledger  ledger.Ledger
	cash    ledger.Account
	revenue ledger.Account
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	orgID := uuid.New()
	l := ledger.Ledger{ID: uuid.New(), OrganizationID: orgID, Name: "Main", Currency: "USD", CurrencyExponent: 2}
	store.SeedLedger(l)
	cash := ledger.Account{ID: uuid.New(), LedgerID: l.ID, OrganizationID: orgID, Name: "Cash", NormalBalance: ledger.DirectionDebit}
	revenue := ledger.Account{ID: uuid.New(), LedgerID: l.ID, OrganizationID: orgID, Name: "Revenue", NormalBalance: ledger.DirectionCredit}
	store.SeedAccount(cash)
	store.SeedAccount(revenue)
	return fixture{store: store, svc: transaction.New(store, store), ledger: l, cash: cash, revenue: revenue}
}

func (f fixture) transfer(t *testing.T, amount int64, opts ...ledger.TxOption) ledger.Transaction {
	t.Helper()
	tx, err := ledger.NewTransaction(f.ledger.OrganizationID, f.ledger, []ledger.EntrySpec{
		{AccountID: f.cash.ID, Direction: ledger.DirectionDebit, Amount: amount},
		{AccountID: f.revenue.ID, Direction: ledger.DirectionCredit, Amount: amount},
	}, opts...)
	require.NoError(t, err)
	return tx
}

func TestCreateTransaction_PostedTransferUpdatesBothAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.transfer(t, 1500, ledger.WithStatus(ledger.StatusPosted))
	saved, err := f.svc.CreateTransaction(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, tx.ID, saved.ID)

	cash, err := f.store.GetAccount(ctx, f.ledger.OrganizationID, f.cash.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1500), cash.Posted.Amount)
	require.Equal(t, int64(1500), cash.Posted.Debits)
	require.Equal(t, int64(1500), cash.Available.Amount)
	require.Equal(t, int64(1), cash.LockVersion)

	revenue, err := f.store.GetAccount(ctx, f.ledger.OrganizationID, f.revenue.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1500), revenue.Posted.Amount)
	require.Equal(t, int64(1500), revenue.Posted.Credits)
}

func TestCreateTransaction_PostedReversalDrainsAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fund := f.transfer(t, 10000, ledger.WithStatus(ledger.StatusPosted))
	_, err := f.svc.CreateTransaction(ctx, fund)
	require.NoError(t, err)

	// spend it all back the other way, again posted at creation
	spend, err := ledger.NewTransaction(f.ledger.OrganizationID, f.ledger, []ledger.EntrySpec{
		{AccountID: f.revenue.ID, Direction: ledger.DirectionDebit, Amount: 10000},
		{AccountID: f.cash.ID, Direction: ledger.DirectionCredit, Amount: 10000},
	}, ledger.WithStatus(ledger.StatusPosted))
	require.NoError(t, err)
	_, err = f.svc.CreateTransaction(ctx, spend)
	require.NoError(t, err)

	revenue, err := f.store.GetAccount(ctx, f.ledger.OrganizationID, f.revenue.ID)
	require.NoError(t, err)
	require.Zero(t, revenue.Posted.Amount)
	require.Zero(t, revenue.Available.Amount, "nothing pending and nothing posted, nothing may remain spendable")

	cash, err := f.store.GetAccount(ctx, f.ledger.OrganizationID, f.cash.ID)
	require.NoError(t, err)
	require.Zero(t, cash.Available.Amount)
}

func TestCreateTransaction_ResubmittedIDIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.transfer(t, 1000, ledger.WithStatus(ledger.StatusPosted))
	_, err := f.svc.CreateTransaction(ctx, tx)
	require.NoError(t, err)

	again, err := f.svc.CreateTransaction(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, tx.ID, again.ID)

	cash, _ := f.store.GetAccount(ctx, f.ledger.OrganizationID, f.cash.ID)
	require.Equal(t, int64(1000), cash.Posted.Amount, "balances must not double-apply")
	require.Equal(t, int64(1), cash.LockVersion)
}

func TestCreateTransaction_IdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.transfer(t, 500, ledger.WithIdempotencyKey("payout-7"))
	_, err := f.svc.CreateTransaction(ctx, first)
	require.NoError(t, err)

	// same key under a different transaction id is refused
	second := f.transfer(t, 500, ledger.WithIdempotencyKey("payout-7"))
	_, err = f.svc.CreateTransaction(ctx, second)
	require.ErrorIs(t, err, errs.ErrConflict)
	require.False(t, errs.IsRetryable(err))

	// resubmitting the original id returns the prior transaction
	prior, err := f.svc.CreateTransaction(ctx, first)
	require.NoError(t, err)
	require.Equal(t, first.ID, prior.ID)
}

func TestCreateTransaction_MissingAccountWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ghost := uuid.New()
	tx, err := ledger.NewTransaction(f.ledger.OrganizationID, f.ledger, []ledger.EntrySpec{
		{AccountID: f.cash.ID, Direction: ledger.DirectionDebit, Amount: 400},
		{AccountID: ghost, Direction: ledger.DirectionCredit, Amount: 400},
	})
	require.NoError(t, err)

	_, err = f.svc.CreateTransaction(ctx, tx)
	require.ErrorIs(t, err, errs.ErrNotFound)

	cash, _ := f.store.GetAccount(ctx, f.ledger.OrganizationID, f.cash.ID)
	require.Zero(t, cash.Pending.Amount)
	require.Zero(t, cash.LockVersion)
	_, err = f.store.GetTransaction(ctx, f.ledger.OrganizationID, f.ledger.ID, tx.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPostTransaction_PendingToPosted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.transfer(t, 900)
	_, err := f.svc.CreateTransaction(ctx, tx)
	require.NoError(t, err)

	cash, _ := f.store.GetAccount(ctx, f.ledger.OrganizationID, f.cash.ID)
	require.Equal(t, int64(900), cash.Pending.Amount)
	require.Zero(t, cash.Posted.Amount)
	require.Zero(t, cash.Available.Amount, "pending increase must not be spendable yet")

	posted, err := f.svc.PostTransaction(ctx, f.ledger.OrganizationID, f.ledger.ID, tx.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusPosted, posted.Status)

	cash, _ = f.store.GetAccount(ctx, f.ledger.OrganizationID, f.cash.ID)
	require.Equal(t, int64(900), cash.Posted.Amount)
	require.Equal(t, int64(900), cash.Available.Amount)
	require.Equal(t, int64(2), cash.LockVersion)

	revenue, _ := f.store.GetAccount(ctx, f.ledger.OrganizationID, f.revenue.ID)
	require.Equal(t, int64(900), revenue.Posted.Amount)
}

func TestPostTransaction_AlreadyPostedIsFastPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.transfer(t, 300)
	_, err := f.svc.CreateTransaction(ctx, tx)
	require.NoError(t, err)
	_, err = f.svc.PostTransaction(ctx, f.ledger.OrganizationID, f.ledger.ID, tx.ID)
	require.NoError(t, err)

	cashBefore, _ := f.store.GetAccount(ctx, f.ledger.OrganizationID, f.cash.ID)
	again, err := f.svc.PostTransaction(ctx, f.ledger.OrganizationID, f.ledger.ID, tx.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusPosted, again.Status)

	cashAfter, _ := f.store.GetAccount(ctx, f.ledger.OrganizationID, f.cash.ID)
	require.Equal(t, cashBefore.LockVersion, cashAfter.LockVersion, "re-posting must not write")
	require.Equal(t, cashBefore.Posted, cashAfter.Posted)
}

func TestPostTransaction_TenancyMismatchIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.transfer(t, 100)
	_, err := f.svc.CreateTransaction(ctx, tx)
	require.NoError(t, err)

	_, err = f.svc.PostTransaction(ctx, uuid.New(), f.ledger.ID, tx.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = f.svc.PostTransaction(ctx, f.ledger.OrganizationID, uuid.New(), tx.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestListTransactions_DefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tx := f.transfer(t, 100, ledger.WithStatus(ledger.StatusPosted))
		_, err := f.svc.CreateTransaction(ctx, tx)
		require.NoError(t, err)
	}
	// limit 0 falls back to the default page size
	txs, err := f.svc.ListTransactions(ctx, f.ledger.OrganizationID, f.ledger.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	_, err = f.svc.ListTransactions(ctx, f.ledger.OrganizationID, f.ledger.ID, -1, 10)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.svc.ListTransactions(ctx, uuid.Nil, f.ledger.ID, 0, 10)
	require.ErrorIs(t, err, errs.ErrValidation)
}

package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/mintarch/ledger/internal/errs"
	"github.com/mintarch/ledger/internal/ledger"
	"github.com/mintarch/ledger/internal/meta"
	"github.com/mintarch/ledger/internal/service/transaction"
)

func seed(t *testing.T) (*Store, ledger.Ledger, ledger.Account, ledger.Account) {
	t.Helper()
	store := New()
	orgID := uuid.New()
	l := ledger.Ledger{ID: uuid.New(), OrganizationID: orgID, Name: "Main", Currency: "USD", CurrencyExponent: 2}
	store.SeedLedger(l)
	cash := ledger.Account{ID: uuid.New(), LedgerID: l.ID, OrganizationID: orgID, Name: "Cash", NormalBalance: ledger.DirectionDebit}
	revenue := ledger.Account{ID: uuid.New(), LedgerID: l.ID, OrganizationID: orgID, Name: "Revenue", NormalBalance: ledger.DirectionCredit}
	store.SeedAccount(cash)
	store.SeedAccount(revenue)
	return store, l, cash, revenue
}

func newTx(t *testing.T, l ledger.Ledger, a, b uuid.UUID, amount int64, opts ...ledger.TxOption) ledger.Transaction {
	t.Helper()
	tx, err := ledger.NewTransaction(l.OrganizationID, l, []ledger.EntrySpec{
		{AccountID: a, Direction: ledger.DirectionDebit, Amount: amount},
		{AccountID: b, Direction: ledger.DirectionCredit, Amount: amount},
	}, opts...)
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	return tx
}

func project(t *testing.T, store *Store, tx ledger.Transaction) []ledger.Account {
	t.Helper()
	return projectWith(t, store, tx, ledger.FoldEntries)
}

func projectPosting(t *testing.T, store *Store, tx ledger.Transaction) []ledger.Account {
	t.Helper()
	return projectWith(t, store, tx, ledger.FoldPostings)
}

func projectWith(t *testing.T, store *Store, tx ledger.Transaction, fold func(map[uuid.UUID]ledger.Account, []ledger.Entry) (map[uuid.UUID]ledger.Account, error)) []ledger.Account {
	t.Helper()
	accounts, err := store.AccountsByIDs(context.Background(), tx.OrganizationID, tx.AccountIDs())
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	projected, err := fold(accounts, tx.Entries)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	out := make([]ledger.Account, 0, len(projected))
	for _, a := range projected {
		out = append(out, a)
	}
	return out
}

func TestCreateTransaction_AppliesBalancesAndBumpsVersion(t *testing.T) {
	store, l, cash, revenue := seed(t)
	ctx := context.Background()

	tx := newTx(t, l, cash.ID, revenue.ID, 1500, ledger.WithStatus(ledger.StatusPosted))
	if err := store.CreateTransaction(ctx, tx, project(t, store, tx)); err != nil {
		t.Fatalf("create: %v", err)
	}

	gotCash, err := store.GetAccount(ctx, l.OrganizationID, cash.ID)
	if err != nil {
		t.Fatalf("get cash: %v", err)
	}
	if gotCash.Posted.Amount != 1500 || gotCash.Available.Amount != 1500 {
		t.Fatalf("cash balances = %+v / %+v", gotCash.Posted, gotCash.Available)
	}
	if gotCash.LockVersion != cash.LockVersion+1 {
		t.Fatalf("lock version = %d", gotCash.LockVersion)
	}

	saved, err := store.GetTransaction(ctx, l.OrganizationID, l.ID, tx.ID)
	if err != nil {
		t.Fatalf("get tx: %v", err)
	}
	if len(saved.Entries) != 2 {
		t.Fatalf("entries = %d", len(saved.Entries))
	}
}

func TestCreateTransaction_ResubmittedIDDoesNotReapply(t *testing.T) {
	store, l, cash, revenue := seed(t)
	ctx := context.Background()

	tx := newTx(t, l, cash.ID, revenue.ID, 1000, ledger.WithStatus(ledger.StatusPosted))
	if err := store.CreateTransaction(ctx, tx, project(t, store, tx)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	// retried write of the same id: metadata-only, balances untouched
	if err := store.CreateTransaction(ctx, tx, project(t, store, tx)); err != nil {
		t.Fatalf("retry: %v", err)
	}
	gotCash, _ := store.GetAccount(ctx, l.OrganizationID, cash.ID)
	if gotCash.Posted.Amount != 1000 {
		t.Fatalf("balance re-applied: %+v", gotCash.Posted)
	}
	if gotCash.LockVersion != cash.LockVersion+1 {
		t.Fatalf("lock version moved on retry: %d", gotCash.LockVersion)
	}
}

func TestCreateTransaction_StaleVersionConflictIsAllOrNothing(t *testing.T) {
	store, l, cash, revenue := seed(t)
	ctx := context.Background()

	tx1 := newTx(t, l, cash.ID, revenue.ID, 500, ledger.WithStatus(ledger.StatusPosted))
	tx2 := newTx(t, l, cash.ID, revenue.ID, 700, ledger.WithStatus(ledger.StatusPosted))

	// both project from the same read snapshot
	p1 := project(t, store, tx1)
	p2 := project(t, store, tx2)

	if err := store.CreateTransaction(ctx, tx1, p1); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := store.CreateTransaction(ctx, tx2, p2)
	if !errs.IsRetryable(err) {
		t.Fatalf("expected retryable conflict, got %v", err)
	}
	// nothing from the losing write leaked
	if _, err := store.GetTransaction(ctx, l.OrganizationID, l.ID, tx2.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("losing transaction is visible: %v", err)
	}
	gotCash, _ := store.GetAccount(ctx, l.OrganizationID, cash.ID)
	if gotCash.Posted.Amount != 500 {
		t.Fatalf("losing write leaked balances: %+v", gotCash.Posted)
	}
}

func TestCreateTransaction_ConcurrentWritersOneWinner(t *testing.T) {
	store, l, cash, revenue := seed(t)
	ctx := context.Background()
	svc := transaction.New(store, store)

	const writers = 8
	var wg sync.WaitGroup
	retries := make(chan int, writers)
	errorsCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		tx := newTx(t, l, cash.ID, revenue.ID, 100, ledger.WithStatus(ledger.StatusPosted))
		wg.Add(1)
		go func() {
			defer wg.Done()
			// losers retry until the write lands, as a real caller would
			for attempt := 0; attempt < 100; attempt++ {
				_, err := svc.CreateTransaction(ctx, tx)
				if err == nil {
					retries <- attempt
					errorsCh <- nil
					return
				}
				if !errs.IsRetryable(err) {
					errorsCh <- err
					return
				}
			}
			errorsCh <- errors.New("retries exhausted")
		}()
	}
	wg.Wait()
	close(errorsCh)
	close(retries)

	for err := range errorsCh {
		if err != nil {
			t.Fatalf("writer failed: %v", err)
		}
	}
	lost := 0
	for attempt := range retries {
		lost += attempt
	}
	if lost == 0 {
		t.Logf("no writer lost a race this run")
	}

	// every set of entries is reflected exactly once
	gotCash, _ := store.GetAccount(ctx, l.OrganizationID, cash.ID)
	if gotCash.Posted.Amount != int64(writers*100) {
		t.Fatalf("posted = %d, want %d", gotCash.Posted.Amount, writers*100)
	}
	if gotCash.LockVersion != int64(writers) {
		t.Fatalf("lock version = %d, want %d", gotCash.LockVersion, writers)
	}
}

func TestPostTransaction_MovesStatusAndBalances(t *testing.T) {
	store, l, cash, revenue := seed(t)
	ctx := context.Background()

	tx := newTx(t, l, cash.ID, revenue.ID, 900)
	if err := store.CreateTransaction(ctx, tx, project(t, store, tx)); err != nil {
		t.Fatalf("create: %v", err)
	}
	posted := tx.Post()
	if err := store.PostTransaction(ctx, posted, projectPosting(t, store, posted)); err != nil {
		t.Fatalf("post: %v", err)
	}

	saved, _ := store.GetTransaction(ctx, l.OrganizationID, l.ID, tx.ID)
	if saved.Status != ledger.StatusPosted || saved.Entries[0].Status != ledger.StatusPosted {
		t.Fatalf("status not synchronized: %+v", saved)
	}
	gotCash, _ := store.GetAccount(ctx, l.OrganizationID, cash.ID)
	if gotCash.Posted.Amount != 900 || gotCash.LockVersion != cash.LockVersion+2 {
		t.Fatalf("cash = %+v v%d", gotCash.Posted, gotCash.LockVersion)
	}
}

func TestListTransactions_NewestFirstWithPaging(t *testing.T) {
	store, l, cash, revenue := seed(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		tx := newTx(t, l, cash.ID, revenue.ID, 100, ledger.WithStatus(ledger.StatusPosted))
		if err := store.CreateTransaction(ctx, tx, project(t, store, tx)); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, tx.ID)
	}

	page, err := store.ListTransactions(ctx, l.OrganizationID, l.ID, 0, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[2] || page[1].ID != ids[1] {
		t.Fatalf("unexpected page: %+v", page)
	}
	page, _ = store.ListTransactions(ctx, l.OrganizationID, l.ID, 2, 2)
	if len(page) != 1 || page[0].ID != ids[0] {
		t.Fatalf("unexpected second page: %+v", page)
	}
}

func TestTenancyMaskedAsNotFound(t *testing.T) {
	store, l, cash, revenue := seed(t)
	ctx := context.Background()

	tx := newTx(t, l, cash.ID, revenue.ID, 100, ledger.WithStatus(ledger.StatusPosted))
	if err := store.CreateTransaction(ctx, tx, project(t, store, tx)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.GetTransaction(ctx, uuid.New(), l.ID, tx.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("foreign org: %v", err)
	}
	if _, err := store.GetTransaction(ctx, l.OrganizationID, uuid.New(), tx.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("foreign ledger: %v", err)
	}
	if _, err := store.GetAccount(ctx, uuid.New(), cash.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("foreign account: %v", err)
	}
}

func TestReads_DoNotAliasStoreState(t *testing.T) {
	store, l, cash, revenue := seed(t)
	ctx := context.Background()

	tx := newTx(t, l, cash.ID, revenue.ID, 100,
		ledger.WithStatus(ledger.StatusPosted),
		ledger.WithMetadata(meta.Metadata{"memo": "march payout"}))
	if err := store.CreateTransaction(ctx, tx, project(t, store, tx)); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.GetTransaction(ctx, l.OrganizationID, l.ID, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Metadata["memo"] = "tampered"
	got.Entries[0].Amount = 999999

	reread, _ := store.GetTransaction(ctx, l.OrganizationID, l.ID, tx.ID)
	if reread.Metadata["memo"] != "march payout" {
		t.Fatalf("metadata mutated through a read: %+v", reread.Metadata)
	}
	if reread.Entries[0].Amount != 100 {
		t.Fatalf("entry mutated through a read: %+v", reread.Entries[0])
	}

	st := ledger.Settlement{
		ID: uuid.New(), OrganizationID: l.OrganizationID,
		SettledAccountID: cash.ID, ContraAccountID: revenue.ID,
		Status: ledger.SettlementDrafting, Currency: "USD",
		Metadata: meta.Metadata{"batch": "2026-03"},
	}
	if _, err := store.CreateSettlement(ctx, st); err != nil {
		t.Fatalf("create settlement: %v", err)
	}
	// the caller keeps its own map; mutating it must not touch the store
	st.Metadata["batch"] = "tampered"

	gotSt, err := store.GetSettlement(ctx, l.OrganizationID, st.ID)
	if err != nil {
		t.Fatalf("get settlement: %v", err)
	}
	gotSt.Metadata["batch"] = "tampered again"

	rereadSt, _ := store.GetSettlement(ctx, l.OrganizationID, st.ID)
	if rereadSt.Metadata["batch"] != "2026-03" {
		t.Fatalf("settlement metadata mutated through a read: %+v", rereadSt.Metadata)
	}
}

func TestSettlementLinks_ExclusiveOwnership(t *testing.T) {
	store, _, cash, revenue := seed(t)
	ctx := context.Background()
	orgID := cash.OrganizationID

	stA := ledger.Settlement{ID: uuid.New(), OrganizationID: orgID, SettledAccountID: cash.ID, ContraAccountID: revenue.ID, Status: ledger.SettlementDrafting, Currency: "USD"}
	stB := ledger.Settlement{ID: uuid.New(), OrganizationID: orgID, SettledAccountID: cash.ID, ContraAccountID: revenue.ID, Status: ledger.SettlementDrafting, Currency: "USD"}
	if _, err := store.CreateSettlement(ctx, stA); err != nil {
		t.Fatalf("create A: %v", err)
	}
	if _, err := store.CreateSettlement(ctx, stB); err != nil {
		t.Fatalf("create B: %v", err)
	}

	entryID := uuid.New()
	if err := store.LinkEntries(ctx, stA.ID, []uuid.UUID{entryID}); err != nil {
		t.Fatalf("link: %v", err)
	}
	// re-linking to the same settlement is a no-op
	if err := store.LinkEntries(ctx, stA.ID, []uuid.UUID{entryID}); err != nil {
		t.Fatalf("relink: %v", err)
	}
	ids, _ := store.SettlementEntryIDs(ctx, stA.ID)
	if len(ids) != 1 {
		t.Fatalf("duplicate link recorded: %v", ids)
	}
	// another settlement cannot take it
	err := store.LinkEntries(ctx, stB.ID, []uuid.UUID{entryID})
	if !errors.Is(err, errs.ErrConflict) || errs.IsRetryable(err) {
		t.Fatalf("cross-settlement link: %v", err)
	}

	if err := store.UnlinkEntries(ctx, stA.ID, []uuid.UUID{entryID}); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if err := store.LinkEntries(ctx, stB.ID, []uuid.UUID{entryID}); err != nil {
		t.Fatalf("link after release: %v", err)
	}
}

func TestUpdateSettlement_ConditionedOnStatus(t *testing.T) {
	store, _, cash, revenue := seed(t)
	ctx := context.Background()
	orgID := cash.OrganizationID

	st := ledger.Settlement{ID: uuid.New(), OrganizationID: orgID, SettledAccountID: cash.ID, ContraAccountID: revenue.ID, Status: ledger.SettlementDrafting, Currency: "USD"}
	if _, err := store.CreateSettlement(ctx, st); err != nil {
		t.Fatalf("create: %v", err)
	}

	st.Status = ledger.SettlementProcessing
	if _, err := store.UpdateSettlement(ctx, st, ledger.SettlementDrafting); err != nil {
		t.Fatalf("update: %v", err)
	}
	// a writer still holding the drafting snapshot loses the race
	stale := st
	stale.Status = ledger.SettlementArchiving
	_, err := store.UpdateSettlement(ctx, stale, ledger.SettlementDrafting)
	if !errs.IsRetryable(err) {
		t.Fatalf("stale update: %v", err)
	}
}

func TestDeleteSettlement_DraftingOnly(t *testing.T) {
	store, _, cash, revenue := seed(t)
	ctx := context.Background()
	orgID := cash.OrganizationID

	st := ledger.Settlement{ID: uuid.New(), OrganizationID: orgID, SettledAccountID: cash.ID, ContraAccountID: revenue.ID, Status: ledger.SettlementDrafting, Currency: "USD"}
	if _, err := store.CreateSettlement(ctx, st); err != nil {
		t.Fatalf("create: %v", err)
	}
	entryID := uuid.New()
	if err := store.LinkEntries(ctx, st.ID, []uuid.UUID{entryID}); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := store.DeleteSettlement(ctx, orgID, st.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetSettlement(ctx, orgID, st.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("settlement survived delete: %v", err)
	}
	owners, _ := store.SettlementLinks(ctx, []uuid.UUID{entryID})
	if len(owners) != 0 {
		t.Fatalf("links survived delete: %v", owners)
	}

	st2 := st
	st2.ID = uuid.New()
	st2.Status = ledger.SettlementPosted
	if _, err := store.CreateSettlement(ctx, st2); err != nil {
		t.Fatalf("create posted: %v", err)
	}
	if err := store.DeleteSettlement(ctx, orgID, st2.ID); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("posted delete: %v", err)
	}
}

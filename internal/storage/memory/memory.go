package memory

// Package memory provides an in-memory store used for development and tests.
// It mirrors the postgres store's semantics, including the conditioned
// lock-version writes, so the conflict paths can be exercised without a
// database.
import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mintarch/ledger/internal/errs"
	"github.com/mintarch/ledger/internal/ledger"
)

// Store is an in-memory implementation of the repository and writer
// interfaces used by the services. Guarded by one RWMutex; all values are
// copied on the way in and out.
type Store struct {
	mu           sync.RWMutex
	ledgers      map[uuid.UUID]ledger.Ledger
	accounts     map[uuid.UUID]ledger.Account
	transactions map[uuid.UUID]ledger.Transaction
	entries      map[uuid.UUID]ledger.Entry
	// Per-(org,ledger) insertion-order index for newest-first listing.
	txOrder map[uuid.UUID][]uuid.UUID
	// Idempotency: orgID -> key -> transaction id.
	txIdem map[uuid.UUID]map[string]uuid.UUID
	// Settlements and their entry links (both directions).
	settlements map[uuid.UUID]ledger.Settlement
	linksBySet  map[uuid.UUID][]uuid.UUID
	entryOwner  map[uuid.UUID]uuid.UUID
}

// New constructs an empty in-memory store.
func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.ledgers = make(map[uuid.UUID]ledger.Ledger)
	s.accounts = make(map[uuid.UUID]ledger.Account)
	s.transactions = make(map[uuid.UUID]ledger.Transaction)
	s.entries = make(map[uuid.UUID]ledger.Entry)
	s.txOrder = make(map[uuid.UUID][]uuid.UUID)
	s.txIdem = make(map[uuid.UUID]map[string]uuid.UUID)
	s.settlements = make(map[uuid.UUID]ledger.Settlement)
	s.linksBySet = make(map[uuid.UUID][]uuid.UUID)
	s.entryOwner = make(map[uuid.UUID]uuid.UUID)
}

// Seed helpers for local dev/tests.
func (s *Store) SeedLedger(l ledger.Ledger)   { s.mu.Lock(); s.ledgers[l.ID] = l; s.mu.Unlock() }
func (s *Store) SeedAccount(a ledger.Account) { s.mu.Lock(); s.accounts[a.ID] = a; s.mu.Unlock() }
func (s *Store) Reset()                       { s.mu.Lock(); s.reset(); s.mu.Unlock() }

// Ready always succeeds for the in-memory store.
func (s *Store) Ready(_ context.Context) error { return nil }

// --- Ledger and account reads ---

// GetLedger returns a ledger by id within the organization.
func (s *Store) GetLedger(_ context.Context, orgID, ledgerID uuid.UUID) (ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[ledgerID]
	if !ok || l.OrganizationID != orgID {
		return ledger.Ledger{}, errs.NotFound("ledger", ledgerID)
	}
	return l, nil
}

// GetAccount returns an account by id within the organization.
func (s *Store) GetAccount(_ context.Context, orgID, accountID uuid.UUID) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok || a.OrganizationID != orgID {
		return ledger.Account{}, errs.NotFound("account", accountID)
	}
	return a, nil
}

// AccountsByIDs returns the organization's accounts matching ids. Absent or
// foreign accounts are simply missing from the result.
func (s *Store) AccountsByIDs(_ context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]ledger.Account, len(ids))
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok && a.OrganizationID == orgID {
			out[id] = a
		}
	}
	return out, nil
}

// --- Transaction reads ---

// GetTransaction returns a transaction with tenancy validation; an id owned
// by another organization or ledger is reported as not found.
func (s *Store) GetTransaction(_ context.Context, orgID, ledgerID, txID uuid.UUID) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[txID]
	if !ok || tx.OrganizationID != orgID || tx.LedgerID != ledgerID {
		return ledger.Transaction{}, errs.NotFound("transaction", txID)
	}
	return copyTx(tx), nil
}

// ListTransactions returns the ledger's transactions newest-created-first.
func (s *Store) ListTransactions(_ context.Context, orgID, ledgerID uuid.UUID, offset, limit int) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order := s.txOrder[ledgerID]
	out := make([]ledger.Transaction, 0, limit)
	skipped := 0
	for i := len(order) - 1; i >= 0; i-- {
		tx, ok := s.transactions[order[i]]
		if !ok || tx.OrganizationID != orgID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, copyTx(tx))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// TransactionByIdempotencyKey resolves a transaction by idempotency key.
func (s *Store) TransactionByIdempotencyKey(_ context.Context, orgID uuid.UUID, key string) (ledger.Transaction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.txIdem[orgID]; ok {
		if id, ok2 := m[key]; ok2 {
			if tx, ok3 := s.transactions[id]; ok3 {
				return copyTx(tx), true, nil
			}
		}
	}
	return ledger.Transaction{}, false, nil
}

// EntriesByIDs returns the organization's entries matching ids.
func (s *Store) EntriesByIDs(_ context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]ledger.Entry, len(ids))
	for _, id := range ids {
		if e, ok := s.entries[id]; ok && e.OrganizationID == orgID {
			out[id] = e
		}
	}
	return out, nil
}

// --- Transaction writes ---

// CreateTransaction persists the transaction, its entries and the projected
// accounts as one all-or-nothing unit. Every account write is conditioned on
// the LockVersion the projection was read with; a mismatch leaves the store
// untouched and reports a retryable conflict. A resubmitted transaction id
// updates metadata only and never re-applies balances.
func (s *Store) CreateTransaction(_ context.Context, tx ledger.Transaction, accounts []ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.transactions[tx.ID]; ok {
		existing.Metadata = tx.Metadata.Clone()
		s.transactions[tx.ID] = existing
		return nil
	}
	if err := s.checkVersionsLocked(accounts); err != nil {
		return err
	}
	s.applyAccountsLocked(accounts)
	s.transactions[tx.ID] = copyTx(tx)
	for _, e := range tx.Entries {
		s.entries[e.ID] = e
	}
	s.txOrder[tx.LedgerID] = append(s.txOrder[tx.LedgerID], tx.ID)
	if tx.IdempotencyKey != "" {
		m, ok := s.txIdem[tx.OrganizationID]
		if !ok {
			m = make(map[string]uuid.UUID)
			s.txIdem[tx.OrganizationID] = m
		}
		if _, exists := m[tx.IdempotencyKey]; !exists {
			m[tx.IdempotencyKey] = tx.ID
		}
	}
	return nil
}

// PostTransaction updates the transaction and entry statuses alongside the
// conditioned account writes, all-or-nothing.
func (s *Store) PostTransaction(_ context.Context, tx ledger.Transaction, accounts []ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; !ok {
		return errs.NotFound("transaction", tx.ID)
	}
	if err := s.checkVersionsLocked(accounts); err != nil {
		return err
	}
	s.applyAccountsLocked(accounts)
	s.transactions[tx.ID] = copyTx(tx)
	for _, e := range tx.Entries {
		s.entries[e.ID] = e
	}
	return nil
}

// checkVersionsLocked verifies every conditioned write would succeed before
// anything is applied, so a conflict rolls back the entire unit.
func (s *Store) checkVersionsLocked(accounts []ledger.Account) error {
	for _, a := range accounts {
		current, ok := s.accounts[a.ID]
		if !ok {
			return errs.NotFound("account", a.ID)
		}
		if current.LockVersion != a.LockVersion {
			return errs.RetryableConflict("account", a.ID, "lock version moved")
		}
	}
	return nil
}

func (s *Store) applyAccountsLocked(accounts []ledger.Account) {
	for _, a := range accounts {
		a.LockVersion++
		s.accounts[a.ID] = a
	}
}

// --- Settlements ---

// GetSettlement returns a settlement by id within the organization.
func (s *Store) GetSettlement(_ context.Context, orgID, settlementID uuid.UUID) (ledger.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settlements[settlementID]
	if !ok || st.OrganizationID != orgID {
		return ledger.Settlement{}, errs.NotFound("settlement", settlementID)
	}
	return copySettlement(st), nil
}

// CreateSettlement persists a new settlement row.
func (s *Store) CreateSettlement(_ context.Context, st ledger.Settlement) (ledger.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.settlements[st.ID]; ok {
		return ledger.Settlement{}, errs.TerminalConflict("settlement", st.ID, "settlement already exists")
	}
	s.settlements[st.ID] = copySettlement(st)
	return st, nil
}

// UpdateSettlement writes st conditioned on the settlement still being in
// prev; a raced status change surfaces as a retryable conflict.
func (s *Store) UpdateSettlement(_ context.Context, st ledger.Settlement, prev ledger.SettlementStatus) (ledger.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.settlements[st.ID]
	if !ok || current.OrganizationID != st.OrganizationID {
		return ledger.Settlement{}, errs.NotFound("settlement", st.ID)
	}
	if current.Status != prev {
		return ledger.Settlement{}, errs.RetryableConflict("settlement", st.ID, "status moved")
	}
	s.settlements[st.ID] = copySettlement(st)
	return st, nil
}

// DeleteSettlement removes a drafting settlement and its links.
func (s *Store) DeleteSettlement(_ context.Context, orgID, settlementID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[settlementID]
	if !ok || st.OrganizationID != orgID {
		return errs.NotFound("settlement", settlementID)
	}
	if st.Status != ledger.SettlementDrafting {
		return errs.TerminalConflict("settlement", settlementID, "only drafting settlements can be deleted")
	}
	for _, eid := range s.linksBySet[settlementID] {
		delete(s.entryOwner, eid)
	}
	delete(s.linksBySet, settlementID)
	delete(s.settlements, settlementID)
	return nil
}

// SettlementEntryIDs returns the ids of entries linked to the settlement in
// attach order.
func (s *Store) SettlementEntryIDs(_ context.Context, settlementID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	links := s.linksBySet[settlementID]
	out := make([]uuid.UUID, len(links))
	copy(out, links)
	return out, nil
}

// SettlementLinks maps each entry id to the settlement currently holding it.
func (s *Store) SettlementLinks(_ context.Context, entryIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]uuid.UUID)
	for _, id := range entryIDs {
		if owner, ok := s.entryOwner[id]; ok {
			out[id] = owner
		}
	}
	return out, nil
}

// LinkEntries attaches entries idempotently; an entry already held by a
// different settlement fails the whole batch.
func (s *Store) LinkEntries(_ context.Context, settlementID uuid.UUID, entryIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range entryIDs {
		if owner, ok := s.entryOwner[id]; ok && owner != settlementID {
			return errs.TerminalConflict("entry", id, "entry is already attached to settlement "+owner.String())
		}
	}
	for _, id := range entryIDs {
		if _, ok := s.entryOwner[id]; ok {
			continue
		}
		s.entryOwner[id] = settlementID
		s.linksBySet[settlementID] = append(s.linksBySet[settlementID], id)
	}
	return nil
}

// UnlinkEntries detaches the given entries from the settlement; ids linked
// elsewhere or not at all are ignored.
func (s *Store) UnlinkEntries(_ context.Context, settlementID uuid.UUID, entryIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	remove := make(map[uuid.UUID]struct{}, len(entryIDs))
	for _, id := range entryIDs {
		if owner, ok := s.entryOwner[id]; ok && owner == settlementID {
			remove[id] = struct{}{}
			delete(s.entryOwner, id)
		}
	}
	if len(remove) == 0 {
		return nil
	}
	links := s.linksBySet[settlementID]
	kept := links[:0]
	for _, id := range links {
		if _, gone := remove[id]; !gone {
			kept = append(kept, id)
		}
	}
	s.linksBySet[settlementID] = kept
	return nil
}

// copyTx deep-copies the entry slice and metadata map so callers cannot
// alias store state.
func copyTx(tx ledger.Transaction) ledger.Transaction {
	out := tx
	out.Entries = make([]ledger.Entry, len(tx.Entries))
	copy(out.Entries, tx.Entries)
	if tx.Metadata != nil {
		out.Metadata = tx.Metadata.Clone()
	}
	return out
}

// copySettlement deep-copies the metadata map for the same reason.
func copySettlement(st ledger.Settlement) ledger.Settlement {
	out := st
	if st.Metadata != nil {
		out.Metadata = st.Metadata.Clone()
	}
	return out
}

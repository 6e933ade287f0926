// Package transaction implements the transaction processor: it makes
// "apply a balanced set of entries to N accounts" atomic under concurrent
// writers and idempotent under retried writes of the same transaction id.
package transaction

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/mintarch/ledger/internal/errs"
	"github.com/mintarch/ledger/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
	AccountsByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error)
	GetTransaction(ctx context.Context, orgID, ledgerID, txID uuid.UUID) (ledger.Transaction, error)
	ListTransactions(ctx context.Context, orgID, ledgerID uuid.UUID, offset, limit int) ([]ledger.Transaction, error)
	TransactionByIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string) (ledger.Transaction, bool, error)
}

// Writer defines the atomic write operations needed by the service. Both
// methods persist the transaction, its entries and every projected account
// in one all-or-nothing unit, guarding each account write on the
// LockVersion the projection was read with.
type Writer interface {
	CreateTransaction(ctx context.Context, tx ledger.Transaction, accounts []ledger.Account) error
	PostTransaction(ctx context.Context, tx ledger.Transaction, accounts []ledger.Account) error
}

// Service exposes creation, posting and reads of ledger transactions.
type Service interface {
	CreateTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error)
	PostTransaction(ctx context.Context, orgID, ledgerID, txID uuid.UUID) (ledger.Transaction, error)
	GetTransaction(ctx context.Context, orgID, ledgerID, txID uuid.UUID) (ledger.Transaction, error)
	ListTransactions(ctx context.Context, orgID, ledgerID uuid.UUID, offset, limit int) ([]ledger.Transaction, error)
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

// CreateTransaction loads the affected accounts without locks, folds the
// entries into projected next-states, and hands everything to the writer as
// one conditioned atomic unit. A lost lock-version race surfaces as a
// retryable conflict; the engine itself never retries.
func (s *service) CreateTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	if tx.OrganizationID == uuid.Nil || tx.LedgerID == uuid.Nil {
		return ledger.Transaction{}, errs.Validation("organization and ledger ids are required")
	}
	if len(tx.Entries) < 2 {
		return ledger.Transaction{}, errs.Validation("transaction requires at least 2 entries")
	}

	// A resubmitted id is a no-op: balances were applied by the first call.
	if existing, err := s.repo.GetTransaction(ctx, tx.OrganizationID, tx.LedgerID, tx.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, errs.ErrNotFound) {
		return ledger.Transaction{}, err
	}

	if tx.IdempotencyKey != "" {
		prior, ok, err := s.repo.TransactionByIdempotencyKey(ctx, tx.OrganizationID, tx.IdempotencyKey)
		if err != nil {
			return ledger.Transaction{}, err
		}
		if ok {
			if prior.ID == tx.ID {
				return prior, nil
			}
			return ledger.Transaction{}, errs.TerminalConflict("transaction", prior.ID,
				"idempotency key already used by a different transaction")
		}
	}

	accounts, err := s.repo.AccountsByIDs(ctx, tx.OrganizationID, tx.AccountIDs())
	if err != nil {
		return ledger.Transaction{}, err
	}
	projected, err := ledger.FoldEntries(accounts, tx.Entries)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if err := s.writer.CreateTransaction(ctx, tx, orderedAccounts(projected)); err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

// PostTransaction drives a transaction from pending to posted. Posting an
// already-posted transaction is an idempotent fast path with no writes.
func (s *service) PostTransaction(ctx context.Context, orgID, ledgerID, txID uuid.UUID) (ledger.Transaction, error) {
	if orgID == uuid.Nil || ledgerID == uuid.Nil || txID == uuid.Nil {
		return ledger.Transaction{}, errs.Validation("organization, ledger and transaction ids are required")
	}
	tx, err := s.repo.GetTransaction(ctx, orgID, ledgerID, txID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if tx.Status == ledger.StatusPosted {
		return tx, nil
	}
	if tx.Status == ledger.StatusArchived {
		return ledger.Transaction{}, errs.TerminalConflict("transaction", tx.ID, "cannot post an archived transaction")
	}

	posted := tx.Post()
	accounts, err := s.repo.AccountsByIDs(ctx, orgID, posted.AccountIDs())
	if err != nil {
		return ledger.Transaction{}, err
	}
	projected, err := ledger.FoldPostings(accounts, posted.Entries)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if err := s.writer.PostTransaction(ctx, posted, orderedAccounts(projected)); err != nil {
		return ledger.Transaction{}, err
	}
	return posted, nil
}

func (s *service) GetTransaction(ctx context.Context, orgID, ledgerID, txID uuid.UUID) (ledger.Transaction, error) {
	if orgID == uuid.Nil || ledgerID == uuid.Nil || txID == uuid.Nil {
		return ledger.Transaction{}, errs.Validation("organization, ledger and transaction ids are required")
	}
	return s.repo.GetTransaction(ctx, orgID, ledgerID, txID)
}

// ListTransactions returns transactions for a ledger ordered newest first.
func (s *service) ListTransactions(ctx context.Context, orgID, ledgerID uuid.UUID, offset, limit int) ([]ledger.Transaction, error) {
	if orgID == uuid.Nil || ledgerID == uuid.Nil {
		return nil, errs.Validation("organization and ledger ids are required")
	}
	if offset < 0 || limit < 0 {
		return nil, errs.Validation("offset and limit must be non-negative")
	}
	if limit == 0 {
		limit = 50
	}
	return s.repo.ListTransactions(ctx, orgID, ledgerID, offset, limit)
}

// orderedAccounts returns the projected accounts sorted by id so every
// writer touches contended rows in the same order.
func orderedAccounts(m map[uuid.UUID]ledger.Account) []ledger.Account {
	out := make([]ledger.Account, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/mintarch/ledger/internal/errs"
	"github.com/mintarch/ledger/internal/meta"
)

// EntrySpec describes one leg of a transaction before identities are
// assigned. Currency may be left empty to inherit the ledger's; if set it
// must match.
type EntrySpec struct {
	AccountID uuid.UUID
	Direction Direction
	Amount    int64
	Currency  string
}

// TxOption customizes NewTransaction.
type TxOption func(*Transaction)

// WithStatus sets the initial status. Only pending (the default) and posted
// are accepted; anything else fails construction.
func WithStatus(s TransactionStatus) TxOption {
	return func(t *Transaction) { t.Status = s }
}

// WithIdempotencyKey attaches a caller-supplied idempotency key.
func WithIdempotencyKey(key string) TxOption {
	return func(t *Transaction) { t.IdempotencyKey = key }
}

// WithEffectiveAt overrides the effective timestamp (defaults to now).
func WithEffectiveAt(at time.Time) TxOption {
	return func(t *Transaction) { t.EffectiveAt = at }
}

// WithMetadata attaches metadata to the transaction.
func WithMetadata(m meta.Metadata) TxOption {
	return func(t *Transaction) { t.Metadata = m }
}

// NewTransaction validates entry specs against the ledger and the
// double-entry invariant, assigns identities, and returns an immutable
// pending transaction. Sum mismatches fail with ErrInvariant; malformed
// specs (amount ≤ 0, fewer than two entries, currency mismatch) fail with
// ErrValidation. No value with an unbalanced entry set is ever returned.
func NewTransaction(orgID uuid.UUID, l Ledger, specs []EntrySpec, opts ...TxOption) (Transaction, error) {
	if orgID == uuid.Nil {
		return Transaction{}, errs.Validation("organization id is required")
	}
	if l.ID == uuid.Nil {
		return Transaction{}, errs.Validation("ledger id is required")
	}
	if l.OrganizationID != orgID {
		return Transaction{}, errs.NotFound("ledger", l.ID)
	}
	if len(specs) < 2 {
		return Transaction{}, errs.Validation("transaction requires at least 2 entries, got %d", len(specs))
	}
	if _, err := money.ParseCurr(l.Currency); err != nil {
		return Transaction{}, errs.Validation("ledger currency %q is not a known ISO code", l.Currency)
	}

	now := time.Now().UTC()
	tx := Transaction{
		ID:             uuid.New(),
		LedgerID:       l.ID,
		OrganizationID: orgID,
		Status:         StatusPending,
		EffectiveAt:    now,
		CreatedAt:      now,
		Metadata:       meta.Metadata{},
	}
	for _, opt := range opts {
		opt(&tx)
	}
	if tx.Status != StatusPending && tx.Status != StatusPosted {
		return Transaction{}, errs.Validation("initial status must be pending or posted, got %q", tx.Status)
	}
	if err := tx.Metadata.Validate(); err != nil {
		return Transaction{}, errs.Validation("%v", err)
	}

	var sumDebits, sumCredits int64
	entries := make([]Entry, 0, len(specs))
	for i, spec := range specs {
		if spec.AccountID == uuid.Nil {
			return Transaction{}, errs.Validation("entry[%d]: account id is required", i)
		}
		if spec.Amount <= 0 {
			return Transaction{}, errs.Validation("entry[%d]: amount must be positive, got %d", i, spec.Amount)
		}
		if !spec.Direction.Valid() {
			return Transaction{}, errs.Validation("entry[%d]: direction must be debit or credit", i)
		}
		if spec.Currency != "" && spec.Currency != l.Currency {
			return Transaction{}, errs.Validation("entry[%d]: currency %s does not match ledger currency %s", i, spec.Currency, l.Currency)
		}
		switch spec.Direction {
		case DirectionDebit:
			sumDebits += spec.Amount
		case DirectionCredit:
			sumCredits += spec.Amount
		}
		entries = append(entries, Entry{
			ID:               uuid.New(),
			TransactionID:    tx.ID,
			AccountID:        spec.AccountID,
			OrganizationID:   orgID,
			Direction:        spec.Direction,
			Amount:           spec.Amount,
			Currency:         l.Currency,
			CurrencyExponent: l.CurrencyExponent,
			Status:           tx.Status,
		})
	}
	if sumDebits != sumCredits {
		return Transaction{}, errs.Invariant("unbalanced entry set: debits=%d credits=%d", sumDebits, sumCredits)
	}
	tx.Entries = entries
	return tx, nil
}

// Post returns a posted copy with entry statuses synchronized. Posting an
// already-posted transaction returns the receiver unchanged.
func (t Transaction) Post() Transaction {
	if t.Status == StatusPosted {
		return t
	}
	out := t
	out.Status = StatusPosted
	out.Entries = make([]Entry, len(t.Entries))
	for i, e := range t.Entries {
		e.Status = StatusPosted
		out.Entries[i] = e
	}
	return out
}

// AccountIDs returns the distinct account ids referenced by the entries, in
// first-reference order.
func (t Transaction) AccountIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(t.Entries))
	out := make([]uuid.UUID, 0, len(t.Entries))
	for _, e := range t.Entries {
		if _, ok := seen[e.AccountID]; ok {
			continue
		}
		seen[e.AccountID] = struct{}{}
		out = append(out, e.AccountID)
	}
	return out
}

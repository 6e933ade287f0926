// Package ledger holds the domain entities of the double-entry core and the
// pure rules that govern them: the balance fold, the transaction smart
// constructor and the settlement state machine. Nothing in this package
// performs I/O.
package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/mintarch/ledger/internal/meta"
)

// Direction is the side of an entry, and doubles as an account's normal
// balance (the side on which the account grows by convention).
type Direction string

const (
	// DirectionDebit records value on the debit side.
	DirectionDebit Direction = "debit"
	// DirectionCredit records value on the credit side.
	DirectionCredit Direction = "credit"
)

// Valid reports whether d is one of the two known sides.
func (d Direction) Valid() bool { return d == DirectionDebit || d == DirectionCredit }

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == DirectionDebit {
		return DirectionCredit
	}
	return DirectionDebit
}

// TransactionStatus is the lifecycle state of a transaction and, mirrored,
// of each of its entries.
type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusPosted   TransactionStatus = "posted"
	StatusArchived TransactionStatus = "archived"
)

// SettlementStatus is the lifecycle state of a settlement batch.
type SettlementStatus string

const (
	SettlementDrafting   SettlementStatus = "drafting"
	SettlementProcessing SettlementStatus = "processing"
	SettlementPending    SettlementStatus = "pending"
	SettlementPosted     SettlementStatus = "posted"
	SettlementArchiving  SettlementStatus = "archiving"
	SettlementArchived   SettlementStatus = "archived"
)

// Ledger scopes accounts and transactions to one currency within an
// organization. CurrencyExponent is the minor-unit scale (2 for USD cents).
type Ledger struct {
	ID               uuid.UUID
	OrganizationID   uuid.UUID
	Name             string
	Currency         string
	CurrencyExponent int32
	Metadata         meta.Metadata
}

// Balance is one tier of an account's counters. Credits and Debits are
// monotonic accumulators of raw flow in minor units; Amount is the signed
// net derived from them relative to the account's normal balance.
type Balance struct {
	Amount  int64
	Credits int64
	Debits  int64
}

// Account is a ledger account with three balance tiers (pending, posted,
// available) and an optimistic-lock version. OrganizationID, LedgerID and
// NormalBalance are fixed at creation.
type Account struct {
	ID             uuid.UUID
	LedgerID       uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	NormalBalance  Direction
	Pending        Balance
	Posted         Balance
	Available      Balance
	LockVersion    int64
	Metadata       meta.Metadata
	CreatedAt      time.Time
}

// Entry is one leg of a transaction: a strictly positive minor-unit amount
// on one side of one account. Immutable once created except for the status
// transition driven by its transaction.
type Entry struct {
	ID               uuid.UUID
	TransactionID    uuid.UUID
	AccountID        uuid.UUID
	OrganizationID   uuid.UUID
	Direction        Direction
	Amount           int64
	Currency         string
	CurrencyExponent int32
	Status           TransactionStatus
}

// Transaction is an immutable, validated bundle of balanced entries. Use
// NewTransaction; a value whose debit and credit sums differ must never
// exist.
type Transaction struct {
	ID             uuid.UUID
	LedgerID       uuid.UUID
	OrganizationID uuid.UUID
	IdempotencyKey string
	Status         TransactionStatus
	EffectiveAt    time.Time
	CreatedAt      time.Time
	Metadata       meta.Metadata
	Entries        []Entry
}

// Settlement batches already-posted entries of one account against a contra
// account. Entry links are mutable only while Status is drafting; the
// aggregate amount is always derived from the links, never stored.
type Settlement struct {
	ID               uuid.UUID
	OrganizationID   uuid.UUID
	SettledAccountID uuid.UUID
	ContraAccountID  uuid.UUID
	Status           SettlementStatus
	Currency         string
	CurrencyExponent int32
	Description      string
	Metadata         meta.Metadata
	CreatedAt        time.Time
}

// Mutable reports whether structural changes (entry links, update, delete)
// are currently allowed.
func (s Settlement) Mutable() bool { return s.Status == SettlementDrafting }

// CanTransition reports whether the settlement state machine allows moving
// from s to next. The forward path is drafting → processing → pending →
// posted; archiving → archived is reachable from any non-terminal state.
func (s SettlementStatus) CanTransition(next SettlementStatus) bool {
	switch s {
	case SettlementDrafting:
		return next == SettlementProcessing || next == SettlementArchiving
	case SettlementProcessing:
		return next == SettlementPending || next == SettlementArchiving
	case SettlementPending:
		return next == SettlementPosted || next == SettlementArchiving
	case SettlementPosted:
		return next == SettlementArchiving
	case SettlementArchiving:
		return next == SettlementArchived
	default:
		return false
	}
}

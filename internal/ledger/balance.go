package ledger

import (
	"github.com/google/uuid"

	"github.com/mintarch/ledger/internal/errs"
)

// ApplyEntry folds one freshly created entry into a copy of the account and
// returns the new value. It is pure: no I/O, and LockVersion is left
// untouched — the store increments it at write time.
//
// Tier selection follows the entry's status. A pending entry lands on the
// pending tier; an entry posted at creation lands on the posted tier and on
// available in full, since it never passes through a pending stage. The
// available tier reflects spendable funds: a pending entry that decreases the
// account (direction opposite the normal balance) reduces availability
// immediately, while a pending increase only raises availability once posted
// (see ApplyPosting).
func ApplyEntry(a Account, e Entry) (Account, error) {
	if err := checkEntry(a, e); err != nil {
		return a, err
	}

	switch e.Status {
	case StatusPending:
		a.Pending = a.Pending.apply(e.Direction, e.Amount, a.NormalBalance)
		if e.Direction != a.NormalBalance {
			a.Available = a.Available.apply(e.Direction, e.Amount, a.NormalBalance)
		}
	case StatusPosted:
		a.Posted = a.Posted.apply(e.Direction, e.Amount, a.NormalBalance)
		a.Available = a.Available.apply(e.Direction, e.Amount, a.NormalBalance)
	default:
		return a, errs.Validation("entry status %q cannot affect balances", e.Status)
	}
	return a, nil
}

// ApplyPosting folds the pending-to-posted transition of one entry into a
// copy of the account. The posted tier accumulates the full flow; available
// gains only entries that increase the account, because a decreasing entry
// already reduced availability when it was applied pending.
func ApplyPosting(a Account, e Entry) (Account, error) {
	if err := checkEntry(a, e); err != nil {
		return a, err
	}
	if e.Status != StatusPosted {
		return a, errs.Validation("posting fold requires a posted entry, got %q", e.Status)
	}

	a.Posted = a.Posted.apply(e.Direction, e.Amount, a.NormalBalance)
	if e.Direction == a.NormalBalance {
		a.Available = a.Available.apply(e.Direction, e.Amount, a.NormalBalance)
	}
	return a, nil
}

func checkEntry(a Account, e Entry) error {
	if e.AccountID != a.ID {
		return errs.Validation("entry %s targets account %s, not %s", e.ID, e.AccountID, a.ID)
	}
	if e.Amount <= 0 {
		return errs.Validation("entry amount must be positive, got %d", e.Amount)
	}
	if !e.Direction.Valid() {
		return errs.Validation("entry direction must be debit or credit")
	}
	return nil
}

// apply accumulates amount on the given side and re-derives the signed net.
// Credits and debits track raw flow regardless of the normal balance.
func (b Balance) apply(d Direction, amount int64, normal Direction) Balance {
	switch d {
	case DirectionDebit:
		b.Debits += amount
	case DirectionCredit:
		b.Credits += amount
	}
	if normal == DirectionDebit {
		b.Amount = b.Debits - b.Credits
	} else {
		b.Amount = b.Credits - b.Debits
	}
	return b
}

// FoldEntries applies each freshly created entry to its account and returns
// one projected next-state per touched account, keyed by account id. Each
// projected value still carries the LockVersion it was read with. A missing
// account aborts the fold with ErrNotFound.
func FoldEntries(accounts map[uuid.UUID]Account, entries []Entry) (map[uuid.UUID]Account, error) {
	return fold(accounts, entries, ApplyEntry)
}

// FoldPostings projects the pending-to-posted transition of each entry, one
// next-state per touched account.
func FoldPostings(accounts map[uuid.UUID]Account, entries []Entry) (map[uuid.UUID]Account, error) {
	return fold(accounts, entries, ApplyPosting)
}

func fold(accounts map[uuid.UUID]Account, entries []Entry, apply func(Account, Entry) (Account, error)) (map[uuid.UUID]Account, error) {
	out := make(map[uuid.UUID]Account, len(accounts))
	for _, e := range entries {
		acc, ok := out[e.AccountID]
		if !ok {
			acc, ok = accounts[e.AccountID]
			if !ok {
				return nil, errs.NotFound("account", e.AccountID)
			}
		}
		next, err := apply(acc, e)
		if err != nil {
			return nil, err
		}
		out[e.AccountID] = next
	}
	return out, nil
}

// Package settlement implements the settlement aggregator: batching
// already-posted entries of one account into a settlement with a
// drafting-only mutation window and a derived aggregate amount.
package settlement

import (
	"context"

	"github.com/google/uuid"

	"github.com/mintarch/ledger/internal/errs"
	"github.com/mintarch/ledger/internal/ledger"
	"github.com/mintarch/ledger/internal/meta"
)

// Repo defines read operations needed by the service.
type Repo interface {
	GetAccount(ctx context.Context, orgID, accountID uuid.UUID) (ledger.Account, error)
	GetLedger(ctx context.Context, orgID, ledgerID uuid.UUID) (ledger.Ledger, error)
	GetSettlement(ctx context.Context, orgID, settlementID uuid.UUID) (ledger.Settlement, error)
	EntriesByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Entry, error)
	SettlementEntryIDs(ctx context.Context, settlementID uuid.UUID) ([]uuid.UUID, error)
	// SettlementLinks maps each entry id to the settlement currently holding
	// it; unlinked entries are absent from the result.
	SettlementLinks(ctx context.Context, entryIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
}

// Writer defines write operations needed by the service. UpdateSettlement is
// conditioned on the status the caller read (prev); a raced update touches
// zero rows and surfaces a retryable conflict. DeleteSettlement refuses
// anything that is no longer drafting.
type Writer interface {
	CreateSettlement(ctx context.Context, s ledger.Settlement) (ledger.Settlement, error)
	UpdateSettlement(ctx context.Context, s ledger.Settlement, prev ledger.SettlementStatus) (ledger.Settlement, error)
	DeleteSettlement(ctx context.Context, orgID, settlementID uuid.UUID) error
	LinkEntries(ctx context.Context, settlementID uuid.UUID, entryIDs []uuid.UUID) error
	UnlinkEntries(ctx context.Context, settlementID uuid.UUID, entryIDs []uuid.UUID) error
}

// Service exposes the settlement lifecycle and entry-link operations.
type Service interface {
	Create(ctx context.Context, orgID, settledID, contraID uuid.UUID, description string, md meta.Metadata) (ledger.Settlement, error)
	Get(ctx context.Context, orgID, settlementID uuid.UUID) (ledger.Settlement, error)
	Update(ctx context.Context, orgID, settlementID uuid.UUID, description string, md meta.Metadata) (ledger.Settlement, error)
	Delete(ctx context.Context, orgID, settlementID uuid.UUID) error
	UpdateStatus(ctx context.Context, orgID, settlementID uuid.UUID, next ledger.SettlementStatus) (ledger.Settlement, error)
	AddEntries(ctx context.Context, orgID, settlementID uuid.UUID, entryIDs []uuid.UUID) error
	RemoveEntries(ctx context.Context, orgID, settlementID uuid.UUID, entryIDs []uuid.UUID) error
	EntryIDs(ctx context.Context, orgID, settlementID uuid.UUID) ([]uuid.UUID, error)
	CalculateAmount(ctx context.Context, orgID, settlementID uuid.UUID) (int64, error)
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

// Create validates both accounts, inherits currency from the settled
// account's ledger, and persists a drafting settlement.
func (s *service) Create(ctx context.Context, orgID, settledID, contraID uuid.UUID, description string, md meta.Metadata) (ledger.Settlement, error) {
	settled, err := s.repo.GetAccount(ctx, orgID, settledID)
	if err != nil {
		return ledger.Settlement{}, err
	}
	contra, err := s.repo.GetAccount(ctx, orgID, contraID)
	if err != nil {
		return ledger.Settlement{}, err
	}
	if contra.LedgerID != settled.LedgerID {
		return ledger.Settlement{}, errs.Validation("settled and contra accounts must belong to the same ledger")
	}
	l, err := s.repo.GetLedger(ctx, orgID, settled.LedgerID)
	if err != nil {
		return ledger.Settlement{}, err
	}
	st, err := ledger.NewSettlement(orgID, settledID, contraID, l, description, md)
	if err != nil {
		return ledger.Settlement{}, err
	}
	return s.writer.CreateSettlement(ctx, st)
}

func (s *service) Get(ctx context.Context, orgID, settlementID uuid.UUID) (ledger.Settlement, error) {
	if orgID == uuid.Nil || settlementID == uuid.Nil {
		return ledger.Settlement{}, errs.Validation("organization and settlement ids are required")
	}
	return s.repo.GetSettlement(ctx, orgID, settlementID)
}

// Update changes description/metadata. Permitted only while drafting.
func (s *service) Update(ctx context.Context, orgID, settlementID uuid.UUID, description string, md meta.Metadata) (ledger.Settlement, error) {
	st, err := s.mutable(ctx, orgID, settlementID)
	if err != nil {
		return ledger.Settlement{}, err
	}
	if md != nil {
		if err := md.Validate(); err != nil {
			return ledger.Settlement{}, errs.Validation("%v", err)
		}
		st.Metadata = md
	}
	st.Description = description
	return s.writer.UpdateSettlement(ctx, st, ledger.SettlementDrafting)
}

// Delete removes a drafting settlement and its entry links.
func (s *service) Delete(ctx context.Context, orgID, settlementID uuid.UUID) error {
	if _, err := s.mutable(ctx, orgID, settlementID); err != nil {
		return err
	}
	return s.writer.DeleteSettlement(ctx, orgID, settlementID)
}

// UpdateStatus advances the state machine: drafting → processing → pending →
// posted, with archiving → archived reachable from any non-terminal state.
func (s *service) UpdateStatus(ctx context.Context, orgID, settlementID uuid.UUID, next ledger.SettlementStatus) (ledger.Settlement, error) {
	st, err := s.repo.GetSettlement(ctx, orgID, settlementID)
	if err != nil {
		return ledger.Settlement{}, err
	}
	if !st.Status.CanTransition(next) {
		return ledger.Settlement{}, errs.TerminalConflict("settlement", st.ID,
			"cannot transition from "+string(st.Status)+" to "+string(next))
	}
	prev := st.Status
	st.Status = next
	return s.writer.UpdateSettlement(ctx, st, prev)
}

// AddEntries links posted entries of the settled account to the settlement.
// Any failing entry aborts the whole batch; re-adding an entry already on
// this settlement is a no-op.
func (s *service) AddEntries(ctx context.Context, orgID, settlementID uuid.UUID, entryIDs []uuid.UUID) error {
	if len(entryIDs) == 0 {
		return nil
	}
	st, err := s.mutable(ctx, orgID, settlementID)
	if err != nil {
		return err
	}
	entries, err := s.repo.EntriesByIDs(ctx, orgID, entryIDs)
	if err != nil {
		return err
	}
	links, err := s.repo.SettlementLinks(ctx, entryIDs)
	if err != nil {
		return err
	}
	toLink := make([]uuid.UUID, 0, len(entryIDs))
	for _, id := range entryIDs {
		e, ok := entries[id]
		if !ok {
			return errs.NotFound("entry", id)
		}
		if e.AccountID != st.SettledAccountID {
			return errs.TerminalConflict("entry", id, "entry does not belong to the settled account")
		}
		if e.Status != ledger.StatusPosted {
			return errs.TerminalConflict("entry", id, "only posted entries can be settled")
		}
		if owner, linked := links[id]; linked {
			if owner == settlementID {
				continue
			}
			return errs.TerminalConflict("entry", id, "entry is already attached to settlement "+owner.String())
		}
		toLink = append(toLink, id)
	}
	if len(toLink) == 0 {
		return nil
	}
	return s.writer.LinkEntries(ctx, settlementID, toLink)
}

// RemoveEntries detaches currently linked entries; ids not linked to this
// settlement are ignored.
func (s *service) RemoveEntries(ctx context.Context, orgID, settlementID uuid.UUID, entryIDs []uuid.UUID) error {
	if len(entryIDs) == 0 {
		return nil
	}
	if _, err := s.mutable(ctx, orgID, settlementID); err != nil {
		return err
	}
	return s.writer.UnlinkEntries(ctx, settlementID, entryIDs)
}

func (s *service) EntryIDs(ctx context.Context, orgID, settlementID uuid.UUID) ([]uuid.UUID, error) {
	if _, err := s.repo.GetSettlement(ctx, orgID, settlementID); err != nil {
		return nil, err
	}
	return s.repo.SettlementEntryIDs(ctx, settlementID)
}

// CalculateAmount sums the minor-unit amounts of all currently attached
// entries. It is always a derived read, never a stored running total.
func (s *service) CalculateAmount(ctx context.Context, orgID, settlementID uuid.UUID) (int64, error) {
	st, err := s.repo.GetSettlement(ctx, orgID, settlementID)
	if err != nil {
		return 0, err
	}
	ids, err := s.repo.SettlementEntryIDs(ctx, st.ID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	entries, err := s.repo.EntriesByIDs(ctx, orgID, ids)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, id := range ids {
		e, ok := entries[id]
		if !ok {
			return 0, errs.NotFound("entry", id)
		}
		total += e.Amount
	}
	return total, nil
}

// mutable loads the settlement and enforces the drafting-only mutation rule.
func (s *service) mutable(ctx context.Context, orgID, settlementID uuid.UUID) (ledger.Settlement, error) {
	if orgID == uuid.Nil || settlementID == uuid.Nil {
		return ledger.Settlement{}, errs.Validation("organization and settlement ids are required")
	}
	st, err := s.repo.GetSettlement(ctx, orgID, settlementID)
	if err != nil {
		return ledger.Settlement{}, err
	}
	if !st.Mutable() {
		return ledger.Settlement{}, errs.TerminalConflict("settlement", st.ID,
			"settlement is "+string(st.Status)+"; mutations require drafting")
	}
	return st, nil
}

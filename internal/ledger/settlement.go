package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/mintarch/ledger/internal/errs"
	"github.com/mintarch/ledger/internal/meta"
)

// NewSettlement builds a drafting settlement between two distinct accounts,
// inheriting currency and exponent from the settled account's ledger.
// Self-settlement fails with a terminal conflict.
func NewSettlement(orgID, settledID, contraID uuid.UUID, l Ledger, description string, md meta.Metadata) (Settlement, error) {
	if orgID == uuid.Nil {
		return Settlement{}, errs.Validation("organization id is required")
	}
	if settledID == uuid.Nil || contraID == uuid.Nil {
		return Settlement{}, errs.Validation("settled and contra account ids are required")
	}
	if settledID == contraID {
		return Settlement{}, errs.TerminalConflict("settlement", settledID, "cannot settle an account against itself")
	}
	if md == nil {
		md = meta.Metadata{}
	}
	if err := md.Validate(); err != nil {
		return Settlement{}, errs.Validation("%v", err)
	}
	return Settlement{
		ID:               uuid.New(),
		OrganizationID:   orgID,
		SettledAccountID: settledID,
		ContraAccountID:  contraID,
		Status:           SettlementDrafting,
		Currency:         l.Currency,
		CurrencyExponent: l.CurrencyExponent,
		Description:      description,
		Metadata:         md,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

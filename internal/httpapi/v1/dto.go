package v1

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/mintarch/ledger/internal/ledger"
)

// validate holds the request validator; tags live on the request structs.
var validate = validator.New()

type createTransactionRequest struct {
	OrganizationID uuid.UUID                `json:"organization_id" validate:"required"`
	LedgerID       uuid.UUID                `json:"ledger_id" validate:"required"`
	Status         string                   `json:"status" validate:"omitempty,oneof=pending posted"`
	EffectiveAt    *time.Time               `json:"effective_at,omitempty"`
	Metadata       map[string]string        `json:"metadata,omitempty"`
	Entries        []createTransactionEntry `json:"entries" validate:"required,min=2,dive"`
}

type createTransactionEntry struct {
	AccountID   uuid.UUID `json:"account_id" validate:"required"`
	Direction   string    `json:"direction" validate:"required,oneof=debit credit"`
	AmountMinor int64     `json:"amount_minor" validate:"required,gt=0"`
	Currency    string    `json:"currency" validate:"omitempty,len=3"`
}

type postTransactionRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	LedgerID       uuid.UUID `json:"ledger_id" validate:"required"`
}

type transactionResponse struct {
	ID             uuid.UUID         `json:"id"`
	LedgerID       uuid.UUID         `json:"ledger_id"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Status         string            `json:"status"`
	EffectiveAt    time.Time         `json:"effective_at"`
	CreatedAt      time.Time         `json:"created_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Entries        []entryResponse   `json:"entries"`
}

type entryResponse struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Direction   string    `json:"direction"`
	AmountMinor int64     `json:"amount_minor"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
}

type listTransactionsResponse struct {
	Items []transactionResponse `json:"items"`
}

type createSettlementRequest struct {
	OrganizationID   uuid.UUID         `json:"organization_id" validate:"required"`
	SettledAccountID uuid.UUID         `json:"settled_account_id" validate:"required"`
	ContraAccountID  uuid.UUID         `json:"contra_account_id" validate:"required"`
	Description      string            `json:"description"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type updateSettlementRequest struct {
	OrganizationID uuid.UUID         `json:"organization_id" validate:"required"`
	Description    string            `json:"description"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type settlementStatusRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	Status         string    `json:"status" validate:"required,oneof=processing pending posted archiving archived"`
}

type settlementEntriesRequest struct {
	OrganizationID uuid.UUID   `json:"organization_id" validate:"required"`
	EntryIDs       []uuid.UUID `json:"entry_ids" validate:"required,min=1"`
}

type settlementResponse struct {
	ID               uuid.UUID         `json:"id"`
	OrganizationID   uuid.UUID         `json:"organization_id"`
	SettledAccountID uuid.UUID         `json:"settled_account_id"`
	ContraAccountID  uuid.UUID         `json:"contra_account_id"`
	Status           string            `json:"status"`
	Currency         string            `json:"currency"`
	Description      string            `json:"description,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

type settlementEntriesResponse struct {
	EntryIDs []uuid.UUID `json:"entry_ids"`
}

type settlementAmountResponse struct {
	AmountMinor int64  `json:"amount_minor"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
	entries := make([]entryResponse, 0, len(t.Entries))
	for _, e := range t.Entries {
		entries = append(entries, entryResponse{
			ID:          e.ID,
			AccountID:   e.AccountID,
			Direction:   string(e.Direction),
			AmountMinor: e.Amount,
			Amount:      formatMinor(e.Currency, e.Amount),
			Currency:    e.Currency,
			Status:      string(e.Status),
		})
	}
	return transactionResponse{
		ID:             t.ID,
		LedgerID:       t.LedgerID,
		OrganizationID: t.OrganizationID,
		IdempotencyKey: t.IdempotencyKey,
		Status:         string(t.Status),
		EffectiveAt:    t.EffectiveAt,
		CreatedAt:      t.CreatedAt,
		Metadata:       t.Metadata,
		Entries:        entries,
	}
}

func toSettlementResponse(st ledger.Settlement) settlementResponse {
	return settlementResponse{
		ID:               st.ID,
		OrganizationID:   st.OrganizationID,
		SettledAccountID: st.SettledAccountID,
		ContraAccountID:  st.ContraAccountID,
		Status:           string(st.Status),
		Currency:         st.Currency,
		Description:      st.Description,
		Metadata:         st.Metadata,
		CreatedAt:        st.CreatedAt,
	}
}

// formatMinor renders minor units as a display amount ("150.00") using the
// currency's exponent; unknown currencies fall back to the raw units.
func formatMinor(currency string, minor int64) string {
	amt, err := money.NewAmountFromMinorUnits(currency, minor)
	if err != nil {
		return ""
	}
	return amt.String()
}

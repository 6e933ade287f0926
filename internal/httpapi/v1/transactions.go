package v1

import (
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mintarch/ledger/internal/ledger"
	"github.com/mintarch/ledger/internal/meta"
)

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !decodeStrict(w, r, &req) {
		return
	}
	l, err := s.ledgrs.GetLedger(r.Context(), req.OrganizationID, req.LedgerID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	specs := make([]ledger.EntrySpec, 0, len(req.Entries))
	for _, e := range req.Entries {
		specs = append(specs, ledger.EntrySpec{
			AccountID: e.AccountID,
			Direction: ledger.Direction(e.Direction),
			Amount:    e.AmountMinor,
			Currency:  e.Currency,
		})
	}
	opts := []ledger.TxOption{ledger.WithMetadata(meta.New(req.Metadata))}
	if req.Status == string(ledger.StatusPosted) {
		opts = append(opts, ledger.WithStatus(ledger.StatusPosted))
	}
	if req.EffectiveAt != nil {
		opts = append(opts, ledger.WithEffectiveAt(req.EffectiveAt.UTC()))
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		opts = append(opts, ledger.WithIdempotencyKey(key))
	}

	tx, err := ledger.NewTransaction(req.OrganizationID, l, specs, opts...)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	saved, err := s.txSvc.CreateTransaction(r.Context(), tx)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toTransactionResponse(saved))
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	orgID, ledgerID, ok := tenancyParams(w, r)
	if !ok {
		return
	}
	txID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid transaction id", Code: "bad_request"})
		return
	}
	tx, err := s.txSvc.GetTransaction(r.Context(), orgID, ledgerID, txID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	orgID, ledgerID, ok := tenancyParams(w, r)
	if !ok {
		return
	}
	offset, limit := 0, 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid offset", Code: "bad_request"})
			return
		}
		offset = v
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit", Code: "bad_request"})
			return
		}
		limit = v
	}
	txs, err := s.txSvc.ListTransactions(r.Context(), orgID, ledgerID, offset, limit)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	items := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		items = append(items, toTransactionResponse(tx))
	}
	toJSON(w, http.StatusOK, listTransactionsResponse{Items: items})
}

func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
	var req postTransactionRequest
	if !decodeStrict(w, r, &req) {
		return
	}
	txID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid transaction id", Code: "bad_request"})
		return
	}
	tx, err := s.txSvc.PostTransaction(r.Context(), req.OrganizationID, req.LedgerID, txID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// tenancyParams parses the organization_id and ledger_id query params.
func tenancyParams(w http.ResponseWriter, r *http.Request) (orgID, ledgerID uuid.UUID, ok bool) {
	q := r.URL.Query()
	orgID, err := uuid.Parse(q.Get("organization_id"))
	if err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "organization_id is required", Code: "bad_request"})
		return uuid.Nil, uuid.Nil, false
	}
	ledgerID, err = uuid.Parse(q.Get("ledger_id"))
	if err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "ledger_id is required", Code: "bad_request"})
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, ledgerID, true
}

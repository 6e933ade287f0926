package v1

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mintarch/ledger/internal/ledger"
	"github.com/mintarch/ledger/internal/meta"
)

func (s *Server) createSettlement(w http.ResponseWriter, r *http.Request) {
	var req createSettlementRequest
	if !decodeStrict(w, r, &req) {
		return
	}
	st, err := s.setSvc.Create(r.Context(), req.OrganizationID, req.SettledAccountID, req.ContraAccountID, req.Description, meta.New(req.Metadata))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toSettlementResponse(st))
}

func (s *Server) getSettlement(w http.ResponseWriter, r *http.Request) {
	orgID, setID, ok := settlementParams(w, r)
	if !ok {
		return
	}
	st, err := s.setSvc.Get(r.Context(), orgID, setID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toSettlementResponse(st))
}

func (s *Server) updateSettlement(w http.ResponseWriter, r *http.Request) {
	setID, ok := settlementID(w, r)
	if !ok {
		return
	}
	var req updateSettlementRequest
	if !decodeStrict(w, r, &req) {
		return
	}
	var md meta.Metadata
	if req.Metadata != nil {
		md = meta.New(req.Metadata)
	}
	st, err := s.setSvc.Update(r.Context(), req.OrganizationID, setID, req.Description, md)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toSettlementResponse(st))
}

func (s *Server) deleteSettlement(w http.ResponseWriter, r *http.Request) {
	orgID, setID, ok := settlementParams(w, r)
	if !ok {
		return
	}
	if err := s.setSvc.Delete(r.Context(), orgID, setID); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateSettlementStatus(w http.ResponseWriter, r *http.Request) {
	setID, ok := settlementID(w, r)
	if !ok {
		return
	}
	var req settlementStatusRequest
	if !decodeStrict(w, r, &req) {
		return
	}
	st, err := s.setSvc.UpdateStatus(r.Context(), req.OrganizationID, setID, ledger.SettlementStatus(req.Status))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toSettlementResponse(st))
}

func (s *Server) addSettlementEntries(w http.ResponseWriter, r *http.Request) {
	setID, ok := settlementID(w, r)
	if !ok {
		return
	}
	var req settlementEntriesRequest
	if !decodeStrict(w, r, &req) {
		return
	}
	if err := s.setSvc.AddEntries(r.Context(), req.OrganizationID, setID, req.EntryIDs); err != nil {
		writeDomainErr(w, err)
		return
	}
	s.writeSettlementEntries(w, r, req.OrganizationID, setID)
}

func (s *Server) removeSettlementEntries(w http.ResponseWriter, r *http.Request) {
	setID, ok := settlementID(w, r)
	if !ok {
		return
	}
	var req settlementEntriesRequest
	if !decodeStrict(w, r, &req) {
		return
	}
	if err := s.setSvc.RemoveEntries(r.Context(), req.OrganizationID, setID, req.EntryIDs); err != nil {
		writeDomainErr(w, err)
		return
	}
	s.writeSettlementEntries(w, r, req.OrganizationID, setID)
}

func (s *Server) getSettlementEntries(w http.ResponseWriter, r *http.Request) {
	orgID, setID, ok := settlementParams(w, r)
	if !ok {
		return
	}
	s.writeSettlementEntries(w, r, orgID, setID)
}

func (s *Server) getSettlementAmount(w http.ResponseWriter, r *http.Request) {
	orgID, setID, ok := settlementParams(w, r)
	if !ok {
		return
	}
	st, err := s.setSvc.Get(r.Context(), orgID, setID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	total, err := s.setSvc.CalculateAmount(r.Context(), orgID, setID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, settlementAmountResponse{
		AmountMinor: total,
		Amount:      formatMinor(st.Currency, total),
		Currency:    st.Currency,
	})
}

func (s *Server) writeSettlementEntries(w http.ResponseWriter, r *http.Request, orgID, setID uuid.UUID) {
	ids, err := s.setSvc.EntryIDs(r.Context(), orgID, setID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	toJSON(w, http.StatusOK, settlementEntriesResponse{EntryIDs: ids})
}

func settlementID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid settlement id", Code: "bad_request"})
		return uuid.Nil, false
	}
	return id, true
}

func settlementParams(w http.ResponseWriter, r *http.Request) (orgID, setID uuid.UUID, ok bool) {
	setID, ok = settlementID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	orgID, err := uuid.Parse(r.URL.Query().Get("organization_id"))
	if err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "organization_id is required", Code: "bad_request"})
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, setID, true
}

// Package v1 wires the HTTP surface of the ledger service.
// Handlers stay thin and delegate all business rules to the service layer.
package v1

import (
	"context"
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mintarch/ledger/internal/ledger"
	"github.com/mintarch/ledger/internal/service/settlement"
	"github.com/mintarch/ledger/internal/service/transaction"
)

// LedgerReader abstracts ledger lookups used for tenancy and currency
// validation when building transactions from requests.
type LedgerReader interface {
	GetLedger(ctx context.Context, orgID, ledgerID uuid.UUID) (ledger.Ledger, error)
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Store is the convenience union a backing store satisfies to serve the API.
type Store interface {
	transaction.Repo
	transaction.Writer
	settlement.Repo
	settlement.Writer
	LedgerReader
}

// Server composes the services and the router.
type Server struct {
	txSvc  transaction.Service
	setSvc settlement.Service
	ledgrs LedgerReader
	ready  ReadyChecker
	log    *slog.Logger
	rt     *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
func New(store Store, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		txSvc:  transaction.New(store, store),
		setSvc: settlement.New(store, store),
		ledgrs: store,
		log:    logger,
		rt:     r,
	}
	if rc, ok := any(store).(ReadyChecker); ok {
		s.ready = rc
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints.
func (s *Server) routes() {
	// Transactions
	s.rt.Post("/v1/transactions", s.createTransaction)
	s.rt.Get("/v1/transactions", s.listTransactions)
	s.rt.Get("/v1/transactions/{id}", s.getTransaction)
	s.rt.Post("/v1/transactions/{id}/post", s.postTransaction)
	// Settlements
	s.rt.Post("/v1/settlements", s.createSettlement)
	s.rt.Get("/v1/settlements/{id}", s.getSettlement)
	s.rt.Patch("/v1/settlements/{id}", s.updateSettlement)
	s.rt.Delete("/v1/settlements/{id}", s.deleteSettlement)
	s.rt.Post("/v1/settlements/{id}/status", s.updateSettlementStatus)
	s.rt.Post("/v1/settlements/{id}/entries", s.addSettlementEntries)
	s.rt.Delete("/v1/settlements/{id}/entries", s.removeSettlementEntries)
	s.rt.Get("/v1/settlements/{id}/entries", s.getSettlementEntries)
	s.rt.Get("/v1/settlements/{id}/amount", s.getSettlementAmount)
	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	toJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.Ready(r.Context()); err != nil {
			toJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	toJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

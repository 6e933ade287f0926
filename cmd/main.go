package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	httpapi "github.com/mintarch/ledger/internal/httpapi/v1"
	"github.com/mintarch/ledger/internal/ledger"
	"github.com/mintarch/ledger/internal/meta"
	"github.com/mintarch/ledger/internal/storage/memory"
	pgstore "github.com/mintarch/ledger/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLoggerFromEnv()
	slog.SetDefault(logger)

	var handler http.Handler
	var closeFn func()

	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = func() { pg.Close() }
		if devSeedEnabled() {
			orgID := devOrgID()
			l, accs, err := pg.SeedDev(ctx, orgID)
			if err != nil {
				logger.Error("dev seed failed", "err", err)
			} else {
				logDevSeed(logger, "postgres", orgID, l, accs)
				printDevSeedBanner(orgID, l, accs)
			}
		}
		handler = httpapi.New(pg, logger).Handler()
		logger.Info("storage backend: postgres")
	} else {
		store := memory.New()
		orgID := devOrgID()
		l, accs := seedMemory(store, orgID)
		logDevSeed(logger, "memory", orgID, l, accs)
		printDevSeedBanner(orgID, l, accs)
		handler = httpapi.New(store, logger).Handler()
		logger.Info("storage backend: memory")
	}

	addr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledger service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

func devSeedEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("DEV_SEED")))
	return v == "1" || v == "true" || v == "yes"
}

// devOrgID honors DEV_ORG_ID when set so seeded IDs survive restarts.
func devOrgID() uuid.UUID {
	if raw := strings.TrimSpace(os.Getenv("DEV_ORG_ID")); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return uuid.New()
}

// seedMemory creates a ledger with an operating and a settlement account so
// the API is usable out of the box.
func seedMemory(store *memory.Store, orgID uuid.UUID) (ledger.Ledger, []ledger.Account) {
	l := ledger.Ledger{ID: uuid.New(), OrganizationID: orgID, Name: "Operating", Currency: "USD", CurrencyExponent: 2, Metadata: meta.Metadata{}}
	store.SeedLedger(l)
	operating := ledger.Account{ID: uuid.New(), LedgerID: l.ID, OrganizationID: orgID, Name: "Operating Cash", NormalBalance: ledger.DirectionDebit, CreatedAt: time.Now().UTC()}
	settlementAcc := ledger.Account{ID: uuid.New(), LedgerID: l.ID, OrganizationID: orgID, Name: "Merchant Payable", NormalBalance: ledger.DirectionCredit, CreatedAt: time.Now().UTC()}
	store.SeedAccount(operating)
	store.SeedAccount(settlementAcc)
	return l, []ledger.Account{operating, settlementAcc}
}

// logDevSeed emits structured logs with useful IDs
func logDevSeed(l *slog.Logger, backend string, orgID uuid.UUID, lg ledger.Ledger, accs []ledger.Account) {
	ids := map[string]string{"ledger_id": lg.ID.String()}
	for _, a := range accs {
		key := strings.ReplaceAll(strings.ToLower(a.Name), " ", "_") + "_account_id"
		ids[key] = a.ID.String()
	}
	l.Info("DEV seed ("+backend+")", "organization_id", orgID.String(), "ids", ids)
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(orgID uuid.UUID, lg ledger.Ledger, accs []ledger.Account) {
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("organization_id: %s\n", orgID.String())
	fmt.Printf("ledger_id: %s\n", lg.ID.String())
	for _, a := range accs {
		fmt.Printf("%s_account_id: %s\n", strings.ReplaceAll(strings.ToLower(a.Name), " ", "_"), a.ID.String())
	}
	fmt.Println("==================================================")
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLoggerFromEnv() *slog.Logger {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

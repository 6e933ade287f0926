package postgres

// Package postgres provides a pgx-backed store satisfying the repository and
// writer interfaces of the transaction and settlement services.
//
// Every balance-affecting write runs inside one database transaction and
// conditions each account update on the lock version the projection was read
// with; zero affected rows means a lost race and rolls back the whole unit.
// Migrations creating the expected schema live under db/migrations.

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mintarch/ledger/internal/errs"
	"github.com/mintarch/ledger/internal/ledger"
	"github.com/mintarch/ledger/internal/meta"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// SeedDev inserts one ledger and two zero-balance accounts for quick local
// testing and returns them.
func (s *Store) SeedDev(ctx context.Context, orgID uuid.UUID) (ledger.Ledger, []ledger.Account, error) {
	l := ledger.Ledger{ID: uuid.New(), OrganizationID: orgID, Name: "Dev Ledger", Currency: "USD", CurrencyExponent: 2, Metadata: meta.Metadata{}}
	operating := ledger.Account{ID: uuid.New(), LedgerID: l.ID, OrganizationID: orgID, Name: "Operating", NormalBalance: ledger.DirectionDebit, Metadata: meta.Metadata{}}
	revenue := ledger.Account{ID: uuid.New(), LedgerID: l.ID, OrganizationID: orgID, Name: "Revenue", NormalBalance: ledger.DirectionCredit, Metadata: meta.Metadata{}}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Ledger{}, nil, errs.Internal("seed dev", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `
        insert into ledgers (id, organization_id, name, currency, currency_exponent, metadata)
        values ($1,$2,$3,$4,$5,'{}')
    `, l.ID, l.OrganizationID, l.Name, l.Currency, l.CurrencyExponent); err != nil {
		return ledger.Ledger{}, nil, errs.Internal("seed dev: insert ledger", err)
	}
	for _, a := range []ledger.Account{operating, revenue} {
		if _, err := tx.Exec(ctx, `
            insert into accounts (id, ledger_id, organization_id, name, normal_balance, metadata)
            values ($1,$2,$3,$4,$5,'{}')
        `, a.ID, a.LedgerID, a.OrganizationID, a.Name, a.NormalBalance); err != nil {
			return ledger.Ledger{}, nil, errs.Internal("seed dev: insert account", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Ledger{}, nil, errs.Internal("seed dev: commit", err)
	}
	return l, []ledger.Account{operating, revenue}, nil
}

// --- Ledger and account reads ---

// GetLedger fetches a ledger by id within the organization.
func (s *Store) GetLedger(ctx context.Context, orgID, ledgerID uuid.UUID) (ledger.Ledger, error) {
	var l ledger.Ledger
	var mdBytes []byte
	err := s.pool.QueryRow(ctx, `
        select id, organization_id, name, currency, currency_exponent, metadata
        from ledgers
        where id = $1 and organization_id = $2
    `, ledgerID, orgID).Scan(&l.ID, &l.OrganizationID, &l.Name, &l.Currency, &l.CurrencyExponent, &mdBytes)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Ledger{}, errs.NotFound("ledger", ledgerID)
	}
	if err != nil {
		return ledger.Ledger{}, errs.Internal("get ledger", err)
	}
	l.Metadata = decodeMeta(mdBytes)
	return l, nil
}

const accountColumns = `id, ledger_id, organization_id, name, normal_balance,
        pending_amount, pending_credits, pending_debits,
        posted_amount, posted_credits, posted_debits,
        available_amount, available_credits, available_debits,
        lock_version, metadata, created_at`

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	var mdBytes []byte
	err := row.Scan(&a.ID, &a.LedgerID, &a.OrganizationID, &a.Name, &a.NormalBalance,
		&a.Pending.Amount, &a.Pending.Credits, &a.Pending.Debits,
		&a.Posted.Amount, &a.Posted.Credits, &a.Posted.Debits,
		&a.Available.Amount, &a.Available.Credits, &a.Available.Debits,
		&a.LockVersion, &mdBytes, &a.CreatedAt)
	if err != nil {
		return ledger.Account{}, err
	}
	a.Metadata = decodeMeta(mdBytes)
	return a, nil
}

// GetAccount fetches a single account by id within the organization.
func (s *Store) GetAccount(ctx context.Context, orgID, accountID uuid.UUID) (ledger.Account, error) {
	row := s.pool.QueryRow(ctx, `
        select `+accountColumns+`
        from accounts
        where id = $1 and organization_id = $2
    `, accountID, orgID)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.NotFound("account", accountID)
	}
	if err != nil {
		return ledger.Account{}, errs.Internal("get account", err)
	}
	return a, nil
}

// AccountsByIDs returns the organization's accounts matching ids.
func (s *Store) AccountsByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]ledger.Account{}, nil
	}
	rows, err := s.pool.Query(ctx, `
        select `+accountColumns+`
        from accounts
        where organization_id = $1 and id = any($2)
    `, orgID, ids)
	if err != nil {
		return nil, errs.Internal("fetch accounts", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID]ledger.Account, len(ids))
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, errs.Internal("scan account", err)
		}
		out[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Internal("fetch accounts", err)
	}
	return out, nil
}

// --- Transaction reads ---

// GetTransaction returns a transaction with entries, tenancy-validated.
func (s *Store) GetTransaction(ctx context.Context, orgID, ledgerID, txID uuid.UUID) (ledger.Transaction, error) {
	var t ledger.Transaction
	var mdBytes []byte
	var idemKey *string
	err := s.pool.QueryRow(ctx, `
        select id, ledger_id, organization_id, idempotency_key, status, effective_at, created_at, metadata
        from transactions
        where id = $1 and organization_id = $2 and ledger_id = $3
    `, txID, orgID, ledgerID).Scan(&t.ID, &t.LedgerID, &t.OrganizationID, &idemKey, &t.Status, &t.EffectiveAt, &t.CreatedAt, &mdBytes)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Transaction{}, errs.NotFound("transaction", txID)
	}
	if err != nil {
		return ledger.Transaction{}, errs.Internal("get transaction", err)
	}
	if idemKey != nil {
		t.IdempotencyKey = *idemKey
	}
	t.Metadata = decodeMeta(mdBytes)
	entries, err := s.entriesByTransactionIDs(ctx, []uuid.UUID{t.ID})
	if err != nil {
		return ledger.Transaction{}, err
	}
	t.Entries = entries[t.ID]
	return t, nil
}

// ListTransactions returns the ledger's transactions newest-created-first.
func (s *Store) ListTransactions(ctx context.Context, orgID, ledgerID uuid.UUID, offset, limit int) ([]ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
        select id, ledger_id, organization_id, idempotency_key, status, effective_at, created_at, metadata
        from transactions
        where organization_id = $1 and ledger_id = $2
        order by created_at desc, id desc
        offset $3 limit $4
    `, orgID, ledgerID, offset, limit)
	if err != nil {
		return nil, errs.Internal("list transactions", err)
	}
	defer rows.Close()
	out := make([]ledger.Transaction, 0, limit)
	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var t ledger.Transaction
		var mdBytes []byte
		var idemKey *string
		if err := rows.Scan(&t.ID, &t.LedgerID, &t.OrganizationID, &idemKey, &t.Status, &t.EffectiveAt, &t.CreatedAt, &mdBytes); err != nil {
			return nil, errs.Internal("scan transaction", err)
		}
		if idemKey != nil {
			t.IdempotencyKey = *idemKey
		}
		t.Metadata = decodeMeta(mdBytes)
		out = append(out, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Internal("list transactions", err)
	}
	if len(out) == 0 {
		return out, nil
	}
	entries, err := s.entriesByTransactionIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Entries = entries[out[i].ID]
	}
	return out, nil
}

// TransactionByIdempotencyKey resolves a transaction by idempotency key.
func (s *Store) TransactionByIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string) (ledger.Transaction, bool, error) {
	var txID, ledgerID uuid.UUID
	err := s.pool.QueryRow(ctx, `
        select id, ledger_id from transactions
        where organization_id = $1 and idempotency_key = $2
    `, orgID, key).Scan(&txID, &ledgerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Transaction{}, false, nil
	}
	if err != nil {
		return ledger.Transaction{}, false, errs.Internal("resolve idempotency key", err)
	}
	t, err := s.GetTransaction(ctx, orgID, ledgerID, txID)
	if err != nil {
		return ledger.Transaction{}, false, err
	}
	return t, true, nil
}

// EntriesByIDs returns the organization's entries matching ids.
func (s *Store) EntriesByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Entry, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]ledger.Entry{}, nil
	}
	rows, err := s.pool.Query(ctx, `
        select id, transaction_id, account_id, organization_id, direction, amount, currency, currency_exponent, status
        from entries
        where organization_id = $1 and id = any($2)
    `, orgID, ids)
	if err != nil {
		return nil, errs.Internal("fetch entries", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID]ledger.Entry, len(ids))
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.OrganizationID, &e.Direction, &e.Amount, &e.Currency, &e.CurrencyExponent, &e.Status); err != nil {
			return nil, errs.Internal("scan entry", err)
		}
		out[e.ID] = e
	}
	return out, rows.Err()
}

func (s *Store) entriesByTransactionIDs(ctx context.Context, txIDs []uuid.UUID) (map[uuid.UUID][]ledger.Entry, error) {
	rows, err := s.pool.Query(ctx, `
        select id, transaction_id, account_id, organization_id, direction, amount, currency, currency_exponent, status
        from entries
        where transaction_id = any($1)
        order by id asc
    `, txIDs)
	if err != nil {
		return nil, errs.Internal("fetch transaction entries", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]ledger.Entry, len(txIDs))
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.OrganizationID, &e.Direction, &e.Amount, &e.Currency, &e.CurrencyExponent, &e.Status); err != nil {
			return nil, errs.Internal("scan entry", err)
		}
		out[e.TransactionID] = append(out[e.TransactionID], e)
	}
	return out, rows.Err()
}

// --- Transaction writes ---

// CreateTransaction inserts the transaction, its entries and the conditioned
// account updates in one database transaction. A resubmitted transaction id
// updates metadata only and never re-applies balances.
func (s *Store) CreateTransaction(ctx context.Context, t ledger.Transaction, accounts []ledger.Account) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return errs.Internal("begin create transaction", err)
	}
	defer func() { _ = pgtx.Rollback(ctx) }()

	// One upsert decides insert-vs-resubmit atomically: a concurrent writer
	// of the same id lands on the do-update branch instead of a primary-key
	// violation. xmax = 0 only on a freshly inserted row.
	md, _ := t.Metadata.MarshalStableJSON()
	var inserted bool
	if err := pgtx.QueryRow(ctx, `
        insert into transactions (id, ledger_id, organization_id, idempotency_key, status, effective_at, created_at, metadata)
        values ($1,$2,$3,nullif($4,''),$5,$6,$7,$8)
        on conflict (id) do update set metadata = excluded.metadata
        returning (xmax = 0)
    `, t.ID, t.LedgerID, t.OrganizationID, t.IdempotencyKey, t.Status, t.EffectiveAt, t.CreatedAt, md).Scan(&inserted); err != nil {
		return translateErr("upsert transaction", err)
	}
	if !inserted {
		// Resubmitted id: metadata refreshed above, balances stay untouched.
		return pgtx.Commit(ctx)
	}
	for _, e := range t.Entries {
		if _, err := pgtx.Exec(ctx, `
            insert into entries (id, transaction_id, account_id, organization_id, direction, amount, currency, currency_exponent, status)
            values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
            on conflict (id) do nothing
        `, e.ID, e.TransactionID, e.AccountID, e.OrganizationID, e.Direction, e.Amount, e.Currency, e.CurrencyExponent, e.Status); err != nil {
			return translateErr("insert entry", err)
		}
	}
	if err := writeAccounts(ctx, pgtx, accounts); err != nil {
		return err
	}
	return pgtx.Commit(ctx)
}

// PostTransaction updates the transaction and entry statuses alongside the
// conditioned account updates, all in one database transaction.
func (s *Store) PostTransaction(ctx context.Context, t ledger.Transaction, accounts []ledger.Account) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return errs.Internal("begin post transaction", err)
	}
	defer func() { _ = pgtx.Rollback(ctx) }()

	ct, err := pgtx.Exec(ctx, `
        update transactions set status = $2 where id = $1 and organization_id = $3
    `, t.ID, t.Status, t.OrganizationID)
	if err != nil {
		return translateErr("update transaction status", err)
	}
	if ct.RowsAffected() == 0 {
		return errs.NotFound("transaction", t.ID)
	}
	if _, err := pgtx.Exec(ctx, `
        update entries set status = $2 where transaction_id = $1
    `, t.ID, t.Status); err != nil {
		return translateErr("update entry status", err)
	}
	if err := writeAccounts(ctx, pgtx, accounts); err != nil {
		return err
	}
	return pgtx.Commit(ctx)
}

// writeAccounts applies each projected account state conditioned on the lock
// version it was read with. Zero affected rows is a lost race (retryable);
// more than one row is a data-integrity fault (terminal).
func writeAccounts(ctx context.Context, pgtx pgx.Tx, accounts []ledger.Account) error {
	for _, a := range accounts {
		ct, err := pgtx.Exec(ctx, `
            update accounts set
                pending_amount = $3, pending_credits = $4, pending_debits = $5,
                posted_amount = $6, posted_credits = $7, posted_debits = $8,
                available_amount = $9, available_credits = $10, available_debits = $11,
                lock_version = lock_version + 1
            where id = $1 and lock_version = $2
        `, a.ID, a.LockVersion,
			a.Pending.Amount, a.Pending.Credits, a.Pending.Debits,
			a.Posted.Amount, a.Posted.Credits, a.Posted.Debits,
			a.Available.Amount, a.Available.Credits, a.Available.Debits)
		if err != nil {
			return translateErr("update account balances", err)
		}
		switch n := ct.RowsAffected(); {
		case n == 0:
			return errs.RetryableConflict("account", a.ID, "lock version moved")
		case n > 1:
			return errs.TerminalConflict("account", a.ID,
				fmt.Sprintf("conditioned write affected %d rows", n))
		}
	}
	return nil
}

// --- Settlements ---

const settlementColumns = `id, organization_id, settled_account_id, contra_account_id,
        status, currency, currency_exponent, description, metadata, created_at`

func scanSettlement(row pgx.Row) (ledger.Settlement, error) {
	var st ledger.Settlement
	var mdBytes []byte
	err := row.Scan(&st.ID, &st.OrganizationID, &st.SettledAccountID, &st.ContraAccountID,
		&st.Status, &st.Currency, &st.CurrencyExponent, &st.Description, &mdBytes, &st.CreatedAt)
	if err != nil {
		return ledger.Settlement{}, err
	}
	st.Metadata = decodeMeta(mdBytes)
	return st, nil
}

// GetSettlement fetches a settlement by id within the organization.
func (s *Store) GetSettlement(ctx context.Context, orgID, settlementID uuid.UUID) (ledger.Settlement, error) {
	row := s.pool.QueryRow(ctx, `
        select `+settlementColumns+`
        from settlements
        where id = $1 and organization_id = $2
    `, settlementID, orgID)
	st, err := scanSettlement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Settlement{}, errs.NotFound("settlement", settlementID)
	}
	if err != nil {
		return ledger.Settlement{}, errs.Internal("get settlement", err)
	}
	return st, nil
}

// CreateSettlement inserts a settlement row.
func (s *Store) CreateSettlement(ctx context.Context, st ledger.Settlement) (ledger.Settlement, error) {
	md, _ := st.Metadata.MarshalStableJSON()
	_, err := s.pool.Exec(ctx, `
        insert into settlements (id, organization_id, settled_account_id, contra_account_id, status, currency, currency_exponent, description, metadata, created_at)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    `, st.ID, st.OrganizationID, st.SettledAccountID, st.ContraAccountID, st.Status, st.Currency, st.CurrencyExponent, st.Description, md, st.CreatedAt)
	if err != nil {
		return ledger.Settlement{}, translateErr("insert settlement", err)
	}
	return st, nil
}

// UpdateSettlement writes st conditioned on the status the caller read.
func (s *Store) UpdateSettlement(ctx context.Context, st ledger.Settlement, prev ledger.SettlementStatus) (ledger.Settlement, error) {
	md, _ := st.Metadata.MarshalStableJSON()
	ct, err := s.pool.Exec(ctx, `
        update settlements set status = $3, description = $4, metadata = $5
        where id = $1 and organization_id = $2 and status = $6
    `, st.ID, st.OrganizationID, st.Status, st.Description, md, prev)
	if err != nil {
		return ledger.Settlement{}, translateErr("update settlement", err)
	}
	if ct.RowsAffected() == 0 {
		// Either the row vanished or its status moved underneath us.
		if _, err := s.GetSettlement(ctx, st.OrganizationID, st.ID); err != nil {
			return ledger.Settlement{}, err
		}
		return ledger.Settlement{}, errs.RetryableConflict("settlement", st.ID, "status moved")
	}
	return st, nil
}

// DeleteSettlement removes a drafting settlement; links cascade.
func (s *Store) DeleteSettlement(ctx context.Context, orgID, settlementID uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `
        delete from settlements
        where id = $1 and organization_id = $2 and status = 'drafting'
    `, settlementID, orgID)
	if err != nil {
		return translateErr("delete settlement", err)
	}
	if ct.RowsAffected() == 0 {
		if _, err := s.GetSettlement(ctx, orgID, settlementID); err != nil {
			return err
		}
		return errs.TerminalConflict("settlement", settlementID, "only drafting settlements can be deleted")
	}
	return nil
}

// SettlementEntryIDs returns linked entry ids in attach order.
func (s *Store) SettlementEntryIDs(ctx context.Context, settlementID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
        select entry_id from settlement_entries
        where settlement_id = $1
        order by linked_at asc, entry_id asc
    `, settlementID)
	if err != nil {
		return nil, errs.Internal("list settlement entries", err)
	}
	defer rows.Close()
	out := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Internal("scan settlement entry", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SettlementLinks maps each entry id to the settlement currently holding it.
func (s *Store) SettlementLinks(ctx context.Context, entryIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	if len(entryIDs) == 0 {
		return map[uuid.UUID]uuid.UUID{}, nil
	}
	rows, err := s.pool.Query(ctx, `
        select entry_id, settlement_id from settlement_entries
        where entry_id = any($1)
    `, entryIDs)
	if err != nil {
		return nil, errs.Internal("resolve settlement links", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID]uuid.UUID)
	for rows.Next() {
		var entryID, settlementID uuid.UUID
		if err := rows.Scan(&entryID, &settlementID); err != nil {
			return nil, errs.Internal("scan settlement link", err)
		}
		out[entryID] = settlementID
	}
	return out, rows.Err()
}

// LinkEntries attaches entries to the settlement. Re-linking to the same
// settlement is a no-op; the unique index on entry_id rejects cross-
// settlement attachment.
func (s *Store) LinkEntries(ctx context.Context, settlementID uuid.UUID, entryIDs []uuid.UUID) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return errs.Internal("begin link entries", err)
	}
	defer func() { _ = pgtx.Rollback(ctx) }()
	for _, id := range entryIDs {
		if _, err := pgtx.Exec(ctx, `
            insert into settlement_entries (settlement_id, entry_id)
            values ($1,$2)
            on conflict (settlement_id, entry_id) do nothing
        `, settlementID, id); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return errs.TerminalConflict("entry", id, "entry is already attached to another settlement")
			}
			return translateErr("link entry", err)
		}
	}
	return pgtx.Commit(ctx)
}

// UnlinkEntries detaches the given entries from the settlement.
func (s *Store) UnlinkEntries(ctx context.Context, settlementID uuid.UUID, entryIDs []uuid.UUID) error {
	if len(entryIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
        delete from settlement_entries
        where settlement_id = $1 and entry_id = any($2)
    `, settlementID, entryIDs)
	if err != nil {
		return translateErr("unlink entries", err)
	}
	return nil
}

// --- helpers ---

func decodeMeta(b []byte) meta.Metadata {
	if len(b) == 0 {
		return meta.Metadata{}
	}
	var m meta.Metadata
	if err := m.UnmarshalJSON(b); err != nil {
		return meta.Metadata{}
	}
	return m
}

// translateErr maps backing-store failures onto the error taxonomy:
// serialization failures and deadlocks are retryable conflicts, unique
// violations are terminal conflicts, anything else is internal with the
// operation attached.
func translateErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return errs.RetryableConflict(op, uuid.Nil, "serialization failure")
		case "23505":
			return errs.TerminalConflict(op, uuid.Nil, "unique constraint violated: "+pgErr.ConstraintName)
		}
	}
	return errs.Internal(op, err)
}

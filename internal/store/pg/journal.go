package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	_ "github.com/jackc/pgx/v5/stdlib"

	"mintgate.org/internal/sale"
)

// Journal persists committed sale mutations and the latest engine snapshot.
// The in-memory engine stays authoritative; this store exists so a restart
// can pick up where the sale left off.
type Journal struct {
	db *sql.DB
}

var _ sale.Journal = (*Journal)(nil)

// Open connects to Postgres with tuned pool defaults.
func Open(dsn string) (*Journal, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Journal{db: db}, nil
}

// NewJournal wraps an existing handle (used by tests and cmd wiring).
func NewJournal(db *sql.DB) *Journal { return &Journal{db: db} }

func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) DB() *sql.DB { return j.db }

// RecordPurchase appends one purchase receipt.
func (j *Journal) RecordPurchase(ctx context.Context, r sale.Receipt) error {
	paid := "0"
	if r.Paid != nil {
		paid = r.Paid.Dec()
	}
	_, err := j.db.ExecContext(ctx, `
		insert into purchases(receipt_id, phase, buyer, units, first_token_id, paid, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, r.ID, string(r.Kind), r.Buyer, int64(r.Units), int64(r.FirstTokenID), paid, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("record purchase %s: %w", r.ID, err)
	}
	return nil
}

// RecordAllocation appends one direct-allocation receipt.
func (j *Journal) RecordAllocation(ctx context.Context, r sale.Receipt) error {
	_, err := j.db.ExecContext(ctx, `
		insert into allocations(receipt_id, recipient, units, first_token_id, created_at)
		values ($1,$2,$3,$4,$5)
	`, r.ID, r.Buyer, int64(r.Units), int64(r.FirstTokenID), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("record allocation %s: %w", r.ID, err)
	}
	return nil
}

// SaveState upserts the single snapshot row plus per-identity phase
// counters. Counters only ever grow, so upserts never leave stale rows.
func (j *Journal) SaveState(ctx context.Context, s sale.State) error {
	vault := "0"
	if s.Vault != nil {
		vault = s.Vault.Dec()
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into sale_state(id, owner, authority_key, base_uri, vault,
			total_buys, total_issued, whitelist_total, public_total, updated_at)
		values (1,$1,$2,$3,$4,$5,$6,$7,$8, now())
		on conflict (id) do update set
			owner = excluded.owner,
			authority_key = excluded.authority_key,
			base_uri = excluded.base_uri,
			vault = excluded.vault,
			total_buys = excluded.total_buys,
			total_issued = excluded.total_issued,
			whitelist_total = excluded.whitelist_total,
			public_total = excluded.public_total,
			updated_at = now()
	`, s.Owner, s.AuthorityKey, s.BaseURI, vault,
		int64(s.TotalBuys), int64(s.TotalIssued), int64(s.WhitelistTotal), int64(s.PublicTotal)); err != nil {
		return fmt.Errorf("save sale state: %w", err)
	}

	if err := upsertPhaseBuys(ctx, tx, string(sale.PhaseWhitelist), s.WhitelistBuys); err != nil {
		return err
	}
	if err := upsertPhaseBuys(ctx, tx, string(sale.PhasePublic), s.PublicBuys); err != nil {
		return err
	}

	return tx.Commit()
}

func upsertPhaseBuys(ctx context.Context, tx *sql.Tx, phase string, buys map[string]uint64) error {
	for identity, units := range buys {
		if _, err := tx.ExecContext(ctx, `
			insert into phase_buys(phase, identity, buys)
			values ($1,$2,$3)
			on conflict (phase, identity) do update set buys = excluded.buys
		`, phase, identity, int64(units)); err != nil {
			return fmt.Errorf("save phase buys %s/%s: %w", phase, identity, err)
		}
	}
	return nil
}

// ReplayReceipts walks every recorded purchase and allocation in token-id
// order, so a restart can rebuild token ownership.
func (j *Journal) ReplayReceipts(ctx context.Context, fn func(sale.Receipt) error) error {
	rows, err := j.db.QueryContext(ctx, `
		select receipt_id, phase, buyer, units, first_token_id, paid, created_at from purchases
		union all
		select receipt_id, '', recipient, units, first_token_id, '0', created_at from allocations
		order by first_token_id
	`)
	if err != nil {
		return fmt.Errorf("replay receipts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r     sale.Receipt
			phase string
			units int64
			first int64
			paid  string
		)
		if err := rows.Scan(&r.ID, &phase, &r.Buyer, &units, &first, &paid, &r.CreatedAt); err != nil {
			return err
		}
		r.Kind = sale.PhaseKind(phase)
		r.Units = uint64(units)
		r.FirstTokenID = uint64(first)
		if paid != "" && paid != "0" {
			v, err := uint256.FromDecimal(paid)
			if err != nil {
				return fmt.Errorf("replay paid value %q: %w", paid, err)
			}
			r.Paid = v
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Load reads the latest snapshot. The second return value is false when no
// snapshot has been written yet.
func (j *Journal) Load(ctx context.Context) (sale.State, bool, error) {
	var (
		s     sale.State
		vault string
	)
	err := j.db.QueryRowContext(ctx, `
		select owner, authority_key, base_uri, vault,
			total_buys, total_issued, whitelist_total, public_total
		from sale_state where id = 1
	`).Scan(&s.Owner, &s.AuthorityKey, &s.BaseURI, &vault,
		&s.TotalBuys, &s.TotalIssued, &s.WhitelistTotal, &s.PublicTotal)
	if errors.Is(err, sql.ErrNoRows) {
		return sale.State{}, false, nil
	}
	if err != nil {
		return sale.State{}, false, fmt.Errorf("load sale state: %w", err)
	}

	v, err := uint256.FromDecimal(vault)
	if err != nil {
		return sale.State{}, false, fmt.Errorf("load vault value %q: %w", vault, err)
	}
	s.Vault = v

	s.WhitelistBuys = make(map[string]uint64)
	s.PublicBuys = make(map[string]uint64)
	rows, err := j.db.QueryContext(ctx, `select phase, identity, buys from phase_buys`)
	if err != nil {
		return sale.State{}, false, fmt.Errorf("load phase buys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			phase    string
			identity string
			buys     int64
		)
		if err := rows.Scan(&phase, &identity, &buys); err != nil {
			return sale.State{}, false, err
		}
		switch sale.PhaseKind(phase) {
		case sale.PhaseWhitelist:
			s.WhitelistBuys[identity] = uint64(buys)
		case sale.PhasePublic:
			s.PublicBuys[identity] = uint64(buys)
		}
	}
	if err := rows.Err(); err != nil {
		return sale.State{}, false, err
	}
	return s, true, nil
}

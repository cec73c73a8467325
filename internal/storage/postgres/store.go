package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"xstaking/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for replayed events and treasury state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertEvents stores typed events. Rows already present are left untouched.
func (s *Store) InsertEvents(ctx context.Context, events []model.TypedEventRecord) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		var raw *string
		if ev.Raw != nil {
			raw = &ev.Raw.Data
		}
		batch.Queue(`
			INSERT INTO program_events (
				signature, log_index, slot, block_time, program_id, event_name, treasury, payload, raw_data, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			ON CONFLICT (signature, log_index) DO NOTHING
		`,
			ev.Signature,
			int64(ev.LogIndex),
			int64(ev.Slot),
			nullableTime(ev.BlockTime),
			ev.ProgramID,
			ev.EventName,
			ev.Treasury,
			[]byte(ev.Decoded),
			raw,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertTreasuries inserts or updates treasury snapshots.
func (s *Store) UpsertTreasuries(ctx context.Context, snapshots []model.TreasurySnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range snapshots {
		var blockTime *time.Time
		if !t.UpdatedAt.IsZero() {
			ts := t.UpdatedAt
			blockTime = &ts
		}
		batch.Queue(`
			INSERT INTO treasuries (
				treasury, authority, treasury_mint, balance, depositors, deposit_count, claim_count,
				total_deposits, total_claims, created_slot, last_slot, block_time, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
			ON CONFLICT (treasury)
			DO UPDATE SET
				balance = EXCLUDED.balance,
				depositors = EXCLUDED.depositors,
				deposit_count = EXCLUDED.deposit_count,
				claim_count = EXCLUDED.claim_count,
				total_deposits = EXCLUDED.total_deposits,
				total_claims = EXCLUDED.total_claims,
				last_slot = GREATEST(treasuries.last_slot, EXCLUDED.last_slot),
				block_time = EXCLUDED.block_time,
				updated_at = now()
		`,
			t.Treasury,
			t.Authority,
			t.TreasuryMint,
			numeric(t.Balance),
			t.Depositors,
			int64(t.DepositCount),
			int64(t.ClaimCount),
			numeric(t.TotalDeposits),
			numeric(t.TotalClaims),
			int64(t.CreatedSlot),
			int64(t.LastSlot),
			blockTime,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// State is the persisted replay cursor.
type State struct {
	Slot      uint64
	Signature string
	LogIndex  uint64
}

// LoadState returns the cursor stored under name.
func (s *Store) LoadState(ctx context.Context, name string) (State, bool, error) {
	if name == "" {
		return State{}, false, fmt.Errorf("state name required")
	}
	var slot, logIndex int64
	var st State
	row := s.pool.QueryRow(ctx, `SELECT last_slot, last_signature, last_log_index FROM replay_state WHERE name=$1`, name)
	if err := row.Scan(&slot, &st.Signature, &logIndex); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	st.Slot = uint64(slot)
	st.LogIndex = uint64(logIndex)
	return st, true, nil
}

// SaveState upserts the cursor for name.
func (s *Store) SaveState(ctx context.Context, name string, st State) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, last_slot, last_signature, last_log_index, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name) DO UPDATE
		SET last_slot = EXCLUDED.last_slot,
			last_signature = EXCLUDED.last_signature,
			last_log_index = EXCLUDED.last_log_index,
			updated_at = now()
	`, name, int64(st.Slot), st.Signature, int64(st.LogIndex))
	return err
}

func nullableTime(unix int64) *time.Time {
	if unix == 0 {
		return nil
	}
	ts := time.Unix(unix, 0).UTC()
	return &ts
}

// numeric passes u64 values as text so they survive the int64 wire type.
func numeric(v uint64) string {
	return strconv.FormatUint(v, 10)
}

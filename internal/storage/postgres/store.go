package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"positionLedger/internal/model"
	"positionLedger/internal/registry"
)

// Store provides Postgres persistence for the operation journal and position
// snapshots.
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

// Append inserts operation records into the journal table.
func (s *Store) Append(ctx context.Context, records []model.OperationRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO position_operations (
				op, position_id, pool_address, caller, recipient,
				liquidity, amount0, amount1, op_ts, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, to_timestamp($9), now())
		`,
			r.Op,
			int64(r.PositionID),
			r.Pool,
			r.Caller,
			r.Recipient,
			r.Liquidity,
			r.Amount0,
			r.Amount1,
			int64(r.Timestamp),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPositions writes a snapshot of live position records.
func (s *Store) UpsertPositions(ctx context.Context, entries []registry.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		pos := e.Position
		batch.Queue(`
			INSERT INTO positions (
				position_id, token0, token1, fee, tick_lower, tick_upper,
				liquidity, fee_growth_inside0, fee_growth_inside1,
				tokens_owed0, tokens_owed1, nonce, operator, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
			ON CONFLICT (position_id)
			DO UPDATE SET
				liquidity = EXCLUDED.liquidity,
				fee_growth_inside0 = EXCLUDED.fee_growth_inside0,
				fee_growth_inside1 = EXCLUDED.fee_growth_inside1,
				tokens_owed0 = EXCLUDED.tokens_owed0,
				tokens_owed1 = EXCLUDED.tokens_owed1,
				nonce = EXCLUDED.nonce,
				operator = EXCLUDED.operator,
				updated_at = now()
		`,
			int64(e.ID),
			pos.Token0.Hex(),
			pos.Token1.Hex(),
			pos.Fee,
			pos.TickLower,
			pos.TickUpper,
			pos.Liquidity.Dec(),
			pos.FeeGrowthInside0.Dec(),
			pos.FeeGrowthInside1.Dec(),
			pos.TokensOwed0.Dec(),
			pos.TokensOwed1.Dec(),
			int64(pos.Nonce),
			pos.Operator.Hex(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

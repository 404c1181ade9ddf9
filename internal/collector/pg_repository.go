package collector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"predictengine/internal/model"
	"predictengine/internal/tradingapi"
)

// PGRepository is a Postgres-backed TickRepository built on pgxpool. It
// stores each tick as a row and sends SaveTicks' per-tick INSERTs as one
// pgx.Batch.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository wraps an already-connected pool. Callers typically
// build the pool with pgxpool.New(ctx, dsn) during startup.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Init creates the ticks table and its query indexes if they do not
// already exist; safe to call more than once.
func (r *PGRepository) Init(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ticks (
			asset_id       TEXT NOT NULL,
			condition_id   TEXT NOT NULL,
			price          NUMERIC NOT NULL,
			size           NUMERIC NOT NULL,
			side           TEXT NOT NULL,
			fee_rate_bps   INTEGER NOT NULL,
			timestamp_ms   BIGINT NOT NULL,
			received_at_ms BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS ticks_asset_ts_idx ON ticks (asset_id, timestamp_ms);
		CREATE INDEX IF NOT EXISTS ticks_condition_ts_idx ON ticks (condition_id, timestamp_ms);
	`)
	if err != nil {
		return fmt.Errorf("init ticks schema: %w", err)
	}
	return nil
}

// SaveTicks queues one INSERT per tick in a pgx.Batch and sends them in a
// single round trip.
func (r *PGRepository) SaveTicks(ctx context.Context, batch []model.Tick) error {
	if len(batch) == 0 {
		return nil
	}
	query := `
		INSERT INTO ticks (asset_id, condition_id, price, size, side, fee_rate_bps, timestamp_ms, received_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	batchReq := &pgx.Batch{}
	for _, t := range batch {
		batchReq.Queue(query, t.AssetID, t.ConditionID, t.Price.String(), t.Size.String(), string(t.Side), t.FeeRateBps, t.TimestampMs, t.ReceivedAtMs)
	}
	br := r.pool.SendBatch(ctx, batchReq)
	defer br.Close()
	for range batch {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert tick: %w", err)
		}
	}
	return nil
}

// GetTicks returns ticks for a single asset ID within [startMs, endMs),
// ordered by timestamp.
func (r *PGRepository) GetTicks(ctx context.Context, assetID string, startMs, endMs int64) ([]model.Tick, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT asset_id, condition_id, price, size, side, fee_rate_bps, timestamp_ms, received_at_ms
		FROM ticks WHERE asset_id = $1 AND timestamp_ms >= $2 AND timestamp_ms < $3
		ORDER BY timestamp_ms
	`, assetID, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()
	return scanTicks(rows)
}

// GetTicksByCondition returns ticks for a single condition ID within
// [startMs, endMs), ordered by timestamp.
func (r *PGRepository) GetTicksByCondition(ctx context.Context, conditionID string, startMs, endMs int64) ([]model.Tick, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT asset_id, condition_id, price, size, side, fee_rate_bps, timestamp_ms, received_at_ms
		FROM ticks WHERE condition_id = $1 AND timestamp_ms >= $2 AND timestamp_ms < $3
		ORDER BY timestamp_ms
	`, conditionID, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("query ticks by condition: %w", err)
	}
	defer rows.Close()
	return scanTicks(rows)
}

// GetDistinctConditionIDs lists every condition ID with at least one tick
// in [startMs, endMs).
func (r *PGRepository) GetDistinctConditionIDs(ctx context.Context, startMs, endMs int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT condition_id FROM ticks
		WHERE timestamp_ms >= $1 AND timestamp_ms < $2
		ORDER BY condition_id
	`, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("query distinct condition ids: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return nil, fmt.Errorf("scan condition id: %w", err)
		}
		out = append(out, cid)
	}
	return out, rows.Err()
}

// GetTickCount returns the total row count.
func (r *PGRepository) GetTickCount(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ticks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count ticks: %w", err)
	}
	return count, nil
}

// Close releases the underlying connection pool.
func (r *PGRepository) Close() error {
	r.pool.Close()
	return nil
}

func scanTicks(rows pgx.Rows) ([]model.Tick, error) {
	var out []model.Tick
	for rows.Next() {
		var (
			t          model.Tick
			priceStr   string
			sizeStr    string
			side       string
		)
		if err := rows.Scan(&t.AssetID, &t.ConditionID, &priceStr, &sizeStr, &side, &t.FeeRateBps, &t.TimestampMs, &t.ReceivedAtMs); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		t.Side = model.Side(side)
		t.Price = mustDecimal(priceStr)
		t.Size = mustDecimal(sizeStr)
		out = append(out, t)
	}
	return out, rows.Err()
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var _ tradingapi.TickRepository = (*PGRepository)(nil)

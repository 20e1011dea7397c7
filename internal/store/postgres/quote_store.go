package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

// QuoteStore implements domain.QuoteStore using PostgreSQL. The full quote is
// kept as JSONB next to the columns used for lookups.
type QuoteStore struct {
	pool *pgxpool.Pool
}

// NewQuoteStore creates a new QuoteStore backed by the given connection pool.
func NewQuoteStore(pool *pgxpool.Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

// InsertBatch stores the accepted quotes of one round in a single round
// trip. Quotes whose order hash is already stored are skipped.
func (s *QuoteStore) InsertBatch(ctx context.Context, roundID string, quotes []domain.FirmQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	const query = `
		INSERT INTO firm_quotes (
			order_hash, id, round_id, endpoint, chain_id, maker_address,
			maker_asset_data, taker_asset_data,
			maker_asset_amount, taker_asset_amount, expiration,
			payload, received_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8,
			$9::text::numeric, $10::text::numeric, $11::text::numeric,
			$12, $13
		)
		ON CONFLICT (order_hash) DO NOTHING`

	batch := &pgx.Batch{}
	for _, q := range quotes {
		payload, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("postgres: marshal quote %s: %w", q.OrderHash, err)
		}
		batch.Queue(query,
			strings.ToLower(q.OrderHash), q.ID, roundID, q.Endpoint, q.ChainID,
			strings.ToLower(q.MakerAddress),
			strings.ToLower(q.MakerAssetData), strings.ToLower(q.TakerAssetData),
			q.MakerAssetAmount.String(), q.TakerAssetAmount.String(), q.ExpirationTimeSeconds.String(),
			payload, q.ReceivedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range quotes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert quotes for round %s: %w", roundID, err)
		}
	}
	return nil
}

func scanQuote(scanner interface{ Scan(dest ...any) error }) (domain.FirmQuote, error) {
	var payload []byte
	if err := scanner.Scan(&payload); err != nil {
		return domain.FirmQuote{}, err
	}
	var q domain.FirmQuote
	if err := json.Unmarshal(payload, &q); err != nil {
		return domain.FirmQuote{}, fmt.Errorf("unmarshal quote: %w", err)
	}
	return q, nil
}

// GetByHash retrieves a quote by its order hash (case-insensitive).
func (s *QuoteStore) GetByHash(ctx context.Context, orderHash string) (domain.FirmQuote, error) {
	row := s.pool.QueryRow(ctx, `SELECT payload FROM firm_quotes WHERE order_hash = $1`, strings.ToLower(orderHash))
	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FirmQuote{}, domain.ErrNotFound
		}
		return domain.FirmQuote{}, fmt.Errorf("postgres: get quote %s: %w", orderHash, err)
	}
	return q, nil
}

// ListRecent returns quotes newest first.
func (s *QuoteStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.FirmQuote, error) {
	query, args := listClause(`SELECT payload FROM firm_quotes WHERE 1=1`, nil, "received_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list quotes: %w", err)
	}
	defer rows.Close()

	var out []domain.FirmQuote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan quote: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list quotes rows: %w", err)
	}
	return out, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

// CompilationStore implements domain.CompilationStore using PostgreSQL.
// Orders are kept as a JSONB document; the hashes are indexed separately.
type CompilationStore struct {
	pool *pgxpool.Pool
}

// NewCompilationStore creates a new CompilationStore backed by the given pool.
func NewCompilationStore(pool *pgxpool.Pool) *CompilationStore {
	return &CompilationStore{pool: pool}
}

// Create inserts c. A duplicate ID returns domain.ErrAlreadyExists.
func (s *CompilationStore) Create(ctx context.Context, c domain.Compilation) error {
	ordersJSON, err := json.Marshal(c.Orders)
	if err != nil {
		return fmt.Errorf("postgres: marshal compilation orders: %w", err)
	}
	hashes := c.OrderHashes
	if hashes == nil {
		hashes = []string{}
	}

	const query = `
		INSERT INTO compilations (
			id, side, input_token, output_token, slippage, batched,
			order_count, orders, order_hashes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		c.ID, string(c.Side), c.InputToken, c.OutputToken, c.Slippage, c.Batched,
		len(c.Orders), ordersJSON, hashes, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create compilation %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: create compilation %s: %w", c.ID, domain.ErrAlreadyExists)
	}
	return nil
}

const compilationSelectCols = `id, side, input_token, output_token, slippage, batched,
	orders, order_hashes, created_at`

func scanCompilation(scanner interface{ Scan(dest ...any) error }) (domain.Compilation, error) {
	var c domain.Compilation
	var side string
	var ordersJSON []byte
	if err := scanner.Scan(
		&c.ID, &side, &c.InputToken, &c.OutputToken, &c.Slippage, &c.Batched,
		&ordersJSON, &c.OrderHashes, &c.CreatedAt,
	); err != nil {
		return domain.Compilation{}, err
	}
	c.Side = domain.Side(side)
	if err := json.Unmarshal(ordersJSON, &c.Orders); err != nil {
		return domain.Compilation{}, fmt.Errorf("unmarshal orders: %w", err)
	}
	return c, nil
}

// GetByID retrieves a compilation by ID.
func (s *CompilationStore) GetByID(ctx context.Context, id string) (domain.Compilation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+compilationSelectCols+` FROM compilations WHERE id = $1`, id)
	c, err := scanCompilation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Compilation{}, domain.ErrNotFound
		}
		return domain.Compilation{}, fmt.Errorf("postgres: get compilation %s: %w", id, err)
	}
	return c, nil
}

// ListRecent returns compilations newest first.
func (s *CompilationStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Compilation, error) {
	query, args := listClause(`SELECT `+compilationSelectCols+` FROM compilations WHERE 1=1`, nil, "created_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list compilations: %w", err)
	}
	defer rows.Close()

	var out []domain.Compilation
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan compilation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list compilations rows: %w", err)
	}
	return out, nil
}

package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// Compilation is the persisted result of compiling one path.
type Compilation struct {
	ID          string            `json:"id"`
	Side        Side              `json:"side"`
	InputToken  string            `json:"inputToken"`
	OutputToken string            `json:"outputToken"`
	Slippage    string            `json:"slippage"`
	Batched     bool              `json:"batched"`
	Orders      []SettlementOrder `json:"orders"`
	OrderHashes []string          `json:"orderHashes"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// CompilationStore persists compiled order lists.
type CompilationStore interface {
	Create(ctx context.Context, c Compilation) error
	GetByID(ctx context.Context, id string) (Compilation, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]Compilation, error)
}

// QuoteStore persists accepted firm quotes.
type QuoteStore interface {
	InsertBatch(ctx context.Context, roundID string, quotes []FirmQuote) error
	GetByHash(ctx context.Context, orderHash string) (FirmQuote, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]FirmQuote, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

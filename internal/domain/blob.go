package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// RoundArchiver keeps completed quote rounds in cold storage.
type RoundArchiver interface {
	ArchiveRound(ctx context.Context, round QuoteRound) (string, error)
	LoadRound(ctx context.Context, id string) (QuoteRound, error)
	ListRounds(ctx context.Context) ([]BlobInfo, error)
}

package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

// roundsPrefix is the key prefix every archived round lives under.
const roundsPrefix = "rounds/"

// RoundArchiver implements domain.RoundArchiver. Each round is one JSON
// object keyed by its ID, so a round can be fetched back without an index.
type RoundArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
}

// NewRoundArchiver creates a RoundArchiver. reader may be nil when rounds are
// only ever written.
func NewRoundArchiver(writer domain.BlobWriter, reader domain.BlobReader) *RoundArchiver {
	return &RoundArchiver{writer: writer, reader: reader}
}

// RoundPath returns the object key for a round ID.
func RoundPath(id string) string {
	return roundsPrefix + id + ".json"
}

// ArchiveRound uploads round and returns the object key.
func (a *RoundArchiver) ArchiveRound(ctx context.Context, round domain.QuoteRound) (string, error) {
	if round.ID == "" {
		return "", fmt.Errorf("s3blob: archive round: empty id")
	}
	data, err := json.Marshal(round)
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal round %s: %w", round.ID, err)
	}
	path := RoundPath(round.ID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return "", err
	}
	return path, nil
}

// LoadRound fetches an archived round. A missing round returns
// domain.ErrNotFound.
func (a *RoundArchiver) LoadRound(ctx context.Context, id string) (domain.QuoteRound, error) {
	if a.reader == nil {
		return domain.QuoteRound{}, domain.ErrNotFound
	}
	if id == "" || strings.ContainsAny(id, "/.") {
		return domain.QuoteRound{}, domain.ErrNotFound
	}
	body, err := a.reader.Get(ctx, RoundPath(id))
	if err != nil {
		return domain.QuoteRound{}, err
	}
	defer body.Close()

	var round domain.QuoteRound
	if err := json.NewDecoder(body).Decode(&round); err != nil {
		return domain.QuoteRound{}, fmt.Errorf("s3blob: decode round %s: %w", id, err)
	}
	return round, nil
}

// ListRounds lists every archived round object, newest first.
func (a *RoundArchiver) ListRounds(ctx context.Context) ([]domain.BlobInfo, error) {
	if a.reader == nil {
		return nil, nil
	}
	infos, err := a.reader.List(ctx, roundsPrefix)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].LastModified.After(infos[j].LastModified)
	})
	return infos, nil
}

var _ domain.RoundArchiver = (*RoundArchiver)(nil)

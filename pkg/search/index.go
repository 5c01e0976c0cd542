package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/reel/pkg/embeddings"
	"github.com/papercomputeco/reel/pkg/store"
	"github.com/papercomputeco/reel/pkg/vector"
)

// Indexer embeds stored transcript events into a vector index.
type Indexer struct {
	embedder     embeddings.Embedder
	vectorDriver vector.Driver
	transcripts  store.Driver
	logger       *slog.Logger
}

// IndexResult contains statistics from an indexing run.
type IndexResult struct {
	Sessions int
	Events   int
	Indexed  int
	Skipped  int
}

// Summary returns a human-readable summary of the indexing result.
func (r *IndexResult) Summary() string {
	return fmt.Sprintf(
		"Index complete: %d events indexed, %d skipped (no text)\n"+
			"Scanned %d sessions (%d events)",
		r.Indexed, r.Skipped,
		r.Sessions, r.Events,
	)
}

// NewIndexer creates an Indexer over the given transcript store.
func NewIndexer(
	embedder embeddings.Embedder,
	vectorDriver vector.Driver,
	transcripts store.Driver,
	logger *slog.Logger,
) *Indexer {
	return &Indexer{
		embedder:     embedder,
		vectorDriver: vectorDriver,
		transcripts:  transcripts,
		logger:       logger,
	}
}

// Run embeds every stored event that has text content and upserts it into
// the vector index. Events without text are skipped. Adds are upserts, so
// re-running over an already indexed store is safe.
//
// Empty appName or userID matches all sessions.
func (ix *Indexer) Run(ctx context.Context, appName, userID string) (*IndexResult, error) {
	sessions, err := ix.transcripts.ListSessions(ctx, appName, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	result := &IndexResult{}

	for _, sess := range sessions {
		events, err := ix.transcripts.ListEvents(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list events for session %s: %w", sess.ID, err)
		}

		var docs []vector.Document
		for _, event := range events {
			result.Events++

			text := event.Content.Text()
			if strings.TrimSpace(text) == "" {
				result.Skipped++
				continue
			}

			embedding, err := ix.embedder.Embed(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("failed to embed event %s: %w", event.ID, err)
			}

			docs = append(docs, vector.Document{
				ID:        event.ID,
				SessionID: sess.ID,
				Embedding: embedding,
			})
		}

		if len(docs) > 0 {
			if err := ix.vectorDriver.Add(ctx, docs); err != nil {
				return nil, fmt.Errorf("failed to index session %s: %w", sess.ID, err)
			}
			result.Indexed += len(docs)
		}

		result.Sessions++

		ix.logger.Debug("indexed session",
			"session_id", sess.ID,
			"documents", len(docs),
		)
	}

	return result, nil
}

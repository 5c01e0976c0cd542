// Package search provides shared search types and logic for semantic search
// over stored agent transcripts. It is used by both the sessions CLI and
// the MCP server tool.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/embeddings"
	"github.com/papercomputeco/reel/pkg/store"
	"github.com/papercomputeco/reel/pkg/vector"
)

// SearchInput represents the input arguments for a search request.
type SearchInput struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	EventID    string  `json:"event_id"`
	SessionID  string  `json:"session_id"`
	Score      float32 `json:"score"`
	Role       string  `json:"role"`
	Preview    string  `json:"preview"`
	Turns      int     `json:"turns"`
	Transcript []Turn  `json:"transcript"`
}

// Turn represents a single turn in a conversation.
type Turn struct {
	EventID string `json:"event_id"`
	Role    string `json:"role"`
	Text    string `json:"text"`
	Matched bool   `json:"matched,omitempty"`
}

// SearchOutput represents the output of a search operation.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// Search performs a semantic search over stored transcripts.
// It embeds the query text, queries the vector index for similar events,
// then loads the surrounding session transcript for each hit.
func Search(
	ctx context.Context,
	query string,
	topK int,
	embedder embeddings.Embedder,
	vectorDriver vector.Driver,
	transcripts store.Driver,
	logger *slog.Logger,
) (*SearchOutput, error) {
	if topK <= 0 {
		topK = 5
	}

	logger.Debug("search request",
		"query", query,
		"topK", topK,
	)

	// Embed the query
	queryEmbedding, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Query the vector index
	results, err := vectorDriver.Query(ctx, queryEmbedding, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}

	// Build search results with the surrounding transcript
	searchResults := make([]SearchResult, 0, len(results))
	for _, result := range results {
		events, err := transcripts.ListEvents(ctx, result.SessionID)
		if err != nil {
			logger.Warn("failed to load transcript for result",
				"session_id", result.SessionID,
				"event_id", result.ID,
				"error", err,
			)
			continue
		}

		searchResult := BuildSearchResult(result, events)
		searchResults = append(searchResults, searchResult)
	}

	return &SearchOutput{
		Query:   query,
		Results: searchResults,
		Count:   len(searchResults),
	}, nil
}

// BuildSearchResult converts a vector query result and its session
// transcript into a SearchResult.
func BuildSearchResult(result vector.QueryResult, events []agent.SessionEvent) SearchResult {
	turns := []Turn{}
	preview := ""
	role := ""

	for _, event := range events {
		isMatched := event.ID == result.ID
		turns = append(turns, Turn{
			EventID: event.ID,
			Role:    event.Role,
			Text:    event.Content.Text(),
			Matched: isMatched,
		})

		// The preview comes from the matched event
		if isMatched {
			preview = event.Content.Text()
			role = event.Role
		}
	}

	return SearchResult{
		EventID:    result.ID,
		SessionID:  result.SessionID,
		Score:      result.Score,
		Role:       role,
		Preview:    preview,
		Turns:      len(turns),
		Transcript: turns,
	}
}

// Package qdrant provides a Qdrant vector database driver implementation.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/reel/pkg/vector"
)

const (
	// DefaultCollection is the default collection name for storing reel embeddings.
	DefaultCollection = "reel_transcripts"

	// DefaultPort is the Qdrant gRPC port.
	DefaultPort = 6334
)

// QdrantDriver implements vector.Driver backed by a Qdrant collection over gRPC.
type QdrantDriver struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant server host (e.g., "localhost").
	Host string

	// Port is the Qdrant gRPC port. Defaults to DefaultPort if zero.
	Port int

	// APIKey authenticates against Qdrant Cloud. Optional for local instances.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// Collection is the name of the collection to use.
	// Defaults to DefaultCollection if empty.
	Collection string

	// Dimensions is the embedding vector size used when the collection
	// has to be created.
	Dimensions uint
}

// NewQdrantDriver creates a new Qdrant vector driver.
func NewQdrantDriver(c Config, logger *slog.Logger) (*QdrantDriver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	d := &QdrantDriver{
		client:     client,
		collection: collection,
		logger:     logger,
	}

	// Get or create the collection
	if err := d.ensureCollection(context.Background(), uint64(c.Dimensions)); err != nil {
		return nil, fmt.Errorf("ensuring collection %q: %w", collection, err)
	}

	logger.Info("connected to Qdrant",
		"host", c.Host,
		"port", port,
		"collection", collection,
	)

	return d, nil
}

// ensureCollection creates the collection if it does not exist yet.
func (d *QdrantDriver) ensureCollection(ctx context.Context, dimensions uint64) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}
	if exists {
		return nil
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	return nil
}

// Add stores documents with their embeddings.
func (d *QdrantDriver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(doc.ID)),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"doc_id":     doc.ID,
				"session_id": doc.SessionID,
			}),
		}
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant",
		"count", len(docs),
	)

	return nil
}

// Query finds the topK most similar documents to the given embedding.
func (d *QdrantDriver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	var results []vector.QueryResult
	for _, point := range points {
		result := vector.QueryResult{
			Document: documentFromPayload(point.GetPayload()),
			// Qdrant returns cosine similarity directly, higher = closer.
			Score: point.GetScore(),
		}
		if vec := point.GetVectors().GetVector(); vec != nil {
			result.Embedding = vec.GetData()
		}
		results = append(results, result)
	}

	d.logger.Debug("queried qdrant",
		"results", len(results),
	)

	return results, nil
}

// Get retrieves documents by their IDs.
func (d *QdrantDriver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(pointID(id))
	}

	points, err := d.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, point := range points {
		doc := documentFromPayload(point.GetPayload())
		if vec := point.GetVectors().GetVector(); vec != nil {
			doc.Embedding = vec.GetData()
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *QdrantDriver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(pointID(id))
	}

	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	d.logger.Debug("deleted documents from qdrant",
		"count", len(ids),
	)

	return nil
}

// Close releases resources held by the driver.
func (d *QdrantDriver) Close() error {
	return d.client.Close()
}

// pointID derives the UUID point ID Qdrant requires from a document ID.
// The original document ID travels in the point payload.
func pointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String()
}

// documentFromPayload rebuilds a Document from the stored point payload.
func documentFromPayload(payload map[string]*qdrant.Value) vector.Document {
	var doc vector.Document
	if v, ok := payload["doc_id"]; ok {
		doc.ID = v.GetStringValue()
	}
	if v, ok := payload["session_id"]; ok {
		doc.SessionID = v.GetStringValue()
	}
	return doc
}

// Ensure QdrantDriver implements the vector.Driver interface
var _ vector.Driver = (*QdrantDriver)(nil)

// Package qdrant provides a Qdrant-backed vector driver over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/vector"
)

const (
	// DefaultPort is the Qdrant gRPC port used when the address omits one.
	DefaultPort = 6334

	fieldID       = "doc_id"
	fieldContent  = "content"
	fieldMetadata = "metadata"
)

// pointNamespace seeds deterministic UUID v5 generation from document IDs.
// Qdrant point IDs must be UUIDs or integers, so string IDs are mapped
// through this namespace and the original ID kept in the payload.
var pointNamespace = uuid.MustParse("8d1f4f1e-2b63-4a0a-9c7d-61e05bb6cb3f")

// Driver implements vector.Driver using a Qdrant collection.
type Driver struct {
	client     *qdrant.Client
	collection string
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Addr is the server address as "host:port" or a URL. The scheme, when
	// present, selects TLS ("https"/"grpcs").
	Addr string

	// APIKey authenticates against Qdrant Cloud. Optional.
	APIKey string

	// CollectionName is the collection to store documents in.
	CollectionName string

	// Dimensions is the embedding vector size, required to create the
	// collection.
	Dimensions uint
}

// NewDriver connects to Qdrant and ensures the configured collection exists.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	if c.Addr == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}
	if c.CollectionName == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	host, port, useTLS, err := splitAddr(c.Addr)
	if err != nil {
		return nil, fmt.Errorf("parsing qdrant address %q: %w", c.Addr, err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	d := &Driver{
		client:     client,
		collection: c.CollectionName,
		dimensions: c.Dimensions,
		logger:     logger,
	}

	if err := d.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	logger.Info("connected to Qdrant",
		zap.String("host", host),
		zap.Int("port", port),
		zap.String("collection", c.CollectionName),
	)

	return d, nil
}

// splitAddr parses "host:port" with an optional scheme prefix.
func splitAddr(addr string) (host string, port int, useTLS bool, err error) {
	if scheme, rest, ok := strings.Cut(addr, "://"); ok {
		useTLS = scheme == "https" || scheme == "grpcs"
		addr = rest
	}
	addr = strings.TrimSuffix(addr, "/")

	host = addr
	port = DefaultPort
	if h, p, ok := strings.Cut(addr, ":"); ok {
		host = h
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port %q", p)
		}
	}
	if host == "" {
		return "", 0, false, fmt.Errorf("missing host")
	}
	return host, port, useTLS, nil
}

func (d *Driver) ensureCollection(ctx context.Context) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("checking collection %q: %w", d.collection, err)
	}
	if exists {
		return nil
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(d.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", d.collection, err)
	}
	return nil
}

// pointID maps a document ID onto a Qdrant-acceptable UUID.
func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

// Add stores documents with their embeddings. Existing points with the
// same ID are overwritten by the upsert.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		metadata := make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(doc.ID)),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				fieldID:       doc.ID,
				fieldContent:  doc.Content,
				fieldMetadata: metadata,
			}),
		})
	}

	if _, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting %d points to %q: %w", len(points), d.collection, err)
	}

	d.logger.Debug("added documents to qdrant",
		zap.Int("count", len(docs)),
	)

	return nil
}

// Query finds the topK most similar documents to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", d.collection, err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, pt := range points {
		results = append(results, vector.QueryResult{
			Document: payloadToDocument(pt.Payload),
			Score:    pt.Score,
		})
	}

	d.logger.Debug("queried qdrant",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get retrieves documents by their IDs. Missing IDs are skipped.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
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
		return nil, fmt.Errorf("getting %d points from %q: %w", len(ids), d.collection, err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, pt := range points {
		doc := payloadToDocument(pt.Payload)
		doc.Embedding = pt.Vectors.GetVector().GetDenseVector().GetData()
		docs = append(docs, doc)
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(pointID(id))
	}

	if _, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	}); err != nil {
		return fmt.Errorf("deleting %d points from %q: %w", len(ids), d.collection, err)
	}

	d.logger.Debug("deleted documents from qdrant",
		zap.Int("count", len(ids)),
	)

	return nil
}

// Close releases the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

// payloadToDocument rebuilds a Document from a point payload, preferring
// the original string ID stored alongside the content.
func payloadToDocument(payload map[string]*qdrant.Value) vector.Document {
	doc := vector.Document{
		ID:      payloadString(payload, fieldID),
		Content: payloadString(payload, fieldContent),
	}

	if v, ok := payload[fieldMetadata]; ok {
		if sv, ok := v.Kind.(*qdrant.Value_StructValue); ok && sv.StructValue != nil {
			metadata := make(map[string]string, len(sv.StructValue.Fields))
			for k, fv := range sv.StructValue.Fields {
				if s, ok := fv.Kind.(*qdrant.Value_StringValue); ok {
					metadata[k] = s.StringValue
				}
			}
			if len(metadata) > 0 {
				doc.Metadata = metadata
			}
		}
	}

	return doc
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if sv, ok := v.Kind.(*qdrant.Value_StringValue); ok {
		return sv.StringValue
	}
	return ""
}

package vector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore implements Store using Qdrant.
//
// Qdrant point ids must be UUIDs or integers, so chunk ids are mapped to
// deterministic UUIDv5 values; the original chunk id travels in the
// payload under "id".
type QdrantStore struct {
	client *qdrant.Client
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore creates a Qdrant client from an HTTP-style URL
// ("http://host:6333"); the gRPC port is derived as HTTP port + 1.
func NewQdrantStore(urlStr string) (*QdrantStore, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant URL: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := 6334
	if parsed.Port() != "" {
		if httpPort, err := strconv.Atoi(parsed.Port()); err == nil {
			port = httpPort + 1
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &QdrantStore{client: client}, nil
}

// pointID maps a chunk id to a stable qdrant point id.
func pointID(chunkID string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}

// EnsureCollection creates the collection if missing, or validates the
// configured dimension of an existing one.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, dims int) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dims),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	config := info.GetConfig()
	if config == nil || config.GetParams() == nil {
		return fmt.Errorf("collection %s has no config", collection)
	}
	params := config.GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return fmt.Errorf("collection %s has no vector params", collection)
	}
	if int(params.GetSize()) != dims {
		return fmt.Errorf("collection %s dimension mismatch: expected %d, got %d", collection, dims, params.GetSize())
	}
	return nil
}

// Upsert inserts or replaces points.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      pointID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// DeleteByIDs removes points by chunk id.
func (s *QdrantStore) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	qdrantIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qdrantIDs = append(qdrantIDs, pointID(id))
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(qdrantIDs...),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// DeleteByFilter removes every point matching the filter. The zero filter
// matches all points.
func (s *QdrantStore) DeleteByFilter(ctx context.Context, collection string, f Filter) error {
	filter := buildFilter(f)
	if filter == nil {
		filter = &qdrant.Filter{}
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

// Query performs filtered nearest-neighbor retrieval.
func (s *QdrantStore) Query(ctx context.Context, collection string, vec []float32, k int, f Filter, threshold float32) ([]Scored, error) {
	limit := uint64(k)
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if threshold > 0 {
		req.ScoreThreshold = &threshold
	}
	if filter := buildFilter(f); filter != nil {
		req.Filter = filter
	}

	scored, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	results := make([]Scored, 0, len(scored))
	for _, point := range scored {
		payload := convertPayload(point.GetPayload())
		id, _ := payload["id"].(string)
		results = append(results, Scored{
			ID:      id,
			Score:   point.GetScore(),
			Payload: payload,
		})
	}
	return results, nil
}

// buildFilter converts a Filter into qdrant match conditions.
// Returns nil for the zero filter.
func buildFilter(f Filter) *qdrant.Filter {
	var must []*qdrant.Condition
	if f.Project != "" {
		must = append(must, qdrant.NewMatch("project", f.Project))
	}
	if f.File != "" {
		must = append(must, qdrant.NewMatch("file", f.File))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// convertPayload converts a qdrant payload to plain Go values.
func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

func convertValue(v *qdrant.Value) any {
	switch val := v.GetKind().(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, 0, len(val.ListValue.GetValues()))
		for _, item := range val.ListValue.GetValues() {
			list = append(list, convertValue(item))
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayload(val.StructValue.GetFields())
	default:
		return nil
	}
}

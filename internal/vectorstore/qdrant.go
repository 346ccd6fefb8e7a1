package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

const qdrantPayloadContentKey = "__content__"

// QdrantStore implements Driver against a single shared Qdrant collection,
// isolated per tenant by a project_id payload filter on every point (same
// invariant as PgvectorStore's project_id column — the driver boundary
// does not change the tenancy model).
type QdrantStore struct {
	client         *qdrant.Client
	collectionName string
}

func NewQdrantStore(ctx context.Context, addr string, dimensions int) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: addr, Port: 6334})
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}

	const collection = "deskwise_documents"
	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("qdrant collection check: %w", err)
	}
	if !exists {
		if err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return nil, fmt.Errorf("qdrant create collection: %w", err)
		}
	}

	return &QdrantStore{client: client, collectionName: collection}, nil
}

func (s *QdrantStore) Kind() string { return "qdrant" }

func (s *QdrantStore) UpsertBatch(ctx context.Context, projectID string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, d := range docs {
		payload := map[string]any{
			"project_id":            projectID,
			"collection_id":         d.CollectionID,
			qdrantPayloadContentKey: d.Content,
		}
		for k, v := range d.Metadata {
			payload[k] = v
		}
		payloadValue, err := qdrant.TryValueMap(payload)
		if err != nil {
			return fmt.Errorf("qdrant payload for %s: %w", d.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(d.ID),
			Vectors: qdrant.NewVectors(d.Embedding...),
			Payload: payloadValue,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *QdrantStore) tenantFilter(projectID string, filter Filter) *qdrant.Filter {
	must := []*qdrant.Condition{
		qdrant.NewMatch("project_id", projectID),
	}
	if filter.CollectionID != "" {
		must = append(must, qdrant.NewMatch("collection_id", filter.CollectionID))
	}
	return &qdrant.Filter{Must: must}
}

// KNN applies the project_id and collection_id predicates only;
// filter.Metadata is not applied to the Qdrant query.
func (s *QdrantStore) KNN(ctx context.Context, projectID string, vector []float32, k int, filter Filter) ([]ScoredDocument, error) {
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         s.tenantFilter(projectID, filter),
		Limit:          qptr(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	out := make([]ScoredDocument, 0, len(scored))
	for _, p := range scored {
		d := Document{ID: p.GetId().GetUuid(), ProjectID: projectID}
		payload := p.GetPayload()
		if payload != nil {
			if cv, ok := payload[qdrantPayloadContentKey]; ok {
				d.Content = cv.GetStringValue()
			}
			if cv, ok := payload["collection_id"]; ok {
				d.CollectionID = cv.GetStringValue()
			}
		}
		out = append(out, ScoredDocument{Document: d, Score: float64(p.GetScore())})
	}
	return out, nil
}

func (s *QdrantStore) Delete(ctx context.Context, projectID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collectionName,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	return err
}

func (s *QdrantStore) Count(ctx context.Context, projectID string) (int, error) {
	result, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collectionName,
		Filter:         s.tenantFilter(projectID, Filter{}),
	})
	if err != nil {
		return 0, err
	}
	return int(result), nil
}

func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.HealthCheck(ctx)
	return err
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func qptr(v uint64) *uint64 { return &v }

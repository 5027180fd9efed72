// Package qdrant adapts github.com/qdrant/go-client into the
// types/interfaces.VectorStore contract, grounded on the teacher's
// internal/application/repository/retriever/qdrant package shape (a
// qdrantRepository struct wrapping *qdrant.Client plus a sync.Map of
// lazily-initialized collections).
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/logger"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

type store struct {
	client      *qdrant.Client
	initialized sync.Map // collection name -> bool
}

// New connects to qdrantURL (e.g. "http://127.0.0.1:6333") and returns a
// VectorStore (spec.md §1 "the vector store is consumed as a named-collection
// point store with payload filters and scroll/search/upsert/delete").
func New(qdrantURL string) (interfaces.VectorStore, error) {
	u, err := url.Parse(qdrantURL)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		host = "127.0.0.1"
	}
	port := 6334
	if p := u.Port(); p != "" {
		if parsed, perr := strconv.Atoi(p); perr == nil {
			port = parsed
		}
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("new qdrant client: %w", err)
	}
	return &store{client: client}, nil
}

// EnsureCollection creates the collection with a default-named dense vector
// of dim size if it does not already exist, caching the result so repeated
// upserts don't round-trip a CollectionExists check (teacher's
// initializedCollections sync.Map pattern).
func (s *store) EnsureCollection(ctx context.Context, collection string, dim int) error {
	if _, ok := s.initialized.Load(collection); ok {
		return nil
	}
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, "check qdrant collection", err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return apperrors.Wrap(apperrors.KindUpstreamUnavailable, "create qdrant collection", err)
		}
	}
	s.initialized.Store(collection, true)
	return nil
}

func (s *store) Upsert(ctx context.Context, collection string, points []interfaces.Point) error {
	if len(points) == 0 {
		return nil
	}
	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		vectors := toVectors(p)
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: vectors,
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qpoints,
	})
	if err != nil {
		logger.Errorf(ctx, "qdrant upsert into %s failed: %v", collection, err)
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, "qdrant upsert", err)
	}
	return nil
}

func toVectors(p interfaces.Point) *qdrant.Vectors {
	if len(p.NamedVectors) > 0 {
		named := make(map[string]*qdrant.Vector, len(p.NamedVectors))
		for name, vec := range p.NamedVectors {
			named[name] = qdrant.NewVector(vec...)
		}
		return qdrant.NewVectorsMap(named)
	}
	return qdrant.NewVectors(p.Vector...)
}

func (s *store) Search(ctx context.Context, req interfaces.SearchRequest) ([]interfaces.ScoredPoint, error) {
	limit := uint64(req.Limit)
	if limit == 0 {
		limit = 10
	}
	query := &qdrant.QueryPoints{
		CollectionName: req.Collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if req.ScoreThreshold > 0 {
		threshold := float32(req.ScoreThreshold)
		query.ScoreThreshold = &threshold
	}
	if req.Filter != nil {
		query.Filter = toQdrantFilter(req.Filter)
	}
	resp, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamUnavailable, "qdrant search", err)
	}
	out := make([]interfaces.ScoredPoint, 0, len(resp))
	for _, hit := range resp {
		out = append(out, interfaces.ScoredPoint{
			Point: interfaces.Point{
				ID:      idToString(hit.Id),
				Payload: qdrant.NewValueMap(hit.Payload).GetStructValue().AsMap(),
			},
			Score: float64(hit.Score),
		})
	}
	return out, nil
}

func (s *store) Scroll(ctx context.Context, req interfaces.ScrollRequest) ([]interfaces.Point, error) {
	limit := uint32(req.Limit)
	if limit == 0 {
		limit = 100
	}
	scroll := &qdrant.ScrollPoints{
		CollectionName: req.Collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if req.Filter != nil {
		scroll.Filter = toQdrantFilter(req.Filter)
	}
	resp, err := s.client.Scroll(ctx, scroll)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamUnavailable, "qdrant scroll", err)
	}
	out := make([]interfaces.Point, 0, len(resp))
	for _, pt := range resp {
		out = append(out, interfaces.Point{
			ID:      idToString(pt.Id),
			Payload: qdrant.NewValueMap(pt.Payload).GetStructValue().AsMap(),
		})
	}
	return out, nil
}

func (s *store) Retrieve(ctx context.Context, collection string, ids []string) ([]interfaces.Point, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}
	resp, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamUnavailable, "qdrant retrieve", err)
	}
	out := make([]interfaces.Point, 0, len(resp))
	for _, pt := range resp {
		out = append(out, interfaces.Point{
			ID:      idToString(pt.Id),
			Payload: qdrant.NewValueMap(pt.Payload).GetStructValue().AsMap(),
		})
	}
	return out, nil
}

func (s *store) ListCollections(ctx context.Context) ([]string, error) {
	resp, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamUnavailable, "qdrant list collections", err)
	}
	return resp, nil
}

func (s *store) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, "qdrant delete", err)
	}
	return nil
}

func (s *store) DeleteByFilter(ctx context.Context, collection string, filter interfaces.Filter) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(toQdrantFilter(&filter)),
	})
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, "qdrant delete by filter", err)
	}
	return nil
}

func toQdrantFilter(f *interfaces.Filter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	var must, mustNot []*qdrant.Condition
	for _, c := range f.Must {
		must = append(must, toQdrantCondition(c))
	}
	for _, c := range f.MustNot {
		mustNot = append(mustNot, toQdrantCondition(c))
	}
	return &qdrant.Filter{Must: must, MustNot: mustNot}
}

func toQdrantCondition(c interfaces.Condition) *qdrant.Condition {
	if c.IsNullOrMissing {
		return qdrant.NewIsNullCondition(c.Key)
	}
	switch v := c.MatchValue.(type) {
	case string:
		return qdrant.NewMatch(c.Key, v)
	case bool:
		return qdrant.NewMatchBool(c.Key, v)
	case int:
		return qdrant.NewMatchInt(c.Key, int64(v))
	case int64:
		return qdrant.NewMatchInt(c.Key, v)
	default:
		return qdrant.NewMatch(c.Key, fmt.Sprintf("%v", v))
	}
}

func idToString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return strconv.FormatUint(v.Num, 10)
	default:
		return ""
	}
}

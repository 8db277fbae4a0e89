// Package qdrant provides a Qdrant-backed vector.Collection.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/luminant-labs/ragline/internal/vector"
)

const (
	payloadContent    = "content"
	payloadFilename   = "filename"
	payloadChunkIndex = "chunk_index"
	payloadSource     = "source"
)

// Connect opens a gRPC connection to a Qdrant node. The connection is
// shared by all collections created against it.
func Connect(host string, port int) (*grpc.ClientConn, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return conn, nil
}

// Collection implements vector.Collection on a single Qdrant collection.
type Collection struct {
	collections pb.CollectionsClient
	points      pb.PointsClient
	name        string
	dimension   uint64
}

// NewCollection binds to (and if necessary creates) the named Qdrant
// collection with cosine distance.
func NewCollection(ctx context.Context, conn *grpc.ClientConn, name string, dimension int) (*Collection, error) {
	c := &Collection{
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		name:        name,
		dimension:   uint64(dimension),
	}
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collection) ensure(ctx context.Context) error {
	resp, err := c.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: c.name})
	if err != nil {
		return fmt.Errorf("qdrant exists %s: %w", c.name, err)
	}
	if resp.GetResult().GetExists() {
		return nil
	}
	return c.create(ctx)
}

func (c *Collection) create(ctx context.Context) error {
	_, err := c.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: c.name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     c.dimension,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant create %s: %w", c.name, err)
	}
	return nil
}

func (c *Collection) Upsert(ctx context.Context, docs []vector.Document) error {
	points := make([]*pb.PointStruct, len(docs))
	for i, d := range docs {
		payload := map[string]*pb.Value{
			payloadContent:    {Kind: &pb.Value_StringValue{StringValue: d.Content}},
			payloadSource:     {Kind: &pb.Value_StringValue{StringValue: d.Metadata.Source}},
			payloadFilename:   {Kind: &pb.Value_StringValue{StringValue: d.Metadata.Filename}},
			payloadChunkIndex: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(d.Metadata.ChunkIndex)}},
		}
		for k, v := range d.Metadata.Extra {
			payload["extra_"+k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: d.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: d.Vector}}},
			Payload: payload,
		}
	}

	_, err := c.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: c.name,
		Points:         points,
	})
	return err
}

func (c *Collection) Search(ctx context.Context, vec []float32, topK int) ([]vector.Hit, error) {
	resp, err := c.points.Search(ctx, &pb.SearchPoints{
		CollectionName: c.name,
		Vector:         vec,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, err
	}

	hits := make([]vector.Hit, len(resp.Result))
	for i, pt := range resp.Result {
		meta := vector.Metadata{}
		content := ""
		for k, v := range pt.Payload {
			switch k {
			case payloadContent:
				content = v.GetStringValue()
			case payloadSource:
				meta.Source = v.GetStringValue()
			case payloadFilename:
				meta.Filename = v.GetStringValue()
			case payloadChunkIndex:
				meta.ChunkIndex = int(v.GetIntegerValue())
			default:
				if len(k) > 6 && k[:6] == "extra_" {
					if meta.Extra == nil {
						meta.Extra = make(map[string]string)
					}
					meta.Extra[k[6:]] = v.GetStringValue()
				}
			}
		}
		hits[i] = vector.Hit{
			Document: vector.Document{
				ID:       pt.Id.GetUuid(),
				Content:  content,
				Metadata: meta,
			},
			// Qdrant reports cosine similarity; the store wants distance.
			Distance: 1 - pt.Score,
		}
	}
	return hits, nil
}

func (c *Collection) Count(ctx context.Context) (uint64, error) {
	exact := true
	resp, err := c.points.Count(ctx, &pb.CountPoints{
		CollectionName: c.name,
		Exact:          &exact,
	})
	if err != nil {
		return 0, err
	}
	return resp.GetResult().GetCount(), nil
}

// Reset drops and recreates the collection. Dropping a missing collection
// is not an error, which keeps Reset idempotent.
func (c *Collection) Reset(ctx context.Context) error {
	if _, err := c.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: c.name}); err != nil {
		return fmt.Errorf("qdrant delete %s: %w", c.name, err)
	}
	return c.create(ctx)
}

var _ vector.Collection = (*Collection)(nil)

package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadIDField stores the original node_id in the point payload, since
// Qdrant point ids must be UUIDs or positive integers.
const payloadIDField = "_original_node_id"

// payloadTextField stores the row text alongside the embedding.
const payloadTextField = "_text"

// QdrantGateway is a Gateway backed by a Qdrant collection addressed over
// gRPC. Dimension mismatch is detected by inspecting the collection's
// configured vector size against the configured one.
type QdrantGateway struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
}

// NewQdrantGateway connects to Qdrant via gRPC and ensures the collection
// exists with the configured dimension. The DSN is a URL such as
// http://host:6334: host defaults to localhost, port to 6334, an https
// scheme enables TLS and an api_key query parameter sets the API key.
func NewQdrantGateway(ctx context.Context, dsn, collection string, dimensions int, metric string) (*QdrantGateway, error) {
	if collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant port: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	g := &QdrantGateway{client: client, collection: collection, dimension: dimensions, metric: strings.ToLower(strings.TrimSpace(metric))}
	if err := g.checkOrCreateCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return g, nil
}

func (g *QdrantGateway) checkOrCreateCollection(ctx context.Context) error {
	exists, err := g.client.CollectionExists(ctx, g.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		info, err := g.client.GetCollectionInfo(ctx, g.collection)
		if err != nil {
			return fmt.Errorf("get collection info: %w", err)
		}
		existing := collectionVectorSize(info)
		if existing > 0 && g.dimension > 0 && existing != g.dimension {
			return fmt.Errorf("%w: collection %q declares dimension %d, configured embed_dim is %d",
				ErrDimensionMismatch, g.collection, existing, g.dimension)
		}
		return nil
	}
	if g.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0 to create collection %q", g.collection)
	}
	var distance qdrant.Distance
	switch g.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	default:
		distance = qdrant.Distance_Cosine
	}
	err = g.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: g.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(g.dimension),
			Distance: distance,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func collectionVectorSize(info *qdrant.CollectionInfo) int {
	if info == nil || info.GetConfig() == nil {
		return 0
	}
	params := info.GetConfig().GetParams()
	if params == nil || params.GetVectorsConfig() == nil {
		return 0
	}
	if single := params.GetVectorsConfig().GetParams(); single != nil {
		return int(single.GetSize())
	}
	return 0
}

func nodeIDToPointID(nodeID string) (qdrant.PointId, bool) {
	if _, err := uuid.Parse(nodeID); err == nil {
		return *qdrant.NewIDUUID(nodeID), false
	}
	derived := uuid.NewSHA1(uuid.NameSpaceOID, []byte(nodeID)).String()
	return *qdrant.NewIDUUID(derived), true
}

func (g *QdrantGateway) Upsert(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(rows))
	for _, r := range rows {
		pointID, derived := nodeIDToPointID(r.NodeID)
		payload := make(map[string]any, len(r.Metadata)+2)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload[payloadTextField] = r.Text
		if derived {
			payload[payloadIDField] = r.NodeID
		}
		vec := make([]float32, len(r.Embedding))
		copy(vec, r.Embedding)
		points = append(points, &qdrant.PointStruct{
			Id:      &pointID,
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := g.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: g.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (g *QdrantGateway) Delete(ctx context.Context, nodeIDs []string) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	ids := make([]*qdrant.PointId, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		pid, _ := nodeIDToPointID(id)
		ids = append(ids, &pid)
	}
	_, err := g.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: g.collection,
		Points:         qdrant.NewPointsSelector(ids...),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

// ListNodeIDsByRepo scrolls the collection filtering on the repo payload
// field, since Qdrant has no native "list distinct ids matching filter"
// primitive beyond scroll pagination.
func (g *QdrantGateway) ListNodeIDsByRepo(ctx context.Context, repos []string) ([]string, error) {
	if len(repos) == 0 {
		return nil, nil
	}
	must := make([]*qdrant.Condition, 0, len(repos))
	for _, r := range repos {
		must = append(must, qdrant.NewMatch("repo", r))
	}
	filter := &qdrant.Filter{Should: must}
	return g.scrollIDs(ctx, filter)
}

// ListNodeIDsByPrefix scrolls and filters client-side since Qdrant payload
// filters don't support prefix matching on arbitrary strings out of the box.
func (g *QdrantGateway) ListNodeIDsByPrefix(ctx context.Context, prefixes []string) ([]string, error) {
	if len(prefixes) == 0 {
		return nil, nil
	}
	all, err := g.scrollIDs(ctx, nil)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range all {
		for _, p := range prefixes {
			if strings.HasPrefix(id, p) {
				out = append(out, id)
				break
			}
		}
	}
	return out, nil
}

func (g *QdrantGateway) scrollIDs(ctx context.Context, filter *qdrant.Filter) ([]string, error) {
	var out []string
	var offset *qdrant.PointId
	for {
		limit := uint32(256)
		resp, err := g.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: g.collection,
			Filter:         filter,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll: %w", err)
		}
		if len(resp) == 0 {
			break
		}
		for _, p := range resp {
			nodeID := p.Id.GetUuid()
			if p.Payload != nil {
				if v, ok := p.Payload[payloadIDField]; ok {
					nodeID = v.GetStringValue()
				}
			}
			out = append(out, nodeID)
		}
		if len(resp) < int(limit) {
			break
		}
		last := resp[len(resp)-1].Id
		offset = last
	}
	return out, nil
}

func (g *QdrantGateway) Dimension() int { return g.dimension }

func (g *QdrantGateway) Close() error {
	return g.client.Close()
}

var _ Gateway = (*QdrantGateway)(nil)

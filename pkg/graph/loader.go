package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// LoadError reports the exact batch that failed. Batches already committed
// before the failure stay committed; a retried full run reconciles them
// because every write is a merge-by-key.
type LoadError struct {
	Kind  string // "node" or "relationship"
	Group string // node label or relationship group
	Batch int    // zero-based batch index within the group
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s batch %d for %s failed: %v", e.Kind, e.Batch, e.Group, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader applies a transformed graph model to the store in bounded-size
// batches of idempotent merges.
type Loader struct {
	client    *Client
	logger    ectologger.Logger
	batchSize int
}

// NewLoader creates a new batch loader. batchSize bounds the number of
// records merged in a single write transaction.
func NewLoader(client *Client, logger ectologger.Logger, batchSize int) *Loader {
	return &Loader{
		client:    client,
		logger:    logger,
		batchSize: batchSize,
	}
}

// LoadNodes merges all node records, grouped by label and partitioned into
// consecutive batches. A node that already exists gets its properties
// overwritten; re-running the same input yields the same final node set.
func (l *Loader) LoadNodes(ctx context.Context, nodes []models.Node) (models.NodeLoadStats, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Loader.LoadNodes")
	defer span.End()

	stats := models.NodeLoadStats{Counts: make(map[models.Label]int)}
	grouped := groupNodes(nodes)

	for _, label := range orderedLabels(grouped) {
		group := grouped[label]
		batches := chunk(group, l.batchSize)

		for i, batch := range batches {
			start := time.Now()
			if err := l.writeNodeBatch(ctx, label, batch); err != nil {
				return stats, &LoadError{Kind: "node", Group: string(label), Batch: i, Err: err}
			}
			metrics.LoadBatchDuration.WithLabelValues("node").Observe(time.Since(start).Seconds())
			metrics.LoadBatchesTotal.WithLabelValues("node").Inc()
		}

		stats.Counts[label] = len(group)
		stats.Batches += len(batches)
		metrics.NodesWrittenTotal.WithLabelValues(string(label)).Add(float64(len(group)))
	}

	l.logger.WithContext(ctx).WithFields(map[string]any{
		"nodes":   len(nodes),
		"batches": stats.Batches,
	}).Info("Loaded nodes into graph")

	return stats, nil
}

// LoadRelationships merges all relationship records, grouped by (type, from
// label, to label) and partitioned into consecutive batches. Endpoints are
// MATCHed, never created: a relationship whose endpoint is missing is silently
// skipped by the store rather than conjuring a node. Call only after LoadNodes
// has completed.
func (l *Loader) LoadRelationships(ctx context.Context, rels []models.Relationship) (models.RelationshipLoadStats, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Loader.LoadRelationships")
	defer span.End()

	stats := models.RelationshipLoadStats{Counts: make(map[models.RelationshipType]int)}
	groups, order := groupRelationships(rels)

	for _, key := range order {
		group := groups[key]
		batches := chunk(group, l.batchSize)

		for i, batch := range batches {
			start := time.Now()
			if err := l.writeRelationshipBatch(ctx, key, batch); err != nil {
				return stats, &LoadError{Kind: "relationship", Group: key.String(), Batch: i, Err: err}
			}
			metrics.LoadBatchDuration.WithLabelValues("relationship").Observe(time.Since(start).Seconds())
			metrics.LoadBatchesTotal.WithLabelValues("relationship").Inc()
		}

		stats.Counts[key.Type] += len(group)
		stats.Batches += len(batches)
		metrics.RelationshipsWrittenTotal.WithLabelValues(string(key.Type)).Add(float64(len(group)))
	}

	l.logger.WithContext(ctx).WithFields(map[string]any{
		"relationships": len(rels),
		"batches":       stats.Batches,
	}).Info("Loaded relationships into graph")

	return stats, nil
}

// writeNodeBatch applies one node batch as a single write transaction.
func (l *Loader) writeNodeBatch(ctx context.Context, label models.Label, batch []models.Node) error {
	batchData := make([]map[string]any, len(batch))
	for i, node := range batch {
		props := map[string]any{"id": node.Key}
		for k, v := range node.Props {
			props[k] = v
		}
		batchData[i] = props
	}

	cypher := fmt.Sprintf(`
		UNWIND $batch AS props
		MERGE (n:%s {id: props.id})
		SET n = props
	`, sanitizeLabel(string(label)))

	_, err := l.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"batch": batchData})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}

// writeRelationshipBatch applies one relationship batch as a single write
// transaction. MERGE on the bare type between the matched endpoints keeps
// re-runs from creating duplicate parallel edges.
func (l *Loader) writeRelationshipBatch(ctx context.Context, key models.RelationshipGroup, batch []models.Relationship) error {
	batchData := make([]map[string]any, len(batch))
	for i, rel := range batch {
		props := map[string]any{}
		for k, v := range rel.Props {
			props[k] = v
		}
		batchData[i] = map[string]any{
			"from_id": rel.From.Key,
			"to_id":   rel.To.Key,
			"props":   props,
		}
	}

	cypher := fmt.Sprintf(`
		UNWIND $batch AS data
		MATCH (from:%s {id: data.from_id})
		MATCH (to:%s {id: data.to_id})
		MERGE (from)-[r:%s]->(to)
		SET r += data.props
	`, sanitizeLabel(string(key.FromLabel)), sanitizeLabel(string(key.ToLabel)), sanitizeLabel(string(key.Type)))

	_, err := l.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"batch": batchData})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}

// groupNodes groups nodes by label, preserving input order within each group.
func groupNodes(nodes []models.Node) map[models.Label][]models.Node {
	grouped := make(map[models.Label][]models.Node)
	for _, n := range nodes {
		grouped[n.Label] = append(grouped[n.Label], n)
	}
	return grouped
}

// orderedLabels returns the labels present in the grouping, in the canonical
// load order. Batch indexes stay stable across runs so a failing batch can be
// named reproducibly.
func orderedLabels(grouped map[models.Label][]models.Node) []models.Label {
	var order []models.Label
	for _, label := range models.NodeLabels {
		if _, ok := grouped[label]; ok {
			order = append(order, label)
		}
	}
	return order
}

// groupRelationships groups relationships by (type, from label, to label),
// returning group keys in first-appearance order.
func groupRelationships(rels []models.Relationship) (map[models.RelationshipGroup][]models.Relationship, []models.RelationshipGroup) {
	grouped := make(map[models.RelationshipGroup][]models.Relationship)
	var order []models.RelationshipGroup
	for _, r := range rels {
		key := models.RelationshipGroup{Type: r.Type, FromLabel: r.From.Label, ToLabel: r.To.Label}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], r)
	}
	return grouped, order
}

// chunk splits records into consecutive batches of at most size records.
func chunk[T any](records []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	var batches [][]T
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}

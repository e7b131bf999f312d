// Package transformer reshapes extracted relational rows into the in-memory
// graph model. It performs no I/O: the same input tables always produce the
// same node and relationship sets.
package transformer

import (
	"strconv"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// Transformer builds graph models from source tables.
type Transformer struct {
	logger ectologger.Logger
}

// New creates a new transformer
func New(logger ectologger.Logger) *Transformer {
	return &Transformer{logger: logger}
}

// Transform produces the node and relationship sets for one extraction.
// Relationships whose endpoints were not produced from the extracted tables
// (orphaned foreign keys) are dropped and reported as warnings; referential
// integrity is assumed at extraction time, not re-validated strictly.
func (t *Transformer) Transform(tables *models.SourceTables) (*models.GraphModel, []models.ReferentialWarning) {
	model := &models.GraphModel{}

	for _, c := range tables.Customers {
		model.Nodes = append(model.Nodes, models.Node{
			Label: models.LabelCustomer,
			Key:   key(c.ID),
			Props: map[string]any{
				"name":     c.Name,
				"joinDate": c.JoinDate.UTC().Format(timestampLayout),
			},
		})
	}

	for _, c := range tables.Categories {
		model.Nodes = append(model.Nodes, models.Node{
			Label: models.LabelCategory,
			Key:   key(c.ID),
			Props: map[string]any{"name": c.Name},
		})
	}

	for _, p := range tables.Products {
		model.Nodes = append(model.Nodes, models.Node{
			Label: models.LabelProduct,
			Key:   key(p.ID),
			Props: map[string]any{
				"name":  p.Name,
				"price": p.Price,
			},
		})
	}

	for _, o := range tables.Orders {
		model.Nodes = append(model.Nodes, models.Node{
			Label: models.LabelOrder,
			Key:   key(o.ID),
			Props: map[string]any{
				"timestamp": o.Timestamp.UTC().Format(timestampLayout),
			},
		})
	}

	for _, e := range tables.Events {
		model.Nodes = append(model.Nodes, models.Node{
			Label: models.LabelEvent,
			Key:   key(e.ID),
			Props: map[string]any{
				"eventType": e.EventType,
				"timestamp": e.Timestamp.UTC().Format(timestampLayout),
			},
		})
	}

	index := make(map[models.NodeRef]struct{}, len(model.Nodes))
	for _, n := range model.Nodes {
		index[n.Ref()] = struct{}{}
	}

	var warnings []models.ReferentialWarning
	emit := func(rel models.Relationship) {
		for _, ref := range []models.NodeRef{rel.From, rel.To} {
			if _, ok := index[ref]; !ok {
				warning := models.ReferentialWarning{Type: rel.Type, From: rel.From, To: rel.To, Missing: ref}
				warnings = append(warnings, warning)
				t.logger.WithFields(map[string]any{
					"rel_type": string(rel.Type),
					"from":     rel.From.String(),
					"to":       rel.To.String(),
					"missing":  ref.String(),
				}).Warn("Dropping relationship with orphaned reference")
				metrics.ReferentialWarningsTotal.WithLabelValues(string(rel.Type)).Inc()
				return
			}
		}
		model.Relationships = append(model.Relationships, rel)
	}

	for _, o := range tables.Orders {
		emit(models.Relationship{
			Type: models.RelPlaced,
			From: models.NodeRef{Label: models.LabelCustomer, Key: key(o.CustomerID)},
			To:   models.NodeRef{Label: models.LabelOrder, Key: key(o.ID)},
		})
	}

	for _, item := range tables.OrderItems {
		emit(models.Relationship{
			Type:  models.RelContains,
			From:  models.NodeRef{Label: models.LabelOrder, Key: key(item.OrderID)},
			To:    models.NodeRef{Label: models.LabelProduct, Key: key(item.ProductID)},
			Props: map[string]any{"quantity": item.Quantity},
		})
	}

	for _, p := range tables.Products {
		if !p.CategoryID.Valid {
			continue
		}
		emit(models.Relationship{
			Type: models.RelBelongsTo,
			From: models.NodeRef{Label: models.LabelProduct, Key: key(p.ID)},
			To:   models.NodeRef{Label: models.LabelCategory, Key: key(p.CategoryID.Int64)},
		})
	}

	for _, e := range tables.Events {
		emit(models.Relationship{
			Type: models.RelDid,
			From: models.NodeRef{Label: models.LabelCustomer, Key: key(e.CustomerID)},
			To:   models.NodeRef{Label: models.LabelEvent, Key: key(e.ID)},
		})
		emit(models.Relationship{
			Type: models.RelOn,
			From: models.NodeRef{Label: models.LabelEvent, Key: key(e.ID)},
			To:   models.NodeRef{Label: models.LabelProduct, Key: key(e.ProductID)},
		})
	}

	return model, warnings
}

// key renders a source primary key as the graph node's string identifier.
func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

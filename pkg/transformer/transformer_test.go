package transformer

import (
	"database/sql"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func fixtureTables() *models.SourceTables {
	join := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	orderTS := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	eventTS := time.Date(2024, 5, 2, 9, 15, 0, 0, time.UTC)

	return &models.SourceTables{
		Customers: []models.Customer{
			{ID: 1, Name: "Alice", JoinDate: join},
			{ID: 2, Name: "Bob", JoinDate: join.AddDate(0, 1, 0)},
		},
		Categories: []models.Category{
			{ID: 10, Name: "Books"},
		},
		Products: []models.Product{
			{ID: 100, Name: "Novel", Price: 12.99, CategoryID: sql.NullInt64{Int64: 10, Valid: true}},
			{ID: 101, Name: "Atlas", Price: 34.50, CategoryID: sql.NullInt64{Int64: 10, Valid: true}},
		},
		Orders: []models.Order{
			{ID: 1000, CustomerID: 1, Timestamp: orderTS},
		},
		OrderItems: []models.OrderItem{
			{OrderID: 1000, ProductID: 100, Quantity: 2},
			{OrderID: 1000, ProductID: 101, Quantity: 1},
		},
		Events: []models.Event{
			{ID: 5000, CustomerID: 2, ProductID: 101, EventType: "view", Timestamp: eventTS},
		},
	}
}

func countNodes(model *models.GraphModel) map[models.Label]int {
	counts := make(map[models.Label]int)
	for _, n := range model.Nodes {
		counts[n.Label]++
	}
	return counts
}

func countRelationships(model *models.GraphModel) map[models.RelationshipType]int {
	counts := make(map[models.RelationshipType]int)
	for _, r := range model.Relationships {
		counts[r.Type]++
	}
	return counts
}

func TestTransform_FullLoad(t *testing.T) {
	model, warnings := New(testLogger()).Transform(fixtureTables())

	assert.Empty(t, warnings)
	assert.Equal(t, map[models.Label]int{
		models.LabelCustomer: 2,
		models.LabelCategory: 1,
		models.LabelProduct:  2,
		models.LabelOrder:    1,
		models.LabelEvent:    1,
	}, countNodes(model))
	assert.Equal(t, map[models.RelationshipType]int{
		models.RelPlaced:    1,
		models.RelContains:  2,
		models.RelBelongsTo: 2,
		models.RelDid:       1,
		models.RelOn:        1,
	}, countRelationships(model))
}

func TestTransform_NodeProperties(t *testing.T) {
	model, _ := New(testLogger()).Transform(fixtureTables())

	byRef := make(map[models.NodeRef]models.Node)
	for _, n := range model.Nodes {
		byRef[n.Ref()] = n
	}

	customer, ok := byRef[models.NodeRef{Label: models.LabelCustomer, Key: "1"}]
	require.True(t, ok)
	assert.Equal(t, "Alice", customer.Props["name"])
	assert.Equal(t, "2024-03-10T08:00:00Z", customer.Props["joinDate"])

	product, ok := byRef[models.NodeRef{Label: models.LabelProduct, Key: "100"}]
	require.True(t, ok)
	assert.Equal(t, 12.99, product.Props["price"])

	event, ok := byRef[models.NodeRef{Label: models.LabelEvent, Key: "5000"}]
	require.True(t, ok)
	assert.Equal(t, "view", event.Props["eventType"])
	assert.Equal(t, "2024-05-02T09:15:00Z", event.Props["timestamp"])
}

func TestTransform_ContainsQuantity(t *testing.T) {
	model, _ := New(testLogger()).Transform(fixtureTables())

	var quantities []int64
	for _, r := range model.Relationships {
		if r.Type == models.RelContains {
			quantities = append(quantities, r.Props["quantity"].(int64))
		}
	}
	assert.ElementsMatch(t, []int64{2, 1}, quantities)
}

func TestTransform_Deterministic(t *testing.T) {
	tr := New(testLogger())

	first, _ := tr.Transform(fixtureTables())
	second, _ := tr.Transform(fixtureTables())

	assert.ElementsMatch(t, first.Nodes, second.Nodes)
	assert.ElementsMatch(t, first.Relationships, second.Relationships)
}

func TestTransform_OrphanPolicy(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(tables *models.SourceTables)
		droppedType  models.RelationshipType
		wantWarnings int
	}{
		{
			name: "order item referencing missing product",
			mutate: func(tables *models.SourceTables) {
				tables.OrderItems = append(tables.OrderItems, models.OrderItem{OrderID: 1000, ProductID: 999, Quantity: 1})
			},
			droppedType:  models.RelContains,
			wantWarnings: 1,
		},
		{
			name: "order placed by missing customer",
			mutate: func(tables *models.SourceTables) {
				tables.Orders = append(tables.Orders, models.Order{ID: 1001, CustomerID: 999, Timestamp: time.Now()})
			},
			droppedType:  models.RelPlaced,
			wantWarnings: 1,
		},
		{
			name: "product filed under missing category",
			mutate: func(tables *models.SourceTables) {
				tables.Products = append(tables.Products, models.Product{
					ID: 102, Name: "Globe", Price: 5,
					CategoryID: sql.NullInt64{Int64: 999, Valid: true},
				})
			},
			droppedType:  models.RelBelongsTo,
			wantWarnings: 1,
		},
		{
			name: "event on missing product",
			mutate: func(tables *models.SourceTables) {
				tables.Events = append(tables.Events, models.Event{
					ID: 5001, CustomerID: 1, ProductID: 999, EventType: "view", Timestamp: time.Now(),
				})
			},
			droppedType:  models.RelOn,
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := fixtureTables()
			baseline, _ := New(testLogger()).Transform(fixtureTables())
			baseCount := countRelationships(baseline)[tt.droppedType]

			tt.mutate(tables)
			model, warnings := New(testLogger()).Transform(tables)

			require.Len(t, warnings, tt.wantWarnings)
			assert.Equal(t, tt.droppedType, warnings[0].Type)
			// The orphaned row adds no relationship of its type
			var gotCount int
			for _, r := range model.Relationships {
				if r.Type == tt.droppedType {
					gotCount++
				}
			}
			assert.Equal(t, baseCount, gotCount)
		})
	}
}

func TestTransform_NullCategorySkipsBelongsTo(t *testing.T) {
	tables := fixtureTables()
	tables.Products = append(tables.Products, models.Product{ID: 103, Name: "Loose item", Price: 1})

	model, warnings := New(testLogger()).Transform(tables)

	assert.Empty(t, warnings)
	assert.Equal(t, 2, countRelationships(model)[models.RelBelongsTo])
}

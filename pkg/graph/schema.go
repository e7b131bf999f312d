package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// schemaStatements are applied in order before any data load. Every statement
// is idempotent at the store level (IF NOT EXISTS). The uniqueness constraints
// are what make the loader's MERGE-by-key writes safe to re-run; the indexes
// back the traversal queries the graph exists for.
var schemaStatements = []string{
	"CREATE CONSTRAINT customer_id IF NOT EXISTS FOR (c:Customer) REQUIRE c.id IS UNIQUE",
	"CREATE CONSTRAINT category_id IF NOT EXISTS FOR (c:Category) REQUIRE c.id IS UNIQUE",
	"CREATE CONSTRAINT product_id IF NOT EXISTS FOR (p:Product) REQUIRE p.id IS UNIQUE",
	"CREATE CONSTRAINT order_id IF NOT EXISTS FOR (o:Order) REQUIRE o.id IS UNIQUE",
	"CREATE CONSTRAINT event_id IF NOT EXISTS FOR (e:Event) REQUIRE e.id IS UNIQUE",
	"CREATE INDEX customer_join_date IF NOT EXISTS FOR (c:Customer) ON (c.joinDate)",
	"CREATE INDEX product_price IF NOT EXISTS FOR (p:Product) ON (p.price)",
	"CREATE INDEX event_timestamp IF NOT EXISTS FOR (e:Event) ON (e.timestamp)",
}

// SchemaError reports the statement that failed during schema initialization.
type SchemaError struct {
	Statement string
	Index     int
	Err       error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema statement %d failed (%q): %v", e.Index, e.Statement, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// SchemaService applies constraints and indexes to the graph store.
type SchemaService struct {
	client *Client
	logger ectologger.Logger
}

// NewSchemaService creates a new schema service
func NewSchemaService(client *Client, logger ectologger.Logger) *SchemaService {
	return &SchemaService{
		client: client,
		logger: logger,
	}
}

// Apply runs every schema statement in order. The first failure aborts with a
// SchemaError; the schema is a precondition for correct indexed upserts, not
// an optional optimization.
func (s *SchemaService) Apply(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "graph.SchemaService.Apply")
	defer span.End()

	log := s.logger.WithContext(ctx)

	for i, stmt := range schemaStatements {
		if err := s.client.Run(ctx, stmt, nil); err != nil {
			log.WithError(err).WithField("statement", stmt).Error("Failed to apply schema statement")
			return &SchemaError{Statement: stmt, Index: i, Err: err}
		}
	}

	log.WithField("statements", len(schemaStatements)).Info("Graph schema applied")
	return nil
}

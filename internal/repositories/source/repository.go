// Package source reads the relational store. The shop database is the system
// of record and is never mutated here; every query is a plain SELECT returning
// rows in the store's natural result order.
package source

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ExtractionError wraps a connectivity or query failure while reading a
// source table. It is fatal for the run; no partial transform is attempted.
type ExtractionError struct {
	Table string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract table %s: %v", e.Table, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Repository reads the source tables for one pipeline run.
type Repository struct {
	db     *sqlx.DB
	logger ectologger.Logger
}

// NewRepository creates a new source repository
func NewRepository(db *sqlx.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Ping checks source store connectivity. The readiness prober calls this
// before extraction begins.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ExtractAll materializes every source table, one query per table. Columns
// beyond the selected set are never fetched, so schema additions upstream
// cannot leak into the transform.
func (r *Repository) ExtractAll(ctx context.Context) (*models.SourceTables, error) {
	ctx, span := tracing.StartSpan(ctx, "source.Repository.ExtractAll")
	defer span.End()

	tables := &models.SourceTables{}

	if err := r.selectInto(ctx, &tables.Customers, "customers", "id", "name", "join_date"); err != nil {
		return nil, err
	}
	if err := r.selectInto(ctx, &tables.Categories, "categories", "id", "name"); err != nil {
		return nil, err
	}
	if err := r.selectInto(ctx, &tables.Products, "products", "id", "name", "price", "category_id"); err != nil {
		return nil, err
	}
	if err := r.selectInto(ctx, &tables.Orders, "orders", "id", "customer_id", "ts"); err != nil {
		return nil, err
	}
	if err := r.selectInto(ctx, &tables.OrderItems, "order_items", "order_id", "product_id", "quantity"); err != nil {
		return nil, err
	}
	if err := r.selectInto(ctx, &tables.Events, "events", "id", "customer_id", "product_id", "event_type", "ts"); err != nil {
		return nil, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"customers":   len(tables.Customers),
		"categories":  len(tables.Categories),
		"products":    len(tables.Products),
		"orders":      len(tables.Orders),
		"order_items": len(tables.OrderItems),
		"events":      len(tables.Events),
	}).Info("Extracted source tables")

	return tables, nil
}

// selectInto runs one SELECT for a table and scans the rows into dest.
func (r *Repository) selectInto(ctx context.Context, dest any, table string, columns ...string) error {
	ctx, span := tracing.StartSpan(ctx, "source.Repository.selectInto")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)

	query, args := sb.Build()

	if err := r.db.SelectContext(ctx, dest, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("table", table).Error("failed to extract source table")
		return &ExtractionError{Table: table, Err: err}
	}

	metrics.RowsExtractedTotal.WithLabelValues(table).Add(float64(rowCount(dest)))
	return nil
}

// rowCount returns the scanned row count for the table slices ExtractAll uses.
func rowCount(dest any) int {
	switch rows := dest.(type) {
	case *[]models.Customer:
		return len(*rows)
	case *[]models.Category:
		return len(*rows)
	case *[]models.Product:
		return len(*rows)
	case *[]models.Order:
		return len(*rows)
	case *[]models.OrderItem:
		return len(*rows)
	case *[]models.Event:
		return len(*rows)
	default:
		return 0
	}
}

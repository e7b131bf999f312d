package models

import (
	"database/sql"
	"time"
)

// Customer is a row from the customers table.
type Customer struct {
	ID       int64     `db:"id"`
	Name     string    `db:"name"`
	JoinDate time.Time `db:"join_date"`
}

// Category is a row from the categories table.
type Category struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Product is a row from the products table. CategoryID is nullable because
// a product may exist before it is filed under a category.
type Product struct {
	ID         int64         `db:"id"`
	Name       string        `db:"name"`
	Price      float64       `db:"price"`
	CategoryID sql.NullInt64 `db:"category_id"`
}

// Order is a row from the orders table.
type Order struct {
	ID         int64     `db:"id"`
	CustomerID int64     `db:"customer_id"`
	Timestamp  time.Time `db:"ts"`
}

// OrderItem is a row from the order_items table. It has no key of its own;
// it exists only to connect an order to a product with a quantity.
type OrderItem struct {
	OrderID   int64 `db:"order_id"`
	ProductID int64 `db:"product_id"`
	Quantity  int64 `db:"quantity"`
}

// Event is a row from the events table (view, add_to_cart, purchase, ...).
type Event struct {
	ID         int64     `db:"id"`
	CustomerID int64     `db:"customer_id"`
	ProductID  int64     `db:"product_id"`
	EventType  string    `db:"event_type"`
	Timestamp  time.Time `db:"ts"`
}

// SourceTables holds one full extraction of the relational store, each table
// in its natural query result order.
type SourceTables struct {
	Customers  []Customer
	Categories []Category
	Products   []Product
	Orders     []Order
	OrderItems []OrderItem
	Events     []Event
}

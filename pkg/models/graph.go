// Package models defines the relational source rows and the in-memory graph
// representation that the transformer produces and the loader consumes.
package models

import "fmt"

// Label is a graph node label.
type Label string

const (
	LabelCustomer Label = "Customer"
	LabelCategory Label = "Category"
	LabelProduct  Label = "Product"
	LabelOrder    Label = "Order"
	LabelEvent    Label = "Event"
)

// NodeLabels lists every label the transformer can produce, in load order.
var NodeLabels = []Label{LabelCustomer, LabelCategory, LabelProduct, LabelOrder, LabelEvent}

// RelationshipType is a graph relationship type.
type RelationshipType string

const (
	RelPlaced    RelationshipType = "PLACED"
	RelContains  RelationshipType = "CONTAINS"
	RelBelongsTo RelationshipType = "BELONGS_TO"
	RelDid       RelationshipType = "DID"
	RelOn        RelationshipType = "ON"
)

// RelationshipTypes lists every relationship type the transformer can produce,
// in load order.
var RelationshipTypes = []RelationshipType{RelPlaced, RelContains, RelBelongsTo, RelDid, RelOn}

// NodeRef identifies a node by its label and business key.
type NodeRef struct {
	Label Label
	Key   string
}

func (r NodeRef) String() string {
	return fmt.Sprintf("%s(%s)", r.Label, r.Key)
}

// Node is a graph node record. Key uniquely identifies the node within its
// label and doubles as the `id` property the loader merges on.
type Node struct {
	Label Label
	Key   string
	Props map[string]any
}

// Ref returns the node's reference.
func (n Node) Ref() NodeRef {
	return NodeRef{Label: n.Label, Key: n.Key}
}

// Relationship is a directed, typed edge between two node records. Props may
// be empty; CONTAINS carries a quantity.
type Relationship struct {
	Type  RelationshipType
	From  NodeRef
	To    NodeRef
	Props map[string]any
}

// GraphModel is one transformation output: the complete node and relationship
// sets for a single run. It lives in memory only; the graph store is its
// durable home.
type GraphModel struct {
	Nodes         []Node
	Relationships []Relationship
}

// RelationshipGroup keys a batch group: relationships sharing a type and
// endpoint labels can be merged with a single Cypher statement.
type RelationshipGroup struct {
	Type      RelationshipType
	FromLabel Label
	ToLabel   Label
}

func (g RelationshipGroup) String() string {
	return fmt.Sprintf("(%s)-[%s]->(%s)", g.FromLabel, g.Type, g.ToLabel)
}

// ReferentialWarning records an orphaned foreign-key reference found during
// transform. The offending relationship is dropped; the run continues.
type ReferentialWarning struct {
	Type    RelationshipType
	From    NodeRef
	To      NodeRef
	Missing NodeRef
}

func (w ReferentialWarning) String() string {
	return fmt.Sprintf("dropped %s from %s to %s: missing %s", w.Type, w.From, w.To, w.Missing)
}

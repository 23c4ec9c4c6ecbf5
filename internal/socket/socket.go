// Package socket defines the closed set of data-shape categories a port can
// carry and the directed compatibility relation between them.
//
// The relation is intentionally a lookup table rather than a type hierarchy:
// adding a category is a data change, and the full rule set can be audited
// (and tested) as data.
package socket

// Name is a socket category tag.
type Name string

const (
	// Field carries a single scalar field.
	Field Name = "field"
	// Flat carries a flat record (rows of scalar columns).
	Flat Name = "flat"
	// Nested carries a nested record (rows with sub-structure).
	Nested Name = "nested"
	// Any accepts every shape as a consumer; as a producer it is accepted
	// everywhere.
	Any Name = "any"
)

// accepts maps a consumer category to the producer categories it accepts.
// The relation is directed: a flat consumer never silently accepts nested
// data, while the reverse direction goes through Any only.
var accepts = map[Name]map[Name]bool{
	Any:    {Field: true, Flat: true, Nested: true, Any: true},
	Nested: {Nested: true, Any: true},
	Flat:   {Flat: true, Any: true},
	Field:  {Field: true, Any: true},
}

// Compatible reports whether data produced on a port of category producer may
// flow into an input of category consumer.
func Compatible(producer, consumer Name) bool {
	return accepts[consumer][producer]
}

// Known reports whether n is one of the defined categories.
func Known(n Name) bool {
	_, ok := accepts[n]
	return ok
}

// All returns the defined categories in a stable order.
func All() []Name {
	return []Name{Field, Flat, Nested, Any}
}

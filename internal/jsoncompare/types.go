// File: internal/jsoncompare/types.go
package jsoncompare

// ComparisonResult holds the outcome of the comparison and a detailed diff.
type ComparisonResult struct {
	// AreEquivalent indicates if the inputs are considered equal based on the comparison rules.
	AreEquivalent bool
	// Diff points at the first difference found, if any.
	Diff string
	// IsJSON indicates if the comparison was successfully performed on JSON structures.
	IsJSON bool
}

// Options customizes comparison behavior.
type Options struct {
	// IgnoreArrayOrder enables order-agnostic comparison of arrays.
	IgnoreArrayOrder bool
	// EquateEmpty treats nil (JSON null) and empty slices/maps ({}, []) as equal.
	EquateEmpty bool
}

// DefaultOptions returns the configuration the graph core uses for data-output
// change detection: array order matters (example rows are ordered) but empty
// and absent collections are the same thing.
func DefaultOptions() Options {
	return Options{
		IgnoreArrayOrder: false,
		EquateEmpty:      true,
	}
}

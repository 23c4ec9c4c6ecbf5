// File: internal/jsoncompare/interface.go
package jsoncompare

// JSONComparison defines the interface for the JSON comparison service.
// The graph core uses it to decide whether a replacement data-output payload
// is content-different from the cached one before propagating downstream.
type JSONComparison interface {
	// Compare performs a semantic comparison of two byte slices using the
	// service's default options. Non-JSON content falls back to a byte
	// comparison.
	Compare(bodyA, bodyB []byte) (*ComparisonResult, error)

	// CompareWithOptions performs a semantic comparison using the specified options.
	CompareWithOptions(bodyA, bodyB []byte, opts Options) (*ComparisonResult, error)
}

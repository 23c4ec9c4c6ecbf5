// File: internal/jsoncompare/service.go
package jsoncompare

import (
	"bytes"
	"encoding/json"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Service is the default JSONComparison implementation.
type Service struct {
	opts Options
}

var _ JSONComparison = (*Service)(nil)

// NewService creates a comparison service with the default options.
func NewService() *Service {
	return &Service{opts: DefaultOptions()}
}

// Compare performs a semantic comparison using the service's default options.
func (s *Service) Compare(bodyA, bodyB []byte) (*ComparisonResult, error) {
	return s.CompareWithOptions(bodyA, bodyB, s.opts)
}

// CompareWithOptions performs a semantic comparison using the given options.
// Both inputs must parse as JSON for a structural comparison; otherwise the
// result degrades to a raw byte comparison with IsJSON=false.
func (s *Service) CompareWithOptions(bodyA, bodyB []byte, opts Options) (*ComparisonResult, error) {
	var a, b any
	errA := json.Unmarshal(bodyA, &a)
	errB := json.Unmarshal(bodyB, &b)

	if errA != nil || errB != nil {
		eq := bytes.Equal(bodyA, bodyB)
		res := &ComparisonResult{AreEquivalent: eq, IsJSON: false}
		if !eq {
			res.Diff = "raw content differs"
		}
		return res, nil
	}

	cmpOpts := []cmp.Option{}
	if opts.EquateEmpty {
		cmpOpts = append(cmpOpts, cmpopts.EquateEmpty())
		// EquateEmpty does not cover a key that is absent on one side and
		// present-but-empty on the other, which the node payloads produce
		// all the time. Normalize those away before diffing.
		a = pruneEmpty(a)
		b = pruneEmpty(b)
		if isEmpty(a) && isEmpty(b) {
			return &ComparisonResult{AreEquivalent: true, IsJSON: true}, nil
		}
	}
	if opts.IgnoreArrayOrder {
		cmpOpts = append(cmpOpts, cmpopts.SortSlices(lessValue))
	}

	if diff := cmp.Diff(a, b, cmpOpts...); diff != "" {
		return &ComparisonResult{AreEquivalent: false, Diff: diff, IsJSON: true}, nil
	}
	return &ComparisonResult{AreEquivalent: true, IsJSON: true}, nil
}

// pruneEmpty drops map entries whose value reduces to nil or an empty
// collection, so {"rows":[]} and {} compare equal. Inside slices empty
// values collapse to nil instead, preserving element positions.
func pruneEmpty(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			pv := pruneEmpty(val)
			if isEmpty(pv) {
				continue
			}
			out[k] = pv
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			pv := pruneEmpty(val)
			if isEmpty(pv) {
				pv = nil
			}
			out[i] = pv
		}
		return out
	default:
		return v
	}
}

// lessValue orders arbitrary decoded JSON values by their canonical
// encoding. Go marshals maps with sorted keys, so the ordering is
// deterministic and any two unequal values order consistently.
func lessValue(a, b any) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return bytes.Compare(ab, bb) < 0
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

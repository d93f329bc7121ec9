package property

import (
	"fmt"

	"graphloader/internal/core/errors"
)

// KeySpec describes one relationship property to load.
type KeySpec struct {
	Name        string
	ID          int
	Default     float64
	Aggregation Aggregation
}

// Schema is the resolved property layout shared by the importer and the
// property builders. Slices are indexed by property position.
type Schema struct {
	Keys         []string
	KeyIDs       []int
	Defaults     []float64
	Aggregations []Aggregation
	Relationship Aggregation
}

// NewSchema resolves DEFAULT aggregations and rejects layouts that mix
// deduplicating and non-deduplicating policies.
func NewSchema(relationship Aggregation, specs []KeySpec) (Schema, error) {
	rel := relationship.Resolve(AggregationNone)
	s := Schema{
		Keys:         make([]string, len(specs)),
		KeyIDs:       make([]int, len(specs)),
		Defaults:     make([]float64, len(specs)),
		Aggregations: make([]Aggregation, len(specs)),
		Relationship: rel,
	}
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return Schema{}, errors.New(errors.CodeConfiguration, fmt.Sprintf("property %d has no name", i))
		}
		if seen[spec.Name] {
			return Schema{}, errors.New(errors.CodeConfiguration, fmt.Sprintf("duplicate property %q", spec.Name))
		}
		seen[spec.Name] = true

		agg := spec.Aggregation.Resolve(rel)
		if agg.Deduplicates() != rel.Deduplicates() {
			return Schema{}, errors.AddContext(
				errors.New(errors.CodeConfiguration, fmt.Sprintf(
					"aggregation %s conflicts with relationship aggregation %s", agg, rel)),
				errors.CtxProperty, spec.Name,
			)
		}
		s.Keys[i] = spec.Name
		s.KeyIDs[i] = spec.ID
		s.Defaults[i] = spec.Default
		s.Aggregations[i] = agg
	}
	return s, nil
}

func (s Schema) Len() int { return len(s.Keys) }

// AtLeastOnePropertyToLoad is true iff some key exists in the store.
func (s Schema) AtLeastOnePropertyToLoad() bool {
	for _, id := range s.KeyIDs {
		if id != NoSuchKey {
			return true
		}
	}
	return false
}

// Read is a convenience wrapper passing the schema's layout to r.
func (s Schema) Read(r Reader, view []int64, batchLength int) ([][]float64, error) {
	return r.ReadProperty(view, batchLength, s.KeyIDs, s.Defaults, s.Aggregations, s.AtLeastOnePropertyToLoad())
}

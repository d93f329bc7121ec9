package property

import (
	"fmt"
	"math"
	"strings"

	"graphloader/internal/core/errors"
)

// Aggregation decides how duplicate relationships between the same pair of
// nodes are combined.
type Aggregation int

const (
	AggregationDefault Aggregation = iota
	AggregationNone
	AggregationSingle
	AggregationSum
	AggregationMin
	AggregationMax
	AggregationCount
)

var aggregationNames = map[Aggregation]string{
	AggregationDefault: "DEFAULT",
	AggregationNone:    "NONE",
	AggregationSingle:  "SINGLE",
	AggregationSum:     "SUM",
	AggregationMin:     "MIN",
	AggregationMax:     "MAX",
	AggregationCount:   "COUNT",
}

func (a Aggregation) String() string {
	if name, ok := aggregationNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Aggregation(%d)", int(a))
}

// ParseAggregation accepts the names above case-insensitively; FIRST is an
// alias for SINGLE and the empty string means DEFAULT.
func ParseAggregation(raw string) (Aggregation, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	switch name {
	case "", "DEFAULT":
		return AggregationDefault, nil
	case "FIRST":
		return AggregationSingle, nil
	}
	for agg, n := range aggregationNames {
		if n == name {
			return agg, nil
		}
	}
	return AggregationDefault, errors.Newf(errors.CodeConfiguration, "unknown aggregation %q", raw)
}

// Resolve replaces DEFAULT with fallback.
func (a Aggregation) Resolve(fallback Aggregation) Aggregation {
	if a == AggregationDefault {
		return fallback
	}
	return a
}

// Deduplicates reports whether parallel relationships collapse into one.
func (a Aggregation) Deduplicates() bool {
	return a != AggregationNone && a != AggregationDefault
}

// Normalize maps a raw stored value to the value that enters aggregation.
func (a Aggregation) Normalize(value float64) float64 {
	if a == AggregationCount {
		return 1
	}
	return value
}

// Merge folds value into running. Callers visit duplicates in relationship id
// order, so SINGLE keeps the first occurrence.
func (a Aggregation) Merge(running, value float64) float64 {
	switch a {
	case AggregationSum, AggregationCount:
		return running + value
	case AggregationMin:
		return math.Min(running, value)
	case AggregationMax:
		return math.Max(running, value)
	default:
		return running
	}
}

package importer

import (
	"strings"

	"graphloader/internal/core/errors"
)

// Orientation selects which directions of a relationship are imported.
type Orientation int

const (
	Natural Orientation = iota + 1
	Reverse
	Undirected
)

func (o Orientation) String() string {
	switch o {
	case Natural:
		return "NATURAL"
	case Reverse:
		return "REVERSE"
	case Undirected:
		return "UNDIRECTED"
	default:
		return "UNKNOWN"
	}
}

func (o Orientation) Valid() bool {
	return o == Natural || o == Reverse || o == Undirected
}

// Inverse returns the orientation of the inverse index: NATURAL and REVERSE
// swap, UNDIRECTED stays.
func (o Orientation) Inverse() Orientation {
	switch o {
	case Natural:
		return Reverse
	case Reverse:
		return Natural
	default:
		return o
	}
}

func ParseOrientation(raw string) (Orientation, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "NATURAL":
		return Natural, nil
	case "REVERSE":
		return Reverse, nil
	case "UNDIRECTED":
		return Undirected, nil
	}
	return 0, errors.Newf(errors.CodeConfiguration, "unexpected orientation %q", raw)
}

// Package enums holds the closed string sets persisted in the database and carried on the wire.
package enums

import (
	"fmt"
	"slices"
)

func known[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

// parse matches value exactly; callers normalize case first where the set allows it.
func parse[T ~string](value, kind string, set []T) (T, error) {
	if v := T(value); known(v, set) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}

// Package insertion validates externally-suggested insertion points. The
// advisory reply is adversarial input: it is parsed into a tagged result
// and then defaulted or clamped in one place, shared by every recipe, so
// no raw advisory text ever reaches an engine parameter.
package insertion

import (
	"strconv"
	"strings"
)

// Fallback is the insertion point used whenever the advisory reply cannot
// be parsed as a single integer. A bad content-placement suggestion is a
// quality concern, not a correctness one: the pipeline must still produce
// output.
const Fallback = 5

// Decide turns a raw advisory reply into an insertion point guaranteed to
// lie in [0, upperBound).
func Decide(raw string, upperBound int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		n = Fallback
	}
	return Clamp(n, upperBound)
}

// Clamp forces n into [0, upperBound). Out-of-range values are pulled to
// the nearest bound, never rejected.
func Clamp(n, upperBound int) int {
	if upperBound <= 0 {
		return 0
	}
	if n < 0 {
		return 0
	}
	if n >= upperBound {
		return upperBound - 1
	}
	return n
}

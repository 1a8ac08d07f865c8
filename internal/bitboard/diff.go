package bitboard

import (
	"fmt"

	chess "github.com/corentings/chess/v2"
)

// ChangeKind classifies the transition between two consecutive masks.
type ChangeKind uint8

const (
	// Unchanged: the masks are identical.
	Unchanged ChangeKind = iota
	// Lift: exactly one square became empty.
	Lift
	// Place: exactly one square became occupied.
	Place
	// Ambiguous: more than one square changed within one poll cycle. The
	// caller must keep its state untouched until the board is restored.
	Ambiguous
)

func (k ChangeKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Lift:
		return "lift"
	case Place:
		return "place"
	case Ambiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("ChangeKind(%d)", uint8(k))
	}
}

// Change is the outcome of comparing two masks. Square is only meaningful
// for Lift and Place.
type Change struct {
	Kind   ChangeKind
	Square chess.Square
}

// Classify compares the previous mask against the current one. The order of
// the checks is load-bearing: ambiguity wins over any attempt to interpret
// multi-bit diffs.
func Classify(prev, curr Mask) Change {
	added := ^prev & curr
	removed := prev & ^curr

	switch {
	case added == 0 && removed == 0:
		return Change{Kind: Unchanged}
	case added == 0 && single(removed):
		return Change{Kind: Lift, Square: first(removed)}
	case removed == 0 && single(added):
		return Change{Kind: Place, Square: first(added)}
	default:
		return Change{Kind: Ambiguous}
	}
}

package bitboard

import (
	"testing"

	chess "github.com/corentings/chess/v2"
)

// Standard starting position: ranks 1-2 and 7-8 occupied.
const startMask Mask = 0xFFFF00000000FFFF

func TestClassifySingleBit(t *testing.T) {
	// Any single cleared bit is a lift, any single set bit is a place,
	// never ambiguous.
	for i := 0; i < 64; i++ {
		sq := chess.Square(i)

		if startMask.Has(sq) {
			ch := Classify(startMask, startMask.Without(sq))
			if ch.Kind != Lift || ch.Square != sq {
				t.Fatalf("clear %s: got %s at %s", sq, ch.Kind, ch.Square)
			}
		} else {
			ch := Classify(startMask, startMask.With(sq))
			if ch.Kind != Place || ch.Square != sq {
				t.Fatalf("set %s: got %s at %s", sq, ch.Kind, ch.Square)
			}
		}
	}
}

func TestClassifyUnchanged(t *testing.T) {
	for _, m := range []Mask{0, startMask, ^Mask(0)} {
		if ch := Classify(m, m); ch.Kind != Unchanged {
			t.Fatalf("mask %x: got %s", uint64(m), ch.Kind)
		}
	}
}

func TestClassifyMultiBitIsAmbiguous(t *testing.T) {
	cases := []struct {
		name       string
		prev, curr Mask
	}{
		{"two lifted", startMask, startMask.Without(chess.E2).Without(chess.D2)},
		{"two placed", startMask, startMask.With(chess.E4).With(chess.D4)},
		{"lift and place at once", startMask, startMask.Without(chess.E2).With(chess.E4)},
		{"three changed", startMask, startMask.Without(chess.E2).Without(chess.D2).With(chess.E4)},
		{"everything gone", startMask, 0},
	}
	for _, tc := range cases {
		if ch := Classify(tc.prev, tc.curr); ch.Kind != Ambiguous {
			t.Fatalf("%s: got %s, want ambiguous", tc.name, ch.Kind)
		}
	}
}

func TestMaskHelpers(t *testing.T) {
	m := FromSquares(chess.A1, chess.E4, chess.H8)
	if m.Count() != 3 {
		t.Fatalf("Count = %d", m.Count())
	}
	if !m.Has(chess.E4) || m.Has(chess.E5) {
		t.Fatal("Has misreports")
	}
	sqs := m.Squares()
	if len(sqs) != 3 || sqs[0] != chess.A1 || sqs[1] != chess.E4 || sqs[2] != chess.H8 {
		t.Fatalf("Squares = %v", sqs)
	}
	if m.Without(chess.E4).Has(chess.E4) {
		t.Fatal("Without kept the bit")
	}
}

func TestFromBoardStartingPosition(t *testing.T) {
	game := chess.NewGame()
	m := FromBoard(game.Position().Board())
	if m != startMask {
		t.Fatalf("start position mask = %x, want %x", uint64(m), uint64(startMask))
	}
}

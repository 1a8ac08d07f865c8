// Package bitboard models the reed-sensor view of the board: a 64-bit mask
// with one bit per square, bit index = rank*8 + file, and the classifier
// that turns two consecutive masks into a lift/place event.
package bitboard

import (
	"fmt"
	"math/bits"
	"strings"

	chess "github.com/corentings/chess/v2"
)

// Mask is the set of occupied squares as reported by the sensors.
type Mask uint64

func FromSquares(squares ...chess.Square) Mask {
	var m Mask
	for _, sq := range squares {
		m |= 1 << uint(sq)
	}
	return m
}

// FromBoard derives the expected occupancy of a logical position.
func FromBoard(board *chess.Board) Mask {
	var m Mask
	if board == nil {
		return m
	}
	for sq := range board.SquareMap() {
		m |= 1 << uint(sq)
	}
	return m
}

func (m Mask) Has(sq chess.Square) bool  { return m&(1<<uint(sq)) != 0 }
func (m Mask) With(sq chess.Square) Mask { return m | 1<<uint(sq) }
func (m Mask) Without(sq chess.Square) Mask {
	return m &^ (1 << uint(sq))
}

func (m Mask) Count() int { return bits.OnesCount64(uint64(m)) }

func (m Mask) Squares() []chess.Square {
	out := make([]chess.Square, 0, m.Count())
	for v := uint64(m); v != 0; v &= v - 1 {
		out = append(out, chess.Square(bits.TrailingZeros64(v)))
	}
	return out
}

// String renders the mask rank 8 down to rank 1, one row per line.
func (m Mask) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		for file := 0; file < 8; file++ {
			if m&(1<<uint(rank*8+file)) != 0 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		if rank > 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// ParseSquare reads algebraic coordinates like "e2".
func ParseSquare(s string) (chess.Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return 0, fmt.Errorf("invalid square %q", s)
	}
	return chess.NewSquare(chess.File(s[0]-'a'), chess.Rank(s[1]-'1')), nil
}

func single(m Mask) bool {
	return m != 0 && m&(m-1) == 0
}

func first(m Mask) chess.Square {
	return chess.Square(bits.TrailingZeros64(uint64(m)))
}

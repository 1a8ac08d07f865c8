package game

import (
	chess "github.com/corentings/chess/v2"

	"github.com/kapu/e-chess/internal/bitboard"
)

// StateEvent is the observable summary of the game, emitted whenever the
// logical position changes.
type StateEvent struct {
	GameID   string
	FEN      string
	Turn     chess.Color
	Moves    []string
	Outcome  chess.Outcome
	Method   chess.Method
	TakeBack TakeBack
}

func (g *Game) State() StateEvent {
	return StateEvent{
		GameID:   g.id,
		FEN:      g.chess.FEN(),
		Turn:     g.chess.Position().Turn(),
		Moves:    g.Moves(),
		Outcome:  g.chess.Outcome(),
		Method:   g.chess.Method(),
		TakeBack: g.takeBack,
	}
}

func (s StateEvent) Equal(o StateEvent) bool {
	return s.GameID == o.GameID &&
		s.FEN == o.FEN &&
		s.Outcome == o.Outcome &&
		s.TakeBack == o.TakeBack &&
		equalMoves(s.Moves, o.Moves)
}

// View is what the rendering adapter consumes each cycle: where pieces
// should be, where the sensors say they are, and, while a piece is in the
// air, where it may legally land.
type View struct {
	Expected     bitboard.Mask
	Actual       bitboard.Mask
	LegalTargets bitboard.Mask
	Lifted       *PendingLift
	Over         bool
}

func (g *Game) View() View {
	expected := bitboard.FromBoard(g.chess.Position().Board())
	v := View{
		Expected: expected,
		Actual:   g.prev,
		Lifted:   g.Pending(),
		Over:     g.Over(),
	}
	if g.pending != nil {
		v.Expected = expected.Without(g.pending.Square)
		v.LegalTargets = g.legalTargets(g.pending.Square)
	}
	return v
}

// legalTargets probes every destination square for a legal move from the
// lifted square. Promotion squares are probed with the queen suffix, the
// only promotion the board can express.
func (g *Game) legalTargets(from chess.Square) bitboard.Mask {
	pos := g.chess.Position()
	notation := chess.UCINotation{}
	var targets bitboard.Mask
	for i := 0; i < 64; i++ {
		to := chess.Square(i)
		if to == from {
			continue
		}
		uci := from.String() + to.String()
		if _, err := notation.Decode(pos, uci); err == nil {
			targets = targets.With(to)
			continue
		}
		if r := int(to.Rank()); r == 0 || r == 7 {
			if _, err := notation.Decode(pos, uci+"q"); err == nil {
				targets = targets.With(to)
			}
		}
	}
	return targets
}

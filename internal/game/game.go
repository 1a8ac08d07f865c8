// Package game owns the authoritative logical game and reconciles it against
// the physical board. Successive occupancy masks become lift/place events;
// one lift followed by one consistent place becomes a move submitted to the
// active connector.
package game

import (
	"context"
	"fmt"
	"strings"

	chess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/kapu/e-chess/internal/bitboard"
	"github.com/kapu/e-chess/internal/connector"
	"github.com/kapu/e-chess/pkg/wire"
)

// PendingLift records the single piece currently off the board. At most one
// exists at a time; further lifts are ignored until it resolves.
type PendingLift struct {
	Square chess.Square
	Piece  chess.Piece
}

// TakeBack holds the two independent agreement flags for retracting the last
// move. Resolution happens only when both are set.
type TakeBack struct {
	White bool
	Black bool
}

type EventKind uint8

const (
	EventNone EventKind = iota
	// EventLift: a piece of the side to move left the board.
	EventLift
	// EventMoveApplied: a full move went through and mutated the game.
	EventMoveApplied
	// EventMoveRejected: the place produced an illegal or refused move; the
	// piece must be returned physically, the game is untouched.
	EventMoveRejected
	// EventAmbiguous: several squares changed in one poll, nothing was
	// interpreted. The board must be restored to the last known mask.
	EventAmbiguous
)

// Event is the outcome of one reconciliation tick.
type Event struct {
	Kind   EventKind
	Square chess.Square
	Move   string
	Over   bool
	Err    error
}

// Game binds a logical position, its physical occupancy and a connector.
type Game struct {
	conn   connector.Connector
	logger *zap.Logger

	id         string
	initialFEN string
	moves      []string
	chess      *chess.Game

	prev     bitboard.Mask
	pending  *PendingLift
	takeBack TakeBack
}

// Load resolves the key through the connector, rebuilds the position by
// replaying the returned history, and primes the physical mask with the
// position's expected occupancy.
func Load(ctx context.Context, conn connector.Connector, key string, logger *zap.Logger) (*Game, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	snap, err := conn.LoadGame(ctx, key)
	if err != nil {
		return nil, err
	}
	cg, err := replay(snap.InitialFEN, snap.Moves)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", connector.ErrInvalidResponse, err)
	}
	g := &Game{
		conn:       conn,
		logger:     logger,
		id:         snap.GameID,
		initialFEN: snap.InitialFEN,
		moves:      append([]string(nil), snap.Moves...),
		chess:      cg,
	}
	g.prev = bitboard.FromBoard(cg.Position().Board())
	logger.Info("game_loaded",
		zap.String("game_id", g.id),
		zap.Int("moves", len(g.moves)),
		zap.String("turn", cg.Position().Turn().String()))
	return g, nil
}

func replay(initialFEN string, moves []string) (*chess.Game, error) {
	var g *chess.Game
	if fen := strings.TrimSpace(initialFEN); fen == "" || fen == "startpos" {
		g = chess.NewGame()
	} else {
		option, err := chess.FEN(initialFEN)
		if err != nil {
			return nil, fmt.Errorf("parse fen %q: %w", initialFEN, err)
		}
		g = chess.NewGame(option)
	}
	for _, mv := range moves {
		if err := g.PushNotationMove(strings.ToLower(strings.TrimSpace(mv)), chess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("apply move %q: %w", mv, err)
		}
	}
	return g, nil
}

// Tick evaluates one sensor poll. The mask is compared against the last
// accepted one; ambiguous diffs leave everything untouched, including the
// reference mask, so the next poll diffs against the same baseline.
func (g *Game) Tick(ctx context.Context, curr bitboard.Mask) Event {
	change := bitboard.Classify(g.prev, curr)
	switch change.Kind {
	case bitboard.Unchanged:
		return Event{}
	case bitboard.Ambiguous:
		g.logger.Warn("board_ambiguous_change",
			zap.String("game_id", g.id),
			zap.Int("occupied", curr.Count()))
		return Event{Kind: EventAmbiguous}
	case bitboard.Lift:
		g.prev = curr
		return g.onLift(change.Square)
	case bitboard.Place:
		g.prev = curr
		return g.onPlace(ctx, change.Square)
	}
	return Event{}
}

func (g *Game) onLift(sq chess.Square) Event {
	if g.Over() {
		return Event{}
	}
	if g.pending != nil {
		// Only one concurrent lift is supported; the first one stays in
		// force.
		g.logger.Warn("board_second_lift_ignored",
			zap.String("game_id", g.id),
			zap.String("square", sq.String()),
			zap.String("pending", g.pending.Square.String()))
		return Event{}
	}

	pos := g.chess.Position()
	piece := pos.Board().Piece(sq)
	if piece == chess.NoPiece || piece.Color() != pos.Turn() {
		g.logger.Debug("board_lift_ignored",
			zap.String("game_id", g.id),
			zap.String("square", sq.String()))
		return Event{}
	}

	g.pending = &PendingLift{Square: sq, Piece: piece}
	return Event{Kind: EventLift, Square: sq}
}

func (g *Game) onPlace(ctx context.Context, to chess.Square) Event {
	if g.Over() {
		return Event{}
	}
	if g.pending == nil {
		g.logger.Debug("board_place_ignored",
			zap.String("game_id", g.id),
			zap.String("square", to.String()))
		return Event{}
	}
	if to == g.pending.Square {
		// Putting the piece back cancels the lift.
		g.pending = nil
		return Event{}
	}

	from := g.pending.Square
	uci := from.String() + to.String()
	if g.pending.Piece.Type() == chess.Pawn {
		if r := int(to.Rank()); r == 0 || r == 7 {
			// The board cannot express a promotion choice; queen it.
			uci += "q"
		}
	}
	g.pending = nil

	pos := g.chess.Position()
	mv, err := chess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		g.logger.Info("board_move_illegal",
			zap.String("game_id", g.id),
			zap.String("uci", uci))
		return Event{Kind: EventMoveRejected, Move: uci, Err: err}
	}

	ok, err := g.conn.SubmitMove(ctx, uci)
	if err != nil {
		g.logger.Error("move_submit_failed",
			zap.String("game_id", g.id),
			zap.String("uci", uci),
			zap.Error(err))
		return Event{Kind: EventMoveRejected, Move: uci, Err: err}
	}
	if !ok {
		g.logger.Info("move_refused",
			zap.String("game_id", g.id),
			zap.String("uci", uci))
		return Event{Kind: EventMoveRejected, Move: uci}
	}

	if err := g.chess.Move(mv, nil); err != nil {
		return Event{Kind: EventMoveRejected, Move: uci, Err: err}
	}
	g.moves = append(g.moves, uci)

	over := g.Over()
	if over {
		g.logger.Info("game_over",
			zap.String("game_id", g.id),
			zap.String("outcome", g.chess.Outcome().String()),
			zap.String("method", g.chess.Method().String()))
	}
	return Event{Kind: EventMoveApplied, Move: uci, Over: over}
}

// PollRemote drains at most one pushed remote state into the game. It never
// blocks.
func (g *Game) PollRemote(ctx context.Context) error {
	ev, err := g.conn.NextEvent()
	if err != nil {
		return err
	}
	if ev == nil {
		return nil
	}
	return g.ApplyRemoteState(ev)
}

// ApplyRemoteState reconciles a server-pushed state. The server's move list
// is authoritative: a diverging history rebuilds the position outright.
func (g *Game) ApplyRemoteState(gs *wire.GameState) error {
	if !equalMoves(gs.Moves, g.moves) {
		cg, err := replay(g.initialFEN, gs.Moves)
		if err != nil {
			return fmt.Errorf("%w: %v", connector.ErrInvalidResponse, err)
		}
		g.chess = cg
		g.moves = append([]string(nil), gs.Moves...)
		g.pending = nil
		g.logger.Info("game_state_synced",
			zap.String("game_id", g.id),
			zap.Int("moves", len(g.moves)))
	}

	g.takeBack = TakeBack{White: gs.WhiteRequestTakeBack, Black: gs.BlackRequestTakeBack}
	if g.takeBack.White && g.takeBack.Black {
		return g.retract()
	}
	return nil
}

// RequestTakeBack sets one side's agreement flag; when the other side has
// already asked, the last move is retracted immediately.
func (g *Game) RequestTakeBack(color chess.Color) error {
	if len(g.moves) == 0 {
		return fmt.Errorf("no move to take back")
	}
	switch color {
	case chess.White:
		g.takeBack.White = true
	case chess.Black:
		g.takeBack.Black = true
	}
	if g.takeBack.White && g.takeBack.Black {
		return g.retract()
	}
	return nil
}

// CancelTakeBack clears the caller's own flag only.
func (g *Game) CancelTakeBack(color chess.Color) {
	switch color {
	case chess.White:
		g.takeBack.White = false
	case chess.Black:
		g.takeBack.Black = false
	}
}

func (g *Game) retract() error {
	if len(g.moves) == 0 {
		g.takeBack = TakeBack{}
		return nil
	}
	trimmed := g.moves[:len(g.moves)-1]
	cg, err := replay(g.initialFEN, trimmed)
	if err != nil {
		return fmt.Errorf("retract last move: %w", err)
	}
	g.chess = cg
	g.moves = append([]string(nil), trimmed...)
	g.pending = nil
	g.takeBack = TakeBack{}
	g.logger.Info("take_back_applied",
		zap.String("game_id", g.id),
		zap.Int("moves", len(g.moves)))
	return nil
}

func (g *Game) Over() bool { return g.chess.Outcome() != chess.NoOutcome }

func (g *Game) ID() string { return g.id }

func (g *Game) Moves() []string { return append([]string(nil), g.moves...) }

func (g *Game) Pending() *PendingLift {
	if g.pending == nil {
		return nil
	}
	p := *g.pending
	return &p
}

func (g *Game) TakeBackState() TakeBack { return g.takeBack }

// Occupancy returns the last accepted physical mask.
func (g *Game) Occupancy() bitboard.Mask { return g.prev }

func (g *Game) Position() *chess.Position { return g.chess.Position() }

func (g *Game) PGN() string { return g.chess.String() }

func equalMoves(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.TrimSpace(a[i]), b[i]) {
			return false
		}
	}
	return true
}

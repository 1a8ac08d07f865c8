package game

import (
	"context"
	"errors"
	"testing"

	chess "github.com/corentings/chess/v2"

	"github.com/kapu/e-chess/internal/bitboard"
	"github.com/kapu/e-chess/internal/connector"
	"github.com/kapu/e-chess/pkg/wire"
)

type stubConnector struct {
	snap      connector.Snapshot
	accept    bool
	submitErr error
	submitted []string
	events    []wire.GameState
}

func (s *stubConnector) Accepts(string) bool { return true }

func (s *stubConnector) LoadGame(context.Context, string) (*connector.Snapshot, error) {
	snap := s.snap
	return &snap, nil
}

func (s *stubConnector) SubmitMove(_ context.Context, uci string) (bool, error) {
	s.submitted = append(s.submitted, uci)
	if s.submitErr != nil {
		return false, s.submitErr
	}
	return s.accept, nil
}

func (s *stubConnector) NextEvent() (*wire.GameState, error) {
	if len(s.events) == 0 {
		return nil, nil
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return &ev, nil
}

func (s *stubConnector) OpenGames(context.Context) ([]wire.OpenGame, error) { return nil, nil }

func newTestGame(t *testing.T, conn connector.Connector) *Game {
	t.Helper()
	g, err := Load(context.Background(), conn, "", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return g
}

func TestFullMoveFromLiftAndPlace(t *testing.T) {
	conn := &stubConnector{accept: true}
	g := newTestGame(t, conn)
	ctx := context.Background()

	start := g.Occupancy()
	if start.Count() != 32 {
		t.Fatalf("starting occupancy = %d squares", start.Count())
	}

	ev := g.Tick(ctx, start.Without(chess.E2))
	if ev.Kind != EventLift || ev.Square != chess.E2 {
		t.Fatalf("lift event = %#v", ev)
	}
	if p := g.Pending(); p == nil || p.Square != chess.E2 {
		t.Fatalf("pending after lift = %#v", p)
	}

	ev = g.Tick(ctx, start.Without(chess.E2).With(chess.E4))
	if ev.Kind != EventMoveApplied || ev.Move != "e2e4" {
		t.Fatalf("place event = %#v", ev)
	}
	if g.Pending() != nil {
		t.Fatal("pending not cleared after move")
	}
	if turn := g.Position().Turn(); turn != chess.Black {
		t.Fatalf("turn after e2e4 = %v", turn)
	}
	if len(conn.submitted) != 1 || conn.submitted[0] != "e2e4" {
		t.Fatalf("submitted = %v", conn.submitted)
	}
}

func TestAmbiguousChangeIsNoOp(t *testing.T) {
	conn := &stubConnector{accept: true}
	g := newTestGame(t, conn)
	ctx := context.Background()

	start := g.Occupancy()
	messy := start.Without(chess.E2).With(chess.E4).Without(chess.D2)

	ev := g.Tick(ctx, messy)
	if ev.Kind != EventAmbiguous {
		t.Fatalf("event = %#v", ev)
	}
	if g.Occupancy() != start {
		t.Fatal("reference mask moved on ambiguous change")
	}
	if g.Pending() != nil || len(g.Moves()) != 0 {
		t.Fatal("state mutated on ambiguous change")
	}

	// After restoring the board the same baseline still applies.
	if ev := g.Tick(ctx, start); ev.Kind != EventNone {
		t.Fatalf("restore event = %#v", ev)
	}
}

func TestPlaceWithoutLiftIgnored(t *testing.T) {
	conn := &stubConnector{accept: true}
	g := newTestGame(t, conn)

	ev := g.Tick(context.Background(), g.Occupancy().With(chess.E4))
	if ev.Kind != EventNone {
		t.Fatalf("event = %#v", ev)
	}
	if len(g.Moves()) != 0 || len(conn.submitted) != 0 {
		t.Fatal("stray place mutated the game")
	}
}

func TestSecondLiftKeepsFirstPending(t *testing.T) {
	conn := &stubConnector{accept: true}
	g := newTestGame(t, conn)
	ctx := context.Background()

	mask := g.Occupancy().Without(chess.E2)
	g.Tick(ctx, mask)
	mask = mask.Without(chess.D2)
	if ev := g.Tick(ctx, mask); ev.Kind != EventNone {
		t.Fatalf("second lift event = %#v", ev)
	}
	if p := g.Pending(); p == nil || p.Square != chess.E2 {
		t.Fatalf("pending overwritten: %#v", p)
	}
}

func TestOpponentPieceLiftIgnored(t *testing.T) {
	conn := &stubConnector{accept: true}
	g := newTestGame(t, conn)

	// White to move; lifting a black pawn must not arm a pending lift.
	ev := g.Tick(context.Background(), g.Occupancy().Without(chess.E7))
	if ev.Kind != EventNone || g.Pending() != nil {
		t.Fatalf("opponent lift armed state: %#v", ev)
	}
}

func TestPlaceBackCancelsLift(t *testing.T) {
	conn := &stubConnector{accept: true}
	g := newTestGame(t, conn)
	ctx := context.Background()

	start := g.Occupancy()
	g.Tick(ctx, start.Without(chess.E2))
	ev := g.Tick(ctx, start)
	if ev.Kind != EventNone || g.Pending() != nil {
		t.Fatalf("place-back did not cancel: %#v", ev)
	}
	if len(g.Moves()) != 0 {
		t.Fatal("place-back mutated the game")
	}
}

func TestRefusedMoveLeavesGameUntouched(t *testing.T) {
	conn := &stubConnector{accept: false}
	g := newTestGame(t, conn)
	ctx := context.Background()

	start := g.Occupancy()
	g.Tick(ctx, start.Without(chess.E2))
	ev := g.Tick(ctx, start.Without(chess.E2).With(chess.E4))
	if ev.Kind != EventMoveRejected || ev.Move != "e2e4" {
		t.Fatalf("event = %#v", ev)
	}
	if len(g.Moves()) != 0 {
		t.Fatal("refused move applied")
	}
	if g.Pending() != nil {
		t.Fatal("pending survives rejection")
	}
	if turn := g.Position().Turn(); turn != chess.White {
		t.Fatalf("turn moved on rejection: %v", turn)
	}
}

func TestSubmitErrorRejectsMove(t *testing.T) {
	conn := &stubConnector{submitErr: errors.New("link down")}
	g := newTestGame(t, conn)
	ctx := context.Background()

	start := g.Occupancy()
	g.Tick(ctx, start.Without(chess.E2))
	ev := g.Tick(ctx, start.Without(chess.E2).With(chess.E4))
	if ev.Kind != EventMoveRejected || ev.Err == nil {
		t.Fatalf("event = %#v", ev)
	}
	if len(g.Moves()) != 0 {
		t.Fatal("failed submission applied")
	}
}

func TestIllegalMoveNeverReachesConnector(t *testing.T) {
	conn := &stubConnector{accept: true}
	g := newTestGame(t, conn)
	ctx := context.Background()

	start := g.Occupancy()
	g.Tick(ctx, start.Without(chess.E2))
	ev := g.Tick(ctx, start.Without(chess.E2).With(chess.E5))
	if ev.Kind != EventMoveRejected {
		t.Fatalf("event = %#v", ev)
	}
	if len(conn.submitted) != 0 {
		t.Fatalf("illegal move submitted: %v", conn.submitted)
	}
}

func TestRemoteStateRebuildsHistory(t *testing.T) {
	conn := &stubConnector{
		accept: true,
		events: []wire.GameState{{Moves: []string{"e2e4", "e7e5"}}},
	}
	g := newTestGame(t, conn)

	if err := g.PollRemote(context.Background()); err != nil {
		t.Fatalf("PollRemote: %v", err)
	}
	if len(g.Moves()) != 2 {
		t.Fatalf("moves = %v", g.Moves())
	}
	if turn := g.Position().Turn(); turn != chess.White {
		t.Fatalf("turn after sync = %v", turn)
	}
}

func TestTakeBackNeedsBothSides(t *testing.T) {
	conn := &stubConnector{accept: true}
	g := newTestGame(t, conn)
	ctx := context.Background()

	start := g.Occupancy()
	g.Tick(ctx, start.Without(chess.E2))
	g.Tick(ctx, start.Without(chess.E2).With(chess.E4))

	if err := g.RequestTakeBack(chess.White); err != nil {
		t.Fatalf("RequestTakeBack: %v", err)
	}
	if len(g.Moves()) != 1 {
		t.Fatal("one-sided request retracted the move")
	}

	g.CancelTakeBack(chess.White)
	if tb := g.TakeBackState(); tb.White || tb.Black {
		t.Fatalf("cancel left flags set: %#v", tb)
	}

	_ = g.RequestTakeBack(chess.White)
	if err := g.RequestTakeBack(chess.Black); err != nil {
		t.Fatalf("RequestTakeBack: %v", err)
	}
	if len(g.Moves()) != 0 {
		t.Fatalf("moves after take-back = %v", g.Moves())
	}
	if turn := g.Position().Turn(); turn != chess.White {
		t.Fatalf("turn after take-back = %v", turn)
	}
	if tb := g.TakeBackState(); tb.White || tb.Black {
		t.Fatalf("flags survive resolution: %#v", tb)
	}
}

func TestFinishedGameStopsMutating(t *testing.T) {
	conn := &stubConnector{
		accept: true,
		events: []wire.GameState{{Moves: []string{"f2f3", "e7e5", "g2g4", "d8h4"}}},
	}
	g := newTestGame(t, conn)
	ctx := context.Background()

	if err := g.PollRemote(ctx); err != nil {
		t.Fatalf("PollRemote: %v", err)
	}
	if !g.Over() {
		t.Fatal("fool's mate not detected")
	}

	// Pieces may still move for cleanup; the game must not change.
	moves := len(g.Moves())
	occ := bitboard.FromBoard(g.Position().Board())
	g.Tick(ctx, occ.Without(chess.E5))
	g.Tick(ctx, occ.Without(chess.E5).With(chess.E6))
	if len(g.Moves()) != moves {
		t.Fatal("finished game mutated")
	}
}

func TestViewTracksPendingLift(t *testing.T) {
	conn := &stubConnector{accept: true}
	g := newTestGame(t, conn)
	ctx := context.Background()

	start := g.Occupancy()
	v := g.View()
	if v.Expected != start || v.Actual != start || v.LegalTargets != 0 {
		t.Fatalf("idle view = %#v", v)
	}

	g.Tick(ctx, start.Without(chess.E2))
	v = g.View()
	if v.Expected.Has(chess.E2) {
		t.Fatal("expected occupancy still holds the lifted square")
	}
	if !v.LegalTargets.Has(chess.E3) || !v.LegalTargets.Has(chess.E4) {
		t.Fatalf("legal targets = %v", v.LegalTargets.Squares())
	}
	if v.LegalTargets.Has(chess.E5) {
		t.Fatal("illegal square marked legal")
	}
}

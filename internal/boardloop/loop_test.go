package boardloop

import (
	"context"
	"sync"
	"testing"
	"time"

	chess "github.com/corentings/chess/v2"

	"github.com/kapu/e-chess/internal/bitboard"
	"github.com/kapu/e-chess/internal/connector"
	"github.com/kapu/e-chess/internal/game"
	"github.com/kapu/e-chess/pkg/wire"
)

type stubConnector struct {
	mu     sync.Mutex
	games  []wire.OpenGame
	events []wire.GameState
}

func (s *stubConnector) Accepts(string) bool { return true }

func (s *stubConnector) LoadGame(context.Context, string) (*connector.Snapshot, error) {
	return &connector.Snapshot{GameID: "local"}, nil
}

func (s *stubConnector) SubmitMove(context.Context, string) (bool, error) { return true, nil }

func (s *stubConnector) NextEvent() (*wire.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return nil, nil
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return &ev, nil
}

func (s *stubConnector) OpenGames(context.Context) ([]wire.OpenGame, error) {
	return s.games, nil
}

func (s *stubConnector) pushEvent(gs wire.GameState) {
	s.mu.Lock()
	s.events = append(s.events, gs)
	s.mu.Unlock()
}

type stubArchiver struct {
	mu    sync.Mutex
	saved []string
}

func (a *stubArchiver) SaveResult(_ context.Context, g *game.Game, _ time.Time) error {
	a.mu.Lock()
	a.saved = append(a.saved, g.ID())
	a.mu.Unlock()
	return nil
}

func (a *stubArchiver) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.saved)
}

func waitState(t *testing.T, l *Loop, ok func(game.StateEvent) bool) game.StateEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st, open := <-l.States():
			if !open {
				t.Fatal("state channel closed")
			}
			if ok(st) {
				return st
			}
		case <-deadline:
			t.Fatal("expected state never arrived")
		}
	}
}

func TestLoopPlaysMoveFromSensorMasks(t *testing.T) {
	conn := &stubConnector{}
	l := New([]connector.Connector{conn}, nil, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.Submit(LoadGame{})
	waitState(t, l, func(st game.StateEvent) bool { return len(st.Moves) == 0 })

	start := bitboard.Mask(0xFFFF00000000FFFF)
	l.Submit(UpdatePhysical{Mask: start.Without(chess.E2)})
	time.Sleep(30 * time.Millisecond)
	l.Submit(UpdatePhysical{Mask: start.Without(chess.E2).With(chess.E4)})

	st := waitState(t, l, func(st game.StateEvent) bool { return len(st.Moves) == 1 })
	if st.Moves[0] != "e2e4" || st.Turn != chess.Black {
		t.Fatalf("unexpected state: %#v", st)
	}
}

func TestLoopAppliesPushedRemoteState(t *testing.T) {
	conn := &stubConnector{}
	l := New([]connector.Connector{conn}, nil, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.Submit(LoadGame{})
	waitState(t, l, func(st game.StateEvent) bool { return len(st.Moves) == 0 })

	conn.pushEvent(wire.GameState{Moves: []string{"e2e4", "e7e5"}})
	st := waitState(t, l, func(st game.StateEvent) bool { return len(st.Moves) == 2 })
	if st.Turn != chess.White {
		t.Fatalf("turn after sync = %v", st.Turn)
	}
}

func TestLoopArchivesFinishedGameOnce(t *testing.T) {
	conn := &stubConnector{}
	arch := &stubArchiver{}
	l := New([]connector.Connector{conn}, nil,
		WithInterval(5*time.Millisecond),
		WithArchiver(arch))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.Submit(LoadGame{})
	waitState(t, l, func(st game.StateEvent) bool { return len(st.Moves) == 0 })

	conn.pushEvent(wire.GameState{Moves: []string{"f2f3", "e7e5", "g2g4", "d8h4"}})
	waitState(t, l, func(st game.StateEvent) bool { return st.Outcome == chess.BlackWon })

	time.Sleep(50 * time.Millisecond)
	if n := arch.count(); n != 1 {
		t.Fatalf("archived %d times", n)
	}
}

func TestLoopListsOpenGames(t *testing.T) {
	conn := &stubConnector{games: []wire.OpenGame{{GameID: "abcd1234"}}}
	l := New([]connector.Connector{conn}, nil, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	reply := make(chan []wire.OpenGame, 1)
	l.Submit(ListOpenGames{Reply: reply})

	select {
	case games := <-reply:
		if len(games) != 1 || games[0].GameID != "abcd1234" {
			t.Fatalf("games = %#v", games)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
	}
}

package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/corentings/chess/v2"
	"github.com/google/uuid"

	"github.com/kapu/e-chess/pkg/wire"
)

// Local plays games entirely on the board, with no far side. It accepts an
// empty key (standard start) or a FEN giving an arbitrary starting position.
type Local struct{}

func NewLocal() *Local { return &Local{} }

func (l *Local) Accepts(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" || key == "startpos" {
		return true
	}
	_, err := chess.FEN(key)
	return err == nil
}

func (l *Local) LoadGame(_ context.Context, key string) (*Snapshot, error) {
	key = strings.TrimSpace(key)
	id := "local-" + uuid.NewString()
	if key == "" || key == "startpos" {
		return &Snapshot{GameID: id}, nil
	}
	if _, err := chess.FEN(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return &Snapshot{GameID: id, InitialFEN: key}, nil
}

// SubmitMove accepts everything: with both players at the board the position
// itself is the authority, legality is enforced before submission.
func (l *Local) SubmitMove(context.Context, string) (bool, error) { return true, nil }

func (l *Local) NextEvent() (*wire.GameState, error) { return nil, nil }

func (l *Local) OpenGames(context.Context) ([]wire.OpenGame, error) { return nil, nil }

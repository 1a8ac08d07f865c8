// Package connector abstracts where a game lives. A connector resolves a
// game key to an initial position plus move history, relays moves made on
// the board, and surfaces state pushed from the far side, if any.
package connector

import (
	"context"
	"errors"

	"github.com/kapu/e-chess/pkg/wire"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrInvalidFEN      = errors.New("invalid fen")
	ErrInvalidResponse = errors.New("invalid response")
	ErrRequestFailed   = errors.New("request failed")
)

// Snapshot is the load-time view of a game: where it starts and every move
// played so far, in UCI, oldest first.
type Snapshot struct {
	GameID     string
	InitialFEN string
	Moves      []string
}

// Connector routes game operations to their source of truth.
//
// Accepts reports whether the key looks like something this connector can
// load; the first accepting connector wins. SubmitMove returns whether the
// move was accepted. NextEvent never blocks: it returns the next pending
// pushed state or (nil, nil) when there is none.
type Connector interface {
	Accepts(key string) bool
	LoadGame(ctx context.Context, key string) (*Snapshot, error)
	SubmitMove(ctx context.Context, uci string) (bool, error)
	NextEvent() (*wire.GameState, error)
	OpenGames(ctx context.Context) ([]wire.OpenGame, error)
}

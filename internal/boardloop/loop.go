// Package boardloop runs the periodic reconciliation cycle: drain queued
// commands, fold in pushed remote state, evaluate one sensor mask, render.
package boardloop

import (
	"context"
	"time"

	chess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/kapu/e-chess/internal/bitboard"
	"github.com/kapu/e-chess/internal/connector"
	"github.com/kapu/e-chess/internal/display"
	"github.com/kapu/e-chess/internal/game"
	"github.com/kapu/e-chess/pkg/wire"
)

// Command is a queued instruction for the loop. Commands are drained
// non-blockingly at the start of each cycle; senders never wait on game
// logic.
type Command interface{ command() }

// UpdatePhysical reports the latest full sensor mask.
type UpdatePhysical struct{ Mask bitboard.Mask }

// LoadGame resolves the key against the configured connectors and replaces
// the active game.
type LoadGame struct{ Key string }

// ListOpenGames asks the remote side for joinable games. The reply channel
// receives one result and is closed.
type ListOpenGames struct{ Reply chan<- []wire.OpenGame }

type RequestTakeBack struct{ Color chess.Color }

type CancelTakeBack struct{ Color chess.Color }

func (UpdatePhysical) command()  {}
func (LoadGame) command()        {}
func (ListOpenGames) command()   {}
func (RequestTakeBack) command() {}
func (CancelTakeBack) command()  {}

// Archiver persists a finished game. Optional.
type Archiver interface {
	SaveResult(ctx context.Context, g *game.Game, endedAt time.Time) error
}

type Loop struct {
	connectors []connector.Connector
	renderer   display.Renderer
	archiver   Archiver
	logger     *zap.Logger
	interval   time.Duration

	commands chan Command
	states   chan game.StateEvent

	game      *game.Game
	mask      bitboard.Mask
	haveMask  bool
	lastState game.StateEvent
	archived  bool
}

type Option func(*Loop)

func WithRenderer(r display.Renderer) Option {
	return func(l *Loop) { l.renderer = r }
}

func WithArchiver(a Archiver) Option {
	return func(l *Loop) { l.archiver = a }
}

func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

func New(connectors []connector.Connector, logger *zap.Logger, opts ...Option) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loop{
		connectors: connectors,
		renderer:   display.Nop{},
		logger:     logger,
		interval:   100 * time.Millisecond,
		commands:   make(chan Command, 32),
		states:     make(chan game.StateEvent, 16),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit queues a command without blocking. It reports false when the queue
// is full.
func (l *Loop) Submit(cmd Command) bool {
	select {
	case l.commands <- cmd:
		return true
	default:
		l.logger.Warn("loop_command_dropped")
		return false
	}
}

// States delivers a snapshot whenever the logical game changes.
func (l *Loop) States() <-chan game.StateEvent { return l.states }

// Run drives the cycle until ctx ends.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	defer close(l.states)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.drainCommands(ctx)
			l.cycle(ctx)
		}
	}
}

func (l *Loop) drainCommands(ctx context.Context) {
	for {
		select {
		case cmd := <-l.commands:
			l.handle(ctx, cmd)
		default:
			return
		}
	}
}

func (l *Loop) handle(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case UpdatePhysical:
		l.mask = c.Mask
		l.haveMask = true
	case LoadGame:
		l.loadGame(ctx, c.Key)
	case ListOpenGames:
		go l.listOpenGames(ctx, c.Reply)
	case RequestTakeBack:
		if l.game != nil {
			if err := l.game.RequestTakeBack(c.Color); err != nil {
				l.logger.Info("take_back_refused", zap.Error(err))
			}
		}
	case CancelTakeBack:
		if l.game != nil {
			l.game.CancelTakeBack(c.Color)
		}
	}
}

func (l *Loop) loadGame(ctx context.Context, key string) {
	conn := l.connectorFor(key)
	if conn == nil {
		l.logger.Warn("no_connector_for_key", zap.String("key", key))
		return
	}
	g, err := game.Load(ctx, conn, key, l.logger)
	if err != nil {
		l.logger.Error("game_load_failed", zap.String("key", key), zap.Error(err))
		return
	}
	l.game = g
	l.haveMask = false
	l.archived = false
	l.lastState = game.StateEvent{}
	l.publishState()
}

func (l *Loop) connectorFor(key string) connector.Connector {
	for _, c := range l.connectors {
		if c.Accepts(key) {
			return c
		}
	}
	return nil
}

// listOpenGames runs off-loop: it blocks on the bridge and must not stall a
// cycle.
func (l *Loop) listOpenGames(ctx context.Context, reply chan<- []wire.OpenGame) {
	defer close(reply)
	for _, c := range l.connectors {
		games, err := c.OpenGames(ctx)
		if err != nil {
			l.logger.Warn("open_games_failed", zap.Error(err))
			continue
		}
		if len(games) > 0 {
			reply <- games
			return
		}
	}
}

func (l *Loop) cycle(ctx context.Context) {
	if l.game == nil {
		return
	}

	if err := l.game.PollRemote(ctx); err != nil {
		l.logger.Warn("remote_poll_failed", zap.Error(err))
	}

	if l.haveMask {
		ev := l.game.Tick(ctx, l.mask)
		switch ev.Kind {
		case game.EventMoveRejected:
			l.logger.Info("move_rejected", zap.String("uci", ev.Move), zap.Error(ev.Err))
		case game.EventAmbiguous:
			// Board must be restored; keep rendering the old expectation.
		}
	}

	l.publishState()
	l.maybeArchive(ctx)
	l.renderer.Render(l.game.View())
}

func (l *Loop) publishState() {
	st := l.game.State()
	if st.Equal(l.lastState) {
		return
	}
	l.lastState = st
	select {
	case l.states <- st:
	default:
		l.logger.Debug("state_listener_behind")
	}
}

func (l *Loop) maybeArchive(ctx context.Context) {
	if l.archiver == nil || l.archived || !l.game.Over() {
		return
	}
	l.archived = true
	if err := l.archiver.SaveResult(ctx, l.game, time.Now()); err != nil {
		l.logger.Error("archive_failed", zap.String("game_id", l.game.ID()), zap.Error(err))
	}
}

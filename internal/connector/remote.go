package connector

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/e-chess/internal/bridge"
	"github.com/kapu/e-chess/pkg/wire"
)

const (
	eventQueueLen = 8

	// defaultLoadWait bounds how long LoadGame waits for the stream's first
	// line. Without it a companion that opens the stream but never writes
	// would block the caller forever.
	defaultLoadWait = 10 * time.Second
)

// Remote plays against a server-hosted opponent through a Requester. Loading
// a game opens a state stream; pushed positions queue up for the game loop
// to drain between ticks.
type Remote struct {
	req    bridge.Requester
	logger *zap.Logger

	pingSeq  atomic.Uint32
	loadWait time.Duration

	mu         sync.Mutex
	gameID     string
	lastMoves  []string
	events     chan wire.GameState
	cancelFeed context.CancelFunc
}

func NewRemote(req bridge.Requester, logger *zap.Logger) *Remote {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remote{req: req, logger: logger, loadWait: defaultLoadWait}
}

// Accepts matches server game ids: 8 to 12 alphanumeric characters.
func (r *Remote) Accepts(key string) bool {
	if len(key) < 8 || len(key) > 12 {
		return false
	}
	for _, c := range key {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

// LoadGame opens the game's state stream. The first line must be the loaded
// snapshot; everything after is consumed in the background and surfaced via
// NextEvent.
func (r *Remote) LoadGame(ctx context.Context, key string) (*Snapshot, error) {
	r.closeFeed()

	feedCtx, cancel := context.WithCancel(context.Background())
	out := make(chan string, 16)
	if err := r.req.Stream(feedCtx, "games/"+key, out); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	timer := time.NewTimer(r.loadWait)
	defer timer.Stop()

	var first string
	select {
	case line, ok := <-out:
		if !ok {
			cancel()
			return nil, ErrGameNotFound
		}
		first = line
	case <-timer.C:
		cancel()
		return nil, fmt.Errorf("%w: no snapshot for %q", bridge.ErrTimeout, key)
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	msg, err := wire.Decode([]byte(first))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	loaded, ok := msg.(wire.GameLoaded)
	if !ok {
		cancel()
		if e, isErr := msg.(wire.Error); isErr {
			return nil, fmt.Errorf("%w: %s", ErrGameNotFound, e.Message)
		}
		return nil, fmt.Errorf("%w: first stream line is %s", ErrInvalidResponse, msg.Kind())
	}

	r.mu.Lock()
	r.gameID = key
	r.lastMoves = append([]string(nil), loaded.Moves...)
	r.events = make(chan wire.GameState, eventQueueLen)
	r.cancelFeed = cancel
	events := r.events
	r.mu.Unlock()

	go r.feed(key, out, events)

	return &Snapshot{
		GameID:     key,
		InitialFEN: loaded.InitialFEN,
		Moves:      loaded.Moves,
	}, nil
}

// feed decodes pushed stream lines and queues game states, newest kept when
// the queue is full.
func (r *Remote) feed(key string, out <-chan string, events chan wire.GameState) {
	for line := range out {
		msg, err := wire.Decode([]byte(line))
		if err != nil {
			r.logger.Warn("remote_stream_decode_failed", zap.String("game", key), zap.Error(err))
			continue
		}
		gs, ok := msg.(wire.GameState)
		if !ok {
			r.logger.Debug("remote_stream_ignored", zap.String("game", key), zap.String("kind", string(msg.Kind())))
			continue
		}

		r.mu.Lock()
		r.lastMoves = append([]string(nil), gs.Moves...)
		r.mu.Unlock()

		for {
			select {
			case events <- gs:
			default:
				select {
				case <-events:
				default:
				}
				continue
			}
			break
		}
	}
	r.logger.Info("remote_stream_ended", zap.String("game", key))
}

// NextEvent returns the oldest pending pushed state, or (nil, nil) when the
// queue is empty. It never blocks.
func (r *Remote) NextEvent() (*wire.GameState, error) {
	r.mu.Lock()
	events := r.events
	r.mu.Unlock()
	if events == nil {
		return nil, nil
	}
	select {
	case gs := <-events:
		return &gs, nil
	default:
		return nil, nil
	}
}

// SubmitMove relays a board move to the server. A move that matches the tail
// of the last pushed history is the opponent's own move being mirrored on
// the board, so it is acknowledged without a round trip.
func (r *Remote) SubmitMove(ctx context.Context, uci string) (bool, error) {
	r.mu.Lock()
	gameID := r.gameID
	mirrored := len(r.lastMoves) > 0 && r.lastMoves[len(r.lastMoves)-1] == uci
	r.mu.Unlock()

	if gameID == "" {
		return false, ErrGameNotFound
	}
	if mirrored {
		return true, nil
	}

	body, err := r.req.Post(ctx, "games/"+gameID+"/move/"+uci, "")
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	msg, err := wire.Decode([]byte(body))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	applied, ok := msg.(wire.MoveApplied)
	if !ok {
		return false, fmt.Errorf("%w: move reply is %s", ErrInvalidResponse, msg.Kind())
	}
	if !applied.OK {
		r.logger.Info("remote_move_rejected", zap.String("uci", uci), zap.String("reason", applied.Message))
	}
	return applied.OK, nil
}

func (r *Remote) OpenGames(ctx context.Context) ([]wire.OpenGame, error) {
	body, err := r.req.Get(ctx, "games")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	msg, err := wire.Decode([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	list, ok := msg.(wire.GameList)
	if !ok {
		return nil, fmt.Errorf("%w: games reply is %s", ErrInvalidResponse, msg.Kind())
	}
	return list.Games, nil
}

// Ping round-trips a sequence number to verify the far side is live.
func (r *Remote) Ping(ctx context.Context) error {
	id := r.pingSeq.Add(1)
	body, err := r.req.Get(ctx, "ping/"+strconv.FormatUint(uint64(id), 10))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	msg, err := wire.Decode([]byte(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	pong, ok := msg.(wire.Pong)
	if !ok || pong.ID != id {
		return fmt.Errorf("%w: bad pong for ping %d", ErrInvalidResponse, id)
	}
	return nil
}

// Close stops the state stream, if any.
func (r *Remote) Close() {
	r.closeFeed()
}

func (r *Remote) closeFeed() {
	r.mu.Lock()
	cancel := r.cancelFeed
	r.cancelFeed = nil
	r.events = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

package link

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/kapu/e-chess/pkg/wire"
)

// State tracks the websocket link lifecycle.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

type StateCallback func(state State)

var ErrNotConnected = errors.New("link not connected")

// WebSocketLink is the companion-app transport for development setups where
// the phone bridge is reached over Wi-Fi instead of the radio. Frames are
// still chunked to the radio payload size so both sides run the same
// reassembly path as the constrained link.
type WebSocketLink struct {
	url string

	conn   *websocket.Conn
	connMu sync.Mutex

	state   State
	stateM  sync.RWMutex
	stateCb StateCallback

	frames chan []byte
	asm    *wire.Assembler

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	logger *zap.Logger
}

func NewWebSocketLink(url string, maxReconnectAttempts int, reconnectDelay time.Duration, logger *zap.Logger) *WebSocketLink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketLink{
		url:                  url,
		state:                StateDisconnected,
		frames:               make(chan []byte, 64),
		asm:                  wire.NewAssembler(wire.MaxAssembleBytes),
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		logger:               logger,
	}
}

func (l *WebSocketLink) OnStateChange(cb StateCallback) {
	l.stateM.Lock()
	l.stateCb = cb
	l.stateM.Unlock()
}

func (l *WebSocketLink) Connect(ctx context.Context) error {
	l.stateM.RLock()
	busy := l.state == StateConnected || l.state == StateConnecting
	l.stateM.RUnlock()
	if busy {
		return nil
	}

	l.rootCtx, l.rootCancel = context.WithCancel(context.Background())
	l.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, l.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		l.setState(StateFailed)
		l.scheduleReconnect()
		return err
	}

	l.setConn(conn)
	l.setState(StateConnected)

	l.wg.Add(2)
	go l.listen()
	go l.pingLoop()
	return nil
}

func (l *WebSocketLink) Send(frame []byte) error {
	l.connMu.Lock()
	conn := l.conn
	l.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	for _, chunk := range wire.Chunks(frame, wire.MaxChunkPayload) {
		ctx, cancel := context.WithTimeout(l.rootCtx, 5*time.Second)
		err := conn.Write(ctx, websocket.MessageText, chunk)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *WebSocketLink) Recv() <-chan []byte { return l.frames }

func (l *WebSocketLink) listen() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		l.connMu.Lock()
		conn := l.conn
		l.connMu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(l.rootCtx)
		if err != nil {
			if l.isStopping() {
				return
			}
			l.setState(StateDisconnected)
			_ = l.closeConn(websocket.StatusGoingAway, "reconnect")
			l.scheduleReconnect()
			return
		}

		frames, dropped := l.asm.Push(data)
		if dropped {
			l.logger.Warn("link_reassembly_overflow", zap.Int("write_len", len(data)))
		}
		for _, f := range frames {
			select {
			case l.frames <- f:
			default:
				l.logger.Warn("link_frame_queue_full")
			}
		}
	}
}

func (l *WebSocketLink) pingLoop() {
	defer l.wg.Done()
	t := time.NewTicker(l.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-l.stopCh:
			return
		case <-t.C:
			l.connMu.Lock()
			conn := l.conn
			l.connMu.Unlock()
			if conn == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(l.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				failures++
				if failures >= 2 {
					if l.isStopping() {
						return
					}
					l.setState(StateDisconnected)
					_ = l.closeConn(websocket.StatusGoingAway, "ping failure")
					l.scheduleReconnect()
					failures = 0
				}
				continue
			}
			failures = 0
		}
	}
}

func (l *WebSocketLink) scheduleReconnect() {
	if l.maxReconnectAttempts <= 0 {
		l.finish()
		return
	}
	l.setState(StateReconnecting)

	go func() {
		for attempt := 1; attempt <= l.maxReconnectAttempts; attempt++ {
			select {
			case <-l.stopCh:
				return
			case <-time.After(l.backoff(attempt)):
			}

			dialCtx, cancel := context.WithTimeout(l.rootCtx, 10*time.Second)
			conn, _, err := websocket.Dial(dialCtx, l.url, &websocket.DialOptions{
				CompressionMode: websocket.CompressionNoContextTakeover,
			})
			cancel()
			if err != nil {
				l.logger.Warn("link_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}

			l.setConn(conn)
			l.setState(StateConnected)

			l.wg.Add(2)
			go l.listen()
			go l.pingLoop()
			return
		}
		l.setState(StateFailed)
		l.finish()
	}()
}

func (l *WebSocketLink) backoff(attempt int) time.Duration {
	d := l.reconnectDelay * time.Duration(attempt)
	if max := 30 * time.Second; d > max {
		d = max
	}
	return d
}

// finish closes the frames channel so readers observe a dead link.
func (l *WebSocketLink) finish() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		close(l.frames)
	})
}

func (l *WebSocketLink) Close(ctx context.Context) error {
	l.finish()
	_ = l.closeConn(websocket.StatusNormalClosure, "close")

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if l.rootCancel != nil {
			l.rootCancel()
		}
		return nil
	}
}

func (l *WebSocketLink) setConn(conn *websocket.Conn) {
	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()
}

func (l *WebSocketLink) closeConn(code websocket.StatusCode, reason string) error {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	return conn.Close(code, reason)
}

func (l *WebSocketLink) isStopping() bool {
	select {
	case <-l.stopCh:
		return true
	default:
		return false
	}
}

func (l *WebSocketLink) setState(state State) {
	l.stateM.Lock()
	l.state = state
	cb := l.stateCb
	l.stateM.Unlock()
	if cb != nil {
		cb(state)
	}
}

// CurrentState reports the last observed link state.
func (l *WebSocketLink) CurrentState() State {
	l.stateM.RLock()
	defer l.stateM.RUnlock()
	return l.state
}

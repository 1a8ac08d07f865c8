// Package bridge multiplexes request/response/stream traffic over the
// companion link. The board cannot reach the network itself; every remote
// operation becomes a proxied request the companion resolves on its behalf.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/e-chess/internal/link"
	"github.com/kapu/e-chess/pkg/wire"
)

var (
	ErrTimeout = errors.New("timeout waiting for response")
	ErrClosed  = errors.New("link closed")
)

// Requester issues remote operations against abstract targets such as
// "games" or "games/<id>/move/<uci>". Get and Post block until a response or
// failure. Stream returns immediately; complete response lines arrive on out
// until the stream ends, at which point out is closed.
type Requester interface {
	Get(ctx context.Context, target string) (string, error)
	Post(ctx context.Context, target, body string) (string, error)
	Stream(ctx context.Context, target string, out chan<- string) error
}

const waiterQueueLen = 16

// Bridge tracks outstanding requests by id and routes inbound frames to the
// matching waiter. Ids come from a single monotonic counter and are never
// reused while still present in the table.
type Bridge struct {
	tr      link.Transport
	timeout time.Duration
	logger  *zap.Logger

	nextID atomic.Uint32

	mu      sync.Mutex
	waiters map[uint32]chan wire.Message
	down    bool

	done chan struct{}
}

func New(tr link.Transport, timeout time.Duration, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Bridge{
		tr:      tr,
		timeout: timeout,
		logger:  logger,
		waiters: make(map[uint32]chan wire.Message),
		done:    make(chan struct{}),
	}
}

// Run is the dispatcher loop. It blocks on the transport's receive channel
// and exits only when that channel is disconnected, failing every waiter
// still in the table.
func (b *Bridge) Run() {
	defer close(b.done)
	for frame := range b.tr.Recv() {
		msg, err := wire.Decode(frame)
		if err != nil {
			b.logger.Warn("bridge_frame_decode_failed", zap.Error(err))
			continue
		}

		var id uint32
		switch m := msg.(type) {
		case wire.Response:
			id = m.ID
		case wire.StreamData:
			id = m.ID
		case wire.StreamClosed:
			id = m.ID
		default:
			b.logger.Warn("bridge_unexpected_kind", zap.String("kind", string(msg.Kind())))
			continue
		}

		b.mu.Lock()
		ch, ok := b.waiters[id]
		b.mu.Unlock()
		if !ok {
			// Late or cancelled: dropped, never buffered speculatively.
			b.logger.Debug("bridge_drop_unclaimed", zap.Uint32("id", id), zap.String("kind", string(msg.Kind())))
			continue
		}
		select {
		case ch <- msg:
		default:
			b.logger.Warn("bridge_waiter_queue_full", zap.Uint32("id", id))
		}
	}

	b.logger.Info("bridge_dispatcher_exit")
	b.failAll()
}

// Done closes once the dispatcher has exited.
func (b *Bridge) Done() <-chan struct{} { return b.done }

func (b *Bridge) Get(ctx context.Context, target string) (string, error) {
	return b.call(ctx, wire.MethodGet, target, "")
}

func (b *Bridge) Post(ctx context.Context, target, body string) (string, error) {
	return b.call(ctx, wire.MethodPost, target, body)
}

// Stream registers a waiter and returns once the request is on the wire.
// Stream data is line-buffered: out receives complete lines only, and is
// closed when the companion closes the stream, the link dies, or ctx ends.
func (b *Bridge) Stream(ctx context.Context, target string, out chan<- string) error {
	id, ch, err := b.open()
	if err != nil {
		close(out)
		return err
	}

	if err := b.send(wire.Request{ID: id, Method: wire.MethodStream, Target: target}); err != nil {
		b.remove(id)
		close(out)
		return err
	}

	go b.forward(ctx, id, ch, out)
	return nil
}

func (b *Bridge) call(ctx context.Context, method wire.Method, target, body string) (string, error) {
	id, ch, err := b.open()
	if err != nil {
		return "", err
	}
	defer b.remove(id)

	if err := b.send(wire.Request{ID: id, Method: method, Target: target, Body: body}); err != nil {
		return "", err
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return "", ErrClosed
			}
			switch m := msg.(type) {
			case wire.Response:
				return m.Body, nil
			case wire.StreamClosed:
				return "", nil
			default:
				b.logger.Warn("bridge_unexpected_reply", zap.Uint32("id", id), zap.String("kind", string(msg.Kind())))
			}
		case <-timer.C:
			b.sendCancel(id)
			return "", ErrTimeout
		case <-ctx.Done():
			b.sendCancel(id)
			return "", ctx.Err()
		}
	}
}

// forward accumulates stream chunks and emits complete lines.
func (b *Bridge) forward(ctx context.Context, id uint32, ch <-chan wire.Message, out chan<- string) {
	defer close(out)
	var buf strings.Builder

	flush := func() {
		text := buf.String()
		buf.Reset()
		for {
			pos := strings.IndexByte(text, '\n')
			if pos < 0 {
				break
			}
			line := strings.TrimSpace(text[:pos])
			text = text[pos+1:]
			if line != "" {
				out <- line
			}
		}
		buf.WriteString(text)
	}

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			switch m := msg.(type) {
			case wire.StreamData:
				buf.WriteString(m.Chunk)
				flush()
			case wire.StreamClosed:
				b.remove(id)
				return
			default:
				b.logger.Warn("bridge_unexpected_stream_reply", zap.Uint32("id", id), zap.String("kind", string(msg.Kind())))
			}
		case <-ctx.Done():
			b.remove(id)
			b.sendCancel(id)
			return
		}
	}
}

// open reserves the next request id and registers its reply channel.
func (b *Bridge) open() (uint32, chan wire.Message, error) {
	id := b.nextID.Add(1)
	ch := make(chan wire.Message, waiterQueueLen)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return 0, nil, ErrClosed
	}
	b.waiters[id] = ch
	return id, ch, nil
}

// remove drops the waiter; any later frame for this id is discarded by the
// dispatcher. Removal is the cancellation primitive.
func (b *Bridge) remove(id uint32) {
	b.mu.Lock()
	delete(b.waiters, id)
	b.mu.Unlock()
}

func (b *Bridge) send(msg wire.Message) error {
	frame, err := wire.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := b.tr.Send(frame); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	return nil
}

func (b *Bridge) sendCancel(id uint32) {
	if err := b.send(wire.Cancel{ID: id}); err != nil {
		b.logger.Debug("bridge_cancel_send_failed", zap.Uint32("id", id), zap.Error(err))
	}
}

// failAll resolves every outstanding waiter with a closed channel.
func (b *Bridge) failAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = true
	for id, ch := range b.waiters {
		close(ch)
		delete(b.waiters, id)
	}
}

// Pending reports the number of outstanding requests, for diagnostics.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiters)
}

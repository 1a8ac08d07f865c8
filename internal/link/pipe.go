package link

import (
	"context"
	"errors"
	"sync"

	"github.com/kapu/e-chess/pkg/wire"
)

var ErrPipeClosed = errors.New("pipe closed")

// Pipe returns two connected in-process transports. Frames written on one
// end are chunked to the radio payload size, pushed through a byte conduit
// and reassembled on the other end, so the full framing path is exercised
// even without a radio. Used by tests and the loopback simulator.
func Pipe() (*PipeEnd, *PipeEnd) {
	ab := make(chan []byte, 256)
	ba := make(chan []byte, 256)

	a := newPipeEnd(ab, ba)
	b := newPipeEnd(ba, ab)
	go a.pump()
	go b.pump()
	return a, b
}

type PipeEnd struct {
	out chan<- []byte // raw chunks towards the peer
	in  <-chan []byte // raw chunks from the peer

	frames chan []byte
	asm    *wire.Assembler

	mu     sync.Mutex
	closed bool
}

func newPipeEnd(out chan<- []byte, in <-chan []byte) *PipeEnd {
	return &PipeEnd{
		out:    out,
		in:     in,
		frames: make(chan []byte, 64),
		asm:    wire.NewAssembler(wire.MaxAssembleBytes),
	}
}

func (p *PipeEnd) Send(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPipeClosed
	}
	for _, chunk := range wire.Chunks(frame, wire.MaxChunkPayload) {
		c := make([]byte, len(chunk))
		copy(c, chunk)
		p.out <- c
	}
	return nil
}

func (p *PipeEnd) Recv() <-chan []byte { return p.frames }

func (p *PipeEnd) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.out)
	return nil
}

func (p *PipeEnd) pump() {
	defer close(p.frames)
	for chunk := range p.in {
		frames, _ := p.asm.Push(chunk)
		for _, f := range frames {
			p.frames <- f
		}
	}
}

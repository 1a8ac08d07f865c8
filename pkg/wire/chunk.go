package wire

import (
	"bytes"
	"sync"
)

// MaxChunkPayload is the application payload carried by one physical packet.
// Sized for the lowest negotiable BLE ATT MTU (23 bytes minus 3 byte header).
const MaxChunkPayload = 20

// MaxAssembleBytes caps how much undelimited data an Assembler buffers
// before it declares the sender broken and starts over.
const MaxAssembleBytes = 4 * 1024

// Chunks splits an encoded frame into transport-sized pieces. Every piece is
// at most size bytes; size must be >= 1.
func Chunks(frame []byte, size int) [][]byte {
	if size < 1 {
		size = MaxChunkPayload
	}
	out := make([][]byte, 0, (len(frame)+size-1)/size)
	for len(frame) > 0 {
		n := size
		if n > len(frame) {
			n = len(frame)
		}
		out = append(out, frame[:n])
		frame = frame[n:]
	}
	return out
}

// Assembler reassembles chunked writes back into delimiter-terminated
// frames. It is safe for use from a radio receive callback: Push only
// appends bytes and scans for delimiters.
type Assembler struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func NewAssembler(max int) *Assembler {
	if max <= 0 {
		max = MaxAssembleBytes
	}
	return &Assembler{max: max}
}

// Push appends data and returns every complete frame now available, each
// including its trailing delimiter. When the undelimited tail would exceed
// the configured maximum the buffer is cleared, the write is dropped and
// dropped reports true.
func (a *Assembler) Push(data []byte) (frames [][]byte, dropped bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buf = append(a.buf, data...)

	for {
		pos := bytes.IndexAny(a.buf, "\n\r")
		if pos < 0 {
			break
		}
		frame := make([]byte, pos+1)
		copy(frame, a.buf[:pos+1])
		a.buf = a.buf[pos+1:]
		if len(bytes.TrimRight(frame, "\r\n")) > 0 {
			frames = append(frames, frame)
		}
	}

	if len(a.buf) > a.max {
		a.buf = nil
		return frames, true
	}
	return frames, false
}

// Package link carries encoded wire frames between the board core and the
// companion device. Implementations chunk outgoing frames to the radio
// payload limit and reassemble inbound chunks before delivery.
package link

import "context"

// Transport moves whole frames. Send accepts one delimiter-terminated frame
// and performs the chunked writes itself. Recv yields complete inbound
// frames; the channel closes when the link is gone for good.
type Transport interface {
	Send(frame []byte) error
	Recv() <-chan []byte
	Close(ctx context.Context) error
}

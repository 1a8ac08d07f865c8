package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is stamped into every outgoing frame. Frames carrying a
// different version are rejected by Decode; unknown payload fields are
// ignored for forward compatibility.
const ProtocolVersion = 1

var (
	ErrVersion     = errors.New("unsupported protocol version")
	ErrUnknownKind = errors.New("unknown message kind")
)

type frameHead struct {
	V    *uint8 `json:"v"`
	Type Kind   `json:"type"`
}

// Encode serializes msg into a newline-terminated frame with the protocol
// version and kind flattened alongside the payload fields.
func Encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	fields["v"] = json.RawMessage(fmt.Sprintf("%d", ProtocolVersion))
	fields["type"] = json.RawMessage(fmt.Sprintf("%q", msg.Kind()))

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	return append(out, '\n'), nil
}

// Decode parses one frame (with or without its trailing delimiter) back into
// a typed message.
func Decode(frame []byte) (Message, error) {
	frame = bytes.TrimRight(frame, "\r\n")

	var head frameHead
	if err := json.Unmarshal(frame, &head); err != nil {
		return nil, fmt.Errorf("decode frame head: %w", err)
	}
	if head.V == nil || *head.V != ProtocolVersion {
		return nil, ErrVersion
	}

	switch head.Type {
	case KindListGames:
		return decodeAs[ListGames](frame)
	case KindLoadGame:
		return decodeAs[LoadGame](frame)
	case KindMakeMove:
		return decodeAs[MakeMove](frame)
	case KindPing:
		return decodeAs[Ping](frame)
	case KindPong:
		return decodeAs[Pong](frame)
	case KindGameList:
		return decodeAs[GameList](frame)
	case KindGameLoaded:
		return decodeAs[GameLoaded](frame)
	case KindMoveApplied:
		return decodeAs[MoveApplied](frame)
	case KindGameState:
		return decodeAs[GameState](frame)
	case KindError:
		return decodeAs[Error](frame)
	case KindRequest:
		return decodeAs[Request](frame)
	case KindCancel:
		return decodeAs[Cancel](frame)
	case KindResponse:
		return decodeAs[Response](frame)
	case KindStreamData:
		return decodeAs[StreamData](frame)
	case KindStreamClosed:
		return decodeAs[StreamClosed](frame)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, head.Type)
	}
}

func decodeAs[T Message](frame []byte) (Message, error) {
	var msg T
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", msg.Kind(), err)
	}
	return msg, nil
}

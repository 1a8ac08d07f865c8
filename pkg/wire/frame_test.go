package wire

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msgs := []Message{
		ListGames{},
		LoadGame{ID: "abcd1234"},
		MakeMove{UCI: "e2e4"},
		Ping{ID: 7},
		Pong{ID: 7},
		GameList{Games: []OpenGame{{GameID: "abcd1234", Opponent: Opponent{ID: "op1", Username: "maia1"}}}},
		GameLoaded{InitialFEN: "startpos", Moves: []string{"e2e4", "e7e5"}},
		MoveApplied{OK: false, Message: "illegal move"},
		GameState{Moves: []string{"e2e4"}, WhiteRequestTakeBack: true},
		Error{Message: "boom"},
		Request{ID: 42, Method: MethodStream, Target: "games/42"},
		Cancel{ID: 42},
		Response{ID: 42, Body: "{}"},
		StreamData{ID: 42, Chunk: "partial"},
		StreamClosed{ID: 42},
	}

	for _, msg := range msgs {
		frame, err := Encode(msg)
		if err != nil {
			t.Fatalf("Encode(%s): %v", msg.Kind(), err)
		}
		if !bytes.HasSuffix(frame, []byte("\n")) {
			t.Fatalf("Encode(%s): frame missing newline delimiter", msg.Kind())
		}

		got, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode(%s): %v", msg.Kind(), err)
		}
		if !reflect.DeepEqual(got, msg) {
			t.Fatalf("round trip %s: got %#v want %#v", msg.Kind(), got, msg)
		}
	}
}

func TestEncodeFlattensEnvelope(t *testing.T) {
	frame, err := Encode(Request{ID: 9, Method: MethodGet, Target: "ping/9"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(bytes.TrimRight(frame, "\n"), &fields); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if fields["v"] != float64(ProtocolVersion) {
		t.Fatalf("frame version = %v", fields["v"])
	}
	if fields["type"] != "request" {
		t.Fatalf("frame type = %v", fields["type"])
	}
	if fields["id"] != float64(9) || fields["target"] != "ping/9" {
		t.Fatalf("payload not flattened: %v", fields)
	}
	if _, ok := fields["body"]; ok {
		t.Fatalf("empty body should be omitted: %v", fields)
	}
}

func TestDecodeRejectsForeignVersion(t *testing.T) {
	if _, err := Decode([]byte(`{"v":99,"type":"ping","id":1}` + "\n")); err != ErrVersion {
		t.Fatalf("expected ErrVersion, got %v", err)
	}
	if _, err := Decode([]byte(`{"type":"ping","id":1}` + "\n")); err != ErrVersion {
		t.Fatalf("missing version: expected ErrVersion, got %v", err)
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	got, err := Decode([]byte(`{"v":1,"type":"make_move","uci":"g1f3","later_addition":true}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.(MakeMove).UCI != "g1f3" {
		t.Fatalf("unexpected payload: %#v", got)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	if _, err := Decode([]byte(`{"v":1,"type":"telemetry"}`)); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

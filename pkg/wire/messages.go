// Package wire defines the versioned message protocol spoken between the
// board core and the companion device. Messages travel as single-line JSON
// frames; the transport layer splits frames into radio-sized chunks.
package wire

// Kind discriminates the flattened message payload of a Frame.
type Kind string

const (
	// Board -> companion.
	KindListGames Kind = "list_games"
	KindLoadGame  Kind = "load_game"
	KindMakeMove  Kind = "make_move"
	KindPing      Kind = "ping"

	// Companion -> board.
	KindPong        Kind = "pong"
	KindGameList    Kind = "game_list"
	KindGameLoaded  Kind = "game_loaded"
	KindMoveApplied Kind = "move_applied"
	KindGameState   Kind = "game_state"
	KindError       Kind = "error"

	// Request proxying sub-protocol, both directions.
	KindRequest      Kind = "request"
	KindCancel       Kind = "cancel"
	KindResponse     Kind = "response"
	KindStreamData   Kind = "stream_data"
	KindStreamClosed Kind = "stream_closed"
)

// Method selects how the companion resolves a proxied request.
type Method string

const (
	MethodGet    Method = "get"
	MethodPost   Method = "post"
	MethodStream Method = "stream"
)

// Message is any payload that can be framed and sent over the link.
type Message interface {
	Kind() Kind
}

type ListGames struct{}

type LoadGame struct {
	ID string `json:"id"`
}

type MakeMove struct {
	UCI string `json:"uci"`
}

type Ping struct {
	ID uint32 `json:"id"`
}

type Pong struct {
	ID uint32 `json:"id"`
}

// Opponent identifies the other player of an open remote game.
type Opponent struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type OpenGame struct {
	GameID   string   `json:"game_id"`
	Opponent Opponent `json:"opponent"`
}

type GameList struct {
	Games []OpenGame `json:"games"`
}

// GameLoaded carries the starting position and the moves already played.
// InitialFEN is either a FEN string or the literal "startpos".
type GameLoaded struct {
	InitialFEN string   `json:"initial_fen"`
	Moves      []string `json:"moves"`
}

type MoveApplied struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// GameState is the authoritative remote game snapshot: the full move list in
// UCI order plus the in-flight take-back negotiation flags.
type GameState struct {
	Moves                []string `json:"moves"`
	WhiteRequestTakeBack bool     `json:"white_request_take_back"`
	BlackRequestTakeBack bool     `json:"black_request_take_back"`
}

type Error struct {
	Message string `json:"message"`
}

// Request asks the companion to perform a network operation on the board's
// behalf. Get and Post expect exactly one Response; Stream expects any number
// of StreamData frames followed by StreamClosed.
type Request struct {
	ID     uint32 `json:"id"`
	Method Method `json:"method"`
	Target string `json:"target"`
	Body   string `json:"body,omitempty"`
}

// Cancel tells the companion the board no longer waits on a request id.
type Cancel struct {
	ID uint32 `json:"id"`
}

type Response struct {
	ID   uint32 `json:"id"`
	Body string `json:"body"`
}

type StreamData struct {
	ID    uint32 `json:"id"`
	Chunk string `json:"chunk"`
}

type StreamClosed struct {
	ID uint32 `json:"id"`
}

func (ListGames) Kind() Kind    { return KindListGames }
func (LoadGame) Kind() Kind     { return KindLoadGame }
func (MakeMove) Kind() Kind     { return KindMakeMove }
func (Ping) Kind() Kind         { return KindPing }
func (Pong) Kind() Kind         { return KindPong }
func (GameList) Kind() Kind     { return KindGameList }
func (GameLoaded) Kind() Kind   { return KindGameLoaded }
func (MoveApplied) Kind() Kind  { return KindMoveApplied }
func (GameState) Kind() Kind    { return KindGameState }
func (Error) Kind() Kind        { return KindError }
func (Request) Kind() Kind      { return KindRequest }
func (Cancel) Kind() Kind       { return KindCancel }
func (Response) Kind() Kind     { return KindResponse }
func (StreamData) Kind() Kind   { return KindStreamData }
func (StreamClosed) Kind() Kind { return KindStreamClosed }

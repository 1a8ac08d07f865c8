// Package archive persists finished games. Consulted only at game end; live
// state never touches the database.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	chess "github.com/corentings/chess/v2"
	_ "github.com/lib/pq"

	"github.com/kapu/e-chess/internal/game"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts one finished game keyed by its id, so a replayed
// archive after a reconnect overwrites rather than duplicates.
func (r *Repository) SaveResult(ctx context.Context, g *game.Game, endedAt time.Time) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}
	state := g.State()
	movesRaw, _ := json.Marshal(state.Moves)

	q := `INSERT INTO board_games (
	    game_id, result, result_method, moves_uci, pgn, ended_at
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6
	  ) ON CONFLICT (game_id) DO UPDATE SET
	    result=EXCLUDED.result,
	    result_method=EXCLUDED.result_method,
	    moves_uci=EXCLUDED.moves_uci,
	    pgn=EXCLUDED.pgn,
	    ended_at=EXCLUDED.ended_at`

	_, err := r.db.ExecContext(ctx, q,
		state.GameID,
		resultToken(state.Outcome),
		strings.ToLower(state.Method.String()),
		string(movesRaw),
		g.PGN(),
		endedAt,
	)
	return err
}

func resultToken(outcome chess.Outcome) string {
	switch outcome {
	case chess.WhiteWon:
		return "white"
	case chess.BlackWon:
		return "black"
	case chess.Draw:
		return "draw"
	default:
		return "unfinished"
	}
}

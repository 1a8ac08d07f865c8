package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	chess "github.com/corentings/chess/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/e-chess/internal/archive"
	"github.com/kapu/e-chess/internal/bitboard"
	"github.com/kapu/e-chess/internal/boardloop"
	"github.com/kapu/e-chess/internal/bridge"
	appcfg "github.com/kapu/e-chess/internal/config"
	"github.com/kapu/e-chess/internal/connector"
	"github.com/kapu/e-chess/internal/link"
	"github.com/kapu/e-chess/internal/obslog"
	"github.com/kapu/e-chess/internal/settings"
	"github.com/kapu/e-chess/pkg/wire"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	var connectors []connector.Connector
	var remote *connector.Remote

	switch {
	case cfg.LinkWSURL != "":
		ws := link.NewWebSocketLink(cfg.LinkWSURL, cfg.ReconnectAttempts, cfg.ReconnectDelay, logger)
		ws.OnStateChange(func(state link.State) {
			logger.Info("link_state", zap.String("state", string(state)))
		})
		cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := ws.Connect(cctx)
		cancel()
		if err != nil {
			log.Fatalf("link connect error: %v", err)
		}
		defer ws.Close(context.Background())

		br := bridge.New(ws, cfg.RequestTimeout, logger)
		go br.Run()
		remote = connector.NewRemote(br, logger)
	case cfg.HTTPBaseURL != "":
		req := bridge.NewHTTPRequester(cfg.HTTPBaseURL,
			bridge.WithToken(cfg.APIToken),
			bridge.WithHTTPLogger(logger))
		remote = connector.NewRemote(req, logger)
	}
	if remote != nil {
		defer remote.Close()
		connectors = append(connectors, remote)
	}
	connectors = append(connectors, connector.NewLocal())

	var store settings.Store = settings.NewMemory()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		store = settings.NewRedis(rdb)
	}

	loopOpts := []boardloop.Option{boardloop.WithInterval(cfg.PollInterval)}
	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		defer repo.Close()
		loopOpts = append(loopOpts, boardloop.WithArchiver(repo))
	}

	loop := boardloop.New(connectors, logger, loopOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	go logStates(loop, logger)
	go readCommands(ctx, loop, store, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting_down")
}

func logStates(loop *boardloop.Loop, logger *zap.Logger) {
	for st := range loop.States() {
		logger.Info("game_state",
			zap.String("game_id", st.GameID),
			zap.Int("moves", len(st.Moves)),
			zap.String("turn", st.Turn.String()),
			zap.String("outcome", st.Outcome.String()))
	}
}

// readCommands is the stand-in sensor adapter: it turns stdin lines into
// loop commands. Real hardware feeds UpdatePhysical directly.
func readCommands(ctx context.Context, loop *boardloop.Loop, store settings.Store, logger *zap.Logger) {
	mask := bitboard.Mask(0xFFFF00000000FFFF)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "load":
			key := ""
			if len(fields) > 1 {
				key = strings.Join(fields[1:], " ")
			}
			mask = bitboard.Mask(0xFFFF00000000FFFF)
			loop.Submit(boardloop.LoadGame{Key: key})
			loop.Submit(boardloop.UpdatePhysical{Mask: mask})
		case "mask":
			if len(fields) != 2 {
				fmt.Println("usage: mask <16 hex digits>")
				continue
			}
			v, err := strconv.ParseUint(fields[1], 16, 64)
			if err != nil {
				fmt.Println("bad mask:", err)
				continue
			}
			mask = bitboard.Mask(v)
			loop.Submit(boardloop.UpdatePhysical{Mask: mask})
		case "take", "put":
			if len(fields) != 2 {
				fmt.Printf("usage: %s <square>\n", fields[0])
				continue
			}
			sq, err := bitboard.ParseSquare(fields[1])
			if err != nil {
				fmt.Println(err)
				continue
			}
			if fields[0] == "take" {
				mask = mask.Without(sq)
			} else {
				mask = mask.With(sq)
			}
			loop.Submit(boardloop.UpdatePhysical{Mask: mask})
		case "games":
			reply := make(chan []wire.OpenGame, 1)
			loop.Submit(boardloop.ListOpenGames{Reply: reply})
			go printGames(reply)
		case "takeback", "cancel":
			color, err := parseColor(fields)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if fields[0] == "takeback" {
				loop.Submit(boardloop.RequestTakeBack{Color: color})
			} else {
				loop.Submit(boardloop.CancelTakeBack{Color: color})
			}
		case "set":
			if len(fields) != 3 {
				fmt.Println("usage: set <key> <value>")
				continue
			}
			if err := store.Set(ctx, fields[1], fields[2]); err != nil {
				fmt.Println(err)
			}
		case "get":
			if len(fields) != 2 {
				fmt.Println("usage: get <key>")
				continue
			}
			v, err := store.Get(ctx, fields[1])
			if err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Printf("%s=%s\n", fields[1], v)
		default:
			fmt.Println("commands: load [key] | mask <hex> | take <sq> | put <sq> | games | takeback <color> | cancel <color> | set <k> <v> | get <k>")
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("stdin_read_failed", zap.Error(err))
	}
}

func printGames(reply <-chan []wire.OpenGame) {
	games, ok := <-reply
	if !ok || len(games) == 0 {
		fmt.Println("no open games")
		return
	}
	for _, g := range games {
		fmt.Printf("%s  vs %s\n", g.GameID, g.Opponent.Username)
	}
}

func parseColor(fields []string) (chess.Color, error) {
	if len(fields) != 2 {
		return chess.NoColor, fmt.Errorf("usage: %s <white|black>", fields[0])
	}
	switch strings.ToLower(fields[1]) {
	case "white", "w":
		return chess.White, nil
	case "black", "b":
		return chess.Black, nil
	}
	return chess.NoColor, fmt.Errorf("unknown color %q", fields[1])
}

// boardsim drives the reconciliation loop without hardware: a take/put REPL
// plays the part of the reed sensors and the board is drawn in the terminal.
package main

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	chess "github.com/corentings/chess/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kapu/e-chess/internal/bitboard"
	"github.com/kapu/e-chess/internal/boardloop"
	"github.com/kapu/e-chess/internal/bridge"
	"github.com/kapu/e-chess/internal/connector"
	"github.com/kapu/e-chess/internal/display"
	"github.com/kapu/e-chess/internal/obslog"
	"github.com/kapu/e-chess/pkg/wire"
)

var (
	flagHTTP  string
	flagToken string
	flagGame  string
	flagFEN   string
)

var rootCmd = &cobra.Command{
	Use:           "boardsim",
	Short:         "Simulated e-chess board with a take/put REPL",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&flagHTTP, "http", "", "game server base URL for remote play")
	rootCmd.Flags().StringVar(&flagToken, "token", "", "bearer token for the game server")
	rootCmd.Flags().StringVar(&flagGame, "game", "", "remote game id to load on start")
	rootCmd.Flags().StringVar(&flagFEN, "fen", "", "starting position for local play")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	_ = obslog.InitFromEnv()
	logger := obslog.L()

	var connectors []connector.Connector
	if flagHTTP != "" {
		req := bridge.NewHTTPRequester(flagHTTP,
			bridge.WithToken(flagToken),
			bridge.WithHTTPLogger(logger))
		remote := connector.NewRemote(req, logger)
		defer remote.Close()
		connectors = append(connectors, remote)
	}
	connectors = append(connectors, connector.NewLocal())

	term := display.NewTerm()
	defer term.Stop()

	loop := boardloop.New(connectors, logger,
		boardloop.WithInterval(50*time.Millisecond),
		boardloop.WithRenderer(term))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go loop.Run(ctx)

	key := flagGame
	if key == "" {
		key = flagFEN
	}
	mask := bitboard.Mask(0xFFFF00000000FFFF)
	loop.Submit(boardloop.LoadGame{Key: key})
	loop.Submit(boardloop.UpdatePhysical{Mask: mask})

	pterm.Info.Println("take <sq> / put <sq> / games / takeback <color> / cancel <color> / quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "take", "put":
			if len(fields) != 2 {
				pterm.Warning.Printf("usage: %s <square>\n", fields[0])
				continue
			}
			sq, err := bitboard.ParseSquare(fields[1])
			if err != nil {
				pterm.Warning.Println(err)
				continue
			}
			if fields[0] == "take" {
				mask = mask.Without(sq)
			} else {
				mask = mask.With(sq)
			}
			loop.Submit(boardloop.UpdatePhysical{Mask: mask})
		case "load":
			k := ""
			if len(fields) > 1 {
				k = strings.Join(fields[1:], " ")
			}
			mask = bitboard.Mask(0xFFFF00000000FFFF)
			loop.Submit(boardloop.LoadGame{Key: k})
			loop.Submit(boardloop.UpdatePhysical{Mask: mask})
		case "games":
			reply := make(chan []wire.OpenGame, 1)
			loop.Submit(boardloop.ListOpenGames{Reply: reply})
			go showGames(reply)
		case "takeback", "cancel":
			if len(fields) != 2 {
				pterm.Warning.Printf("usage: %s <white|black>\n", fields[0])
				continue
			}
			color := chess.White
			if strings.HasPrefix(strings.ToLower(fields[1]), "b") {
				color = chess.Black
			}
			if fields[0] == "takeback" {
				loop.Submit(boardloop.RequestTakeBack{Color: color})
			} else {
				loop.Submit(boardloop.CancelTakeBack{Color: color})
			}
		default:
			pterm.Warning.Printf("unknown command %q\n", fields[0])
		}
	}
	return scanner.Err()
}

func showGames(reply <-chan []wire.OpenGame) {
	games, ok := <-reply
	if !ok || len(games) == 0 {
		pterm.Info.Println("no open games")
		return
	}
	items := make([]pterm.BulletListItem, 0, len(games))
	for _, g := range games {
		items = append(items, pterm.BulletListItem{
			Level: 0,
			Text:  g.GameID + "  vs " + g.Opponent.Username,
		})
	}
	_ = pterm.DefaultBulletList.WithItems(items).Render()
}

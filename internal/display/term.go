package display

import (
	"strings"

	chess "github.com/corentings/chess/v2"
	"github.com/pterm/pterm"

	"github.com/kapu/e-chess/internal/game"
)

// Term paints the board into a terminal area, redrawing in place. Occupied
// squares show a filled dot, squares where a piece is expected but missing
// an empty dot, and legal destinations for a lifted piece a small marker.
type Term struct {
	area *pterm.AreaPrinter

	occupied *pterm.Style
	missing  *pterm.Style
	target   *pterm.Style
	dim      *pterm.Style
}

func NewTerm() *Term {
	area, _ := pterm.DefaultArea.Start()
	return &Term{
		area:     area,
		occupied: pterm.NewStyle(pterm.FgLightCyan, pterm.Bold),
		missing:  pterm.NewStyle(pterm.FgRed, pterm.Bold),
		target:   pterm.NewStyle(pterm.FgGreen),
		dim:      pterm.NewStyle(pterm.FgGray),
	}
}

func (t *Term) Render(v game.View) {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		sb.WriteString(t.dim.Sprintf("%d ", rank+1))
		for file := 0; file < 8; file++ {
			sq := chess.NewSquare(chess.File(file), chess.Rank(rank))
			sb.WriteString(t.cell(v, sq))
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(t.dim.Sprint("  a b c d e f g h\n"))
	if v.Lifted != nil {
		sb.WriteString(t.target.Sprintf("lifted: %s\n", v.Lifted.Square.String()))
	}
	if v.Over {
		sb.WriteString(t.missing.Sprint("game over\n"))
	}
	t.area.Update(sb.String())
}

func (t *Term) cell(v game.View, sq chess.Square) string {
	switch {
	case v.Actual.Has(sq):
		return t.occupied.Sprint("●")
	case v.Expected.Has(sq):
		return t.missing.Sprint("○")
	case v.LegalTargets.Has(sq):
		return t.target.Sprint("·")
	default:
		return t.dim.Sprint("·")
	}
}

func (t *Term) Stop() {
	if t.area != nil {
		_ = t.area.Stop()
	}
}

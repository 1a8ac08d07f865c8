// Package display renders the reconciliation view for whatever indicator
// hardware is attached. Renderers are fire and forget; they never feed back
// into the game.
package display

import (
	"github.com/kapu/e-chess/internal/game"
)

type Renderer interface {
	Render(v game.View)
}

// Nop is used when no indicator hardware is attached.
type Nop struct{}

func (Nop) Render(game.View) {}

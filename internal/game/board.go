package game

import (
	"fmt"

	"github.com/amalg/go-gridchase/internal/grid"
)

// LoadBoard resolves config.Layout into a fresh layout:
//   - "reference" is the built-in 32×24 arena
//   - "generated" builds a pillar arena from config.Generate
//   - anything else is read as an ASCII map file
func LoadBoard(config Config) (*grid.Layout, error) {
	var (
		layout *grid.Layout
		err    error
	)
	switch config.Layout {
	case LayoutReference:
		layout = grid.ReferenceLayout()
	case LayoutGenerated:
		layout = grid.GenerateLayout(config.Generate)
	default:
		layout, err = grid.LoadLayout(config.Layout)
		if err != nil {
			return nil, err
		}
	}
	if len(layout.PlayerSpawns) == 0 {
		return nil, fmt.Errorf("layout %q: %w", layout.Name, ErrNoSpawns)
	}
	return layout, nil
}

package grid

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyGrid  = errors.New("grid has no cells")
	ErrRaggedGrid = errors.New("grid rows differ in length")
)

// Grid is a fixed-size W×H array of tile codes. It is not safe for
// concurrent mutation; the owner serializes writes (BreakTile, SetTile) with
// respect to searches, or hands searchers a Clone.
type Grid struct {
	width  int
	height int
	tiles  []TileCode
}

// New creates a width×height grid filled with Floor.
func New(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Grid{
		width:  width,
		height: height,
		tiles:  make([]TileCode, width*height),
	}
}

// FromRows builds a grid from row-major tile codes (rows[y][x]).
func FromRows(rows [][]TileCode) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyGrid
	}
	g := New(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != g.width {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w", y, len(row), g.width, ErrRaggedGrid)
		}
		copy(g.tiles[y*g.width:(y+1)*g.width], row)
	}
	return g, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// InBounds reports whether (x,y) lies within [0,W)×[0,H).
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

// TileCodeAt returns the code at (x,y). Out-of-bounds reads return Wall.
func (g *Grid) TileCodeAt(x, y int) TileCode {
	if !g.InBounds(x, y) {
		return Wall
	}
	return g.tiles[y*g.width+x]
}

// IsTraversable reports whether (x,y) is in bounds and not blocking.
func (g *Grid) IsTraversable(x, y int) bool {
	if !g.InBounds(x, y) {
		return false
	}
	return !g.tiles[y*g.width+x].Blocking()
}

// SetTile overwrites a cell. Out-of-bounds writes are ignored and report false.
func (g *Grid) SetTile(x, y int, code TileCode) bool {
	if !g.InBounds(x, y) {
		return false
	}
	g.tiles[y*g.width+x] = code
	return true
}

// BreakTile converts a Breakable tile into Floor. It returns true only when a
// tile was actually broken.
func (g *Grid) BreakTile(x, y int) bool {
	if !g.InBounds(x, y) {
		return false
	}
	idx := y*g.width + x
	if g.tiles[idx] != Breakable {
		return false
	}
	g.tiles[idx] = Floor
	return true
}

// Clone returns an independent snapshot of the grid.
func (g *Grid) Clone() *Grid {
	tiles := make([]TileCode, len(g.tiles))
	copy(tiles, g.tiles)
	return &Grid{width: g.width, height: g.height, tiles: tiles}
}

// Rows returns a deep copy in row-major order, suitable for serialization.
func (g *Grid) Rows() [][]TileCode {
	rows := make([][]TileCode, g.height)
	for y := range rows {
		rows[y] = make([]TileCode, g.width)
		copy(rows[y], g.tiles[y*g.width:(y+1)*g.width])
	}
	return rows
}

// Count returns how many cells hold the given code.
func (g *Grid) Count(code TileCode) int {
	n := 0
	for _, t := range g.tiles {
		if t == code {
			n++
		}
	}
	return n
}

package steer

import (
	"math"

	"github.com/amalg/go-gridchase/internal/grid"
)

// Vec2 is a continuous position in world units (pixels).
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

func (v Vec2) Scale(s float64) Vec2 { return Vec2{X: v.X * s, Y: v.Y * s} }

func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Dist is the Euclidean distance between v and o.
func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Len() }

// TileCenter returns the world position of the centre of tile p.
func TileCenter(p grid.Point, tileSize float64) Vec2 {
	return Vec2{
		X: float64(p.X)*tileSize + tileSize*0.5,
		Y: float64(p.Y)*tileSize + tileSize*0.5,
	}
}

// TileAt returns the tile containing v. Negative coordinates floor toward
// minus infinity, so they land outside the grid rather than on row/column 0.
func TileAt(v Vec2, tileSize float64) grid.Point {
	return grid.Point{
		X: int(math.Floor(v.X / tileSize)),
		Y: int(math.Floor(v.Y / tileSize)),
	}
}

package grid

import "fmt"

// TileCode is the terrain code stored in a grid cell.
type TileCode int

const (
	Floor     TileCode = 0 // Walkable ground
	Wall      TileCode = 1 // Indestructible
	Breakable TileCode = 3 // Blocks movement until shot
)

// Blocking reports whether agents may not occupy a tile with this code.
func (c TileCode) Blocking() bool {
	return c == Wall || c == Breakable
}

// Point is an integer tile coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p shifted by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Manhattan returns |dx| + |dy| between p and q.
func (p Point) Manhattan(q Point) int {
	dx := p.X - q.X
	if dx < 0 {
		dx = -dx
	}
	dy := p.Y - q.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Orthogonal neighbour offsets in expansion order: up, right, down, left.
var (
	Up    = Point{X: 0, Y: -1}
	Right = Point{X: 1, Y: 0}
	Down  = Point{X: 0, Y: 1}
	Left  = Point{X: -1, Y: 0}
)

// Neighbors lists the four orthogonal offsets in the fixed expansion order.
var Neighbors = [4]Point{Up, Right, Down, Left}

package pathfind

import (
	"math"

	"github.com/amalg/go-gridchase/internal/grid"
)

// NoParent marks a search node whose parent was never assigned.
var NoParent = grid.Point{X: -1, Y: -1}

const unassigned = math.MaxInt

// searchNode is the per-tile record of one search call.
type searchNode struct {
	g, h, f int
	parent  grid.Point
}

func (n *searchNode) assigned() bool { return n.f != unassigned }

// Scratch holds the per-tile bookkeeping of a search. It is sized to the grid
// and reset at the start of every search, so nothing from a previous call is
// ever observed. A Scratch must not be shared by concurrent searches.
type Scratch struct {
	width  int
	height int
	nodes  []searchNode
	closed []bool
	fifo   []grid.Point
	heap   openHeap
}

// NewScratch allocates scratch space for a width×height grid.
func NewScratch(width, height int) *Scratch {
	s := &Scratch{}
	s.reset(width, height)
	return s
}

// reset sizes the buffers for the grid and clears every record.
func (s *Scratch) reset(width, height int) {
	n := width * height
	if cap(s.nodes) < n {
		s.nodes = make([]searchNode, n)
		s.closed = make([]bool, n)
	}
	s.nodes = s.nodes[:n]
	s.closed = s.closed[:n]
	s.width = width
	s.height = height

	for i := range s.nodes {
		s.nodes[i] = searchNode{g: unassigned, h: unassigned, f: unassigned, parent: NoParent}
	}
	clear(s.closed)
	s.fifo = s.fifo[:0]
	clear(s.heap)
	s.heap = s.heap[:0]
}

func (s *Scratch) index(p grid.Point) int { return p.Y*s.width + p.X }

func (s *Scratch) node(p grid.Point) *searchNode { return &s.nodes[s.index(p)] }

func (s *Scratch) inBounds(p grid.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < s.width && p.Y < s.height
}

package pathfind

import (
	"container/heap"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/amalg/go-gridchase/internal/grid"
	"github.com/amalg/go-gridchase/pkg/logger"
)

// stepCost is the cost of one orthogonal move.
const stepCost = 1

// Oracle answers traversability queries for a W×H grid. Implementations must
// not change while a search is running.
type Oracle interface {
	Width() int
	Height() int
	IsTraversable(x, y int) bool
}

// Mode selects how the open set is expanded.
type Mode int

const (
	// ModeFIFO expands tiles in discovery order and never reopens a closed
	// tile. This is the reference behaviour.
	ModeFIFO Mode = iota
	// ModeOptimal expands the lowest f first and reopens closed tiles when a
	// strictly cheaper route is found.
	ModeOptimal
)

func (m Mode) String() string {
	switch m {
	case ModeFIFO:
		return "fifo"
	case ModeOptimal:
		return "optimal"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "fifo" or "optimal" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fifo":
		return ModeFIFO, nil
	case "optimal", "astar":
		return ModeOptimal, nil
	default:
		return ModeFIFO, fmt.Errorf("unknown search mode %q", s)
	}
}

// MarshalText lets Mode appear as a string in JSON configs.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses the textual form produced by MarshalText.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Path is the ordered tile sequence from the tile after the start up to and
// including the destination. An empty Path means there is nothing to follow.
type Path []grid.Point

// Last returns the final waypoint.
func (p Path) Last() (grid.Point, bool) {
	if len(p) == 0 {
		return grid.Point{}, false
	}
	return p[len(p)-1], true
}

// Cost is the number of unit steps the path takes.
func (p Path) Cost() int { return len(p) * stepCost }

// Clone returns a copy with independent backing storage.
func (p Path) Clone() Path {
	if len(p) == 0 {
		return nil
	}
	cloned := make(Path, len(p))
	copy(cloned, p)
	return cloned
}

// Reason explains how a search ended.
type Reason int

const (
	ReasonFound Reason = iota
	ReasonAlreadyThere
	ReasonBlockedDestination
	ReasonInvalidStart
	ReasonExhausted
	ReasonBudget
)

func (r Reason) String() string {
	switch r {
	case ReasonFound:
		return "found"
	case ReasonAlreadyThere:
		return "already-there"
	case ReasonBlockedDestination:
		return "blocked-destination"
	case ReasonInvalidStart:
		return "invalid-start"
	case ReasonExhausted:
		return "exhausted"
	case ReasonBudget:
		return "budget"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Result contains the outcome of a search.
type Result struct {
	Path     Path
	Expanded int
	Found    bool
	Reason   Reason
}

// Options defines parameters for a Searcher.
type Options struct {
	Mode          Mode
	MaxExpansions int // 0 means unbounded
	Logger        *logrus.Entry
}

// Option is a function that modifies Options.
type Option func(*Options)

// WithMode selects the expansion order.
func WithMode(mode Mode) Option {
	return func(o *Options) { o.Mode = mode }
}

// WithMaxExpansions caps how many tiles one search may expand. Hitting the
// cap ends the search without a path.
func WithMaxExpansions(n int) Option {
	return func(o *Options) { o.MaxExpansions = n }
}

// WithLogger routes the per-search debug line to entry.
func WithLogger(entry *logrus.Entry) Option {
	return func(o *Options) { o.Logger = entry }
}

// Searcher runs A* searches with its own reusable scratch buffers. It is not
// safe for concurrent use; see Pool.
type Searcher struct {
	opts    Options
	scratch *Scratch
	seq     int
}

// NewSearcher creates a Searcher. Scratch space is sized lazily on the first
// search and resized whenever the grid dimensions change.
func NewSearcher(options ...Option) *Searcher {
	opts := Options{Mode: ModeFIFO}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Component("pathfind")
	}
	return &Searcher{opts: opts, scratch: &Scratch{}}
}

// Mode reports the configured expansion order.
func (s *Searcher) Mode() Mode { return s.opts.Mode }

// FindPath returns the path from start to dest, or an empty Path when the
// destination is blocked, equal to start, or unreachable.
func (s *Searcher) FindPath(o Oracle, start, dest grid.Point) Path {
	return s.Search(o, start, dest).Path
}

// Search is FindPath with bookkeeping about how the search ended.
func (s *Searcher) Search(o Oracle, start, dest grid.Point) Result {
	res := s.search(o, start, dest)
	s.logResult(start, dest, res)
	return res
}

func (s *Searcher) search(o Oracle, start, dest grid.Point) Result {
	if !o.IsTraversable(dest.X, dest.Y) {
		return Result{Reason: ReasonBlockedDestination}
	}
	if start == dest {
		return Result{Reason: ReasonAlreadyThere}
	}

	s.scratch.reset(o.Width(), o.Height())
	if !s.scratch.inBounds(start) {
		return Result{Reason: ReasonInvalidStart}
	}
	s.seq = 0

	var found, budget bool
	var expanded int
	switch s.opts.Mode {
	case ModeOptimal:
		found, expanded, budget = s.expandOptimal(o, start, dest)
	default:
		found, expanded, budget = s.expandFIFO(o, start, dest)
	}

	res := Result{Expanded: expanded}
	switch {
	case found:
		path, ok := s.scratch.reconstruct(dest)
		if !ok {
			s.opts.Logger.WithFields(logrus.Fields{
				"start": start.String(),
				"dest":  dest.String(),
			}).Warn("parent chain broken during reconstruction")
			res.Reason = ReasonExhausted
			return res
		}
		res.Path = path
		res.Found = true
		res.Reason = ReasonFound
	case budget:
		res.Reason = ReasonBudget
	default:
		res.Reason = ReasonExhausted
	}
	return res
}

// seed records the start node: g=0, h=heuristic, parent=self.
func (s *Searcher) seed(start, dest grid.Point) {
	n := s.scratch.node(start)
	n.g = 0
	n.h = Manhattan(start, dest)
	n.f = n.g + n.h
	n.parent = start
}

// expandFIFO is the reference expansion: a plain queue in discovery order,
// neighbours up/right/down/left, closed tiles are final, and a neighbour is
// (re)queued whenever its f strictly improves. The latest write to a tile's
// record is what counts when it is dequeued.
func (s *Searcher) expandFIFO(o Oracle, start, dest grid.Point) (found bool, expanded int, budget bool) {
	sc := s.scratch
	s.seed(start, dest)
	sc.fifo = append(sc.fifo, start)

	for head := 0; head < len(sc.fifo); head++ {
		current := sc.fifo[head]
		idx := sc.index(current)
		if sc.closed[idx] {
			continue
		}
		if s.opts.MaxExpansions > 0 && expanded >= s.opts.MaxExpansions {
			return false, expanded, true
		}
		sc.closed[idx] = true
		expanded++

		if current == dest {
			return true, expanded, false
		}

		g := sc.nodes[idx].g + stepCost
		for _, d := range grid.Neighbors {
			next := current.Add(d)
			if !sc.inBounds(next) || !o.IsTraversable(next.X, next.Y) {
				continue
			}
			nidx := sc.index(next)
			if sc.closed[nidx] {
				continue
			}
			h := Manhattan(next, dest)
			f := g + h
			n := &sc.nodes[nidx]
			if n.assigned() && f >= n.f {
				continue
			}
			n.g, n.h, n.f = g, h, f
			n.parent = current
			sc.fifo = append(sc.fifo, next)
		}
	}
	return false, expanded, false
}

// expandOptimal pops the lowest f first and may reopen closed tiles.
func (s *Searcher) expandOptimal(o Oracle, start, dest grid.Point) (found bool, expanded int, budget bool) {
	sc := s.scratch
	s.seed(start, dest)
	root := sc.node(start)
	s.push(start, root.g, root.f)

	for sc.heap.Len() > 0 {
		entry := heap.Pop(&sc.heap).(openEntry)
		idx := sc.index(entry.point)
		node := &sc.nodes[idx]
		if entry.g != node.g || sc.closed[idx] {
			continue
		}
		if s.opts.MaxExpansions > 0 && expanded >= s.opts.MaxExpansions {
			return false, expanded, true
		}
		sc.closed[idx] = true
		expanded++

		if entry.point == dest {
			return true, expanded, false
		}

		g := node.g + stepCost
		for _, d := range grid.Neighbors {
			next := entry.point.Add(d)
			if !sc.inBounds(next) || !o.IsTraversable(next.X, next.Y) {
				continue
			}
			nidx := sc.index(next)
			n := &sc.nodes[nidx]
			if n.assigned() && g >= n.g {
				continue
			}
			sc.closed[nidx] = false
			n.g = g
			n.h = Manhattan(next, dest)
			n.f = g + n.h
			n.parent = entry.point
			s.push(next, n.g, n.f)
		}
	}
	return false, expanded, false
}

func (s *Searcher) push(p grid.Point, g, f int) {
	heap.Push(&s.scratch.heap, openEntry{point: p, g: g, f: f, seq: s.seq})
	s.seq++
}

// reconstruct walks parent links back from dest to the self-parented start
// and returns the tiles after the start in forward order. It reports false if
// the chain hits an unassigned parent or runs longer than the grid.
func (sc *Scratch) reconstruct(dest grid.Point) (Path, bool) {
	var reversed Path
	current := dest
	for steps := 0; steps <= len(sc.nodes); steps++ {
		if !sc.inBounds(current) {
			return nil, false
		}
		parent := sc.node(current).parent
		if parent == current {
			for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
				reversed[i], reversed[j] = reversed[j], reversed[i]
			}
			return reversed, true
		}
		if parent == NoParent {
			return nil, false
		}
		reversed = append(reversed, current)
		current = parent
	}
	return nil, false
}

func (s *Searcher) logResult(start, dest grid.Point, res Result) {
	log := s.opts.Logger
	if !log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	log.WithFields(logrus.Fields{
		"mode":     s.opts.Mode.String(),
		"start":    start.String(),
		"dest":     dest.String(),
		"reason":   res.Reason.String(),
		"expanded": res.Expanded,
		"length":   len(res.Path),
	}).Debug("search finished")
}

// Manhattan is the |dx| + |dy| heuristic. It is admissible and consistent for
// unit-cost four-way movement.
func Manhattan(a, b grid.Point) int {
	return a.Manhattan(b)
}

// FindPath runs one search with fresh scratch state in the reference mode.
func FindPath(o Oracle, start, dest grid.Point) Path {
	return NewSearcher().FindPath(o, start, dest)
}

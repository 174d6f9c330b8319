package pathfind

import (
	"io"
	"math/rand"
	"os"
	"reflect"
	"sync"
	"testing"

	"github.com/amalg/go-gridchase/internal/grid"
	"github.com/amalg/go-gridchase/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// lCorridor is a 4x4 grid whose row 0 and column 0 are walls.
func lCorridor() *grid.Grid {
	g := grid.New(4, 4)
	for i := 0; i < 4; i++ {
		g.SetTile(i, 0, grid.Wall)
		g.SetTile(0, i, grid.Wall)
	}
	return g
}

func pt(x, y int) grid.Point { return grid.Point{X: x, Y: y} }

func TestFindPathLCorridor(t *testing.T) {
	g := lCorridor()
	want := Path{pt(2, 1), pt(2, 2)}

	for _, mode := range []Mode{ModeFIFO, ModeOptimal} {
		t.Run(mode.String(), func(t *testing.T) {
			res := NewSearcher(WithMode(mode)).Search(g, pt(1, 1), pt(2, 2))
			if !res.Found || res.Reason != ReasonFound {
				t.Fatalf("expected a path, got reason %v", res.Reason)
			}
			if !reflect.DeepEqual(res.Path, want) {
				t.Errorf("expected %v, got %v", want, res.Path)
			}
		})
	}
}

func TestFindPathShortCircuits(t *testing.T) {
	g := grid.New(5, 5)
	g.SetTile(2, 2, grid.Wall)
	g.SetTile(4, 4, grid.Breakable)
	s := NewSearcher()

	// Every neighbour of (2,2) is open, the tile itself is not.
	res := s.Search(g, pt(0, 0), pt(2, 2))
	if len(res.Path) != 0 || res.Reason != ReasonBlockedDestination {
		t.Errorf("blocked destination: got %v (%v)", res.Path, res.Reason)
	}
	if p := s.FindPath(g, pt(0, 0), pt(4, 4)); len(p) != 0 {
		t.Errorf("breakable destination should give no path, got %v", p)
	}
	if p := s.FindPath(g, pt(0, 0), pt(-1, 0)); len(p) != 0 {
		t.Errorf("out-of-bounds destination should give no path, got %v", p)
	}

	res = s.Search(g, pt(1, 1), pt(1, 1))
	if len(res.Path) != 0 || res.Reason != ReasonAlreadyThere {
		t.Errorf("start == dest: got %v (%v)", res.Path, res.Reason)
	}
}

func TestFindPathFromBlockedStart(t *testing.T) {
	g := grid.New(3, 1)
	g.SetTile(0, 0, grid.Wall)

	p := FindPath(g, pt(0, 0), pt(2, 0))
	want := Path{pt(1, 0), pt(2, 0)}
	if !reflect.DeepEqual(p, want) {
		t.Errorf("start tile is never checked: expected %v, got %v", want, p)
	}
}

func TestFindPathUnreachable(t *testing.T) {
	g := grid.New(5, 3)
	for y := 0; y < 3; y++ {
		g.SetTile(2, y, grid.Wall)
	}
	res := NewSearcher().Search(g, pt(0, 1), pt(4, 1))
	if res.Found || len(res.Path) != 0 {
		t.Fatalf("expected no path, got %v", res.Path)
	}
	if res.Reason != ReasonExhausted {
		t.Errorf("expected exhausted, got %v", res.Reason)
	}
	// The left side has 6 tiles, all of which get expanded.
	if res.Expanded != 6 {
		t.Errorf("expected 6 expansions, got %d", res.Expanded)
	}
}

func TestMaxExpansions(t *testing.T) {
	g := grid.New(10, 10)
	res := NewSearcher(WithMaxExpansions(3)).Search(g, pt(0, 0), pt(9, 9))
	if res.Found || res.Reason != ReasonBudget {
		t.Fatalf("expected budget stop, got %v", res.Reason)
	}
	if res.Expanded != 3 {
		t.Errorf("expected 3 expansions, got %d", res.Expanded)
	}

	res = NewSearcher(WithMaxExpansions(0)).Search(g, pt(0, 0), pt(9, 9))
	if !res.Found || len(res.Path) != 18 {
		t.Errorf("unbounded search should find an 18-step path, got %d (%v)", len(res.Path), res.Reason)
	}
}

// bfsDistance is an independent reference for shortest path length.
func bfsDistance(g *grid.Grid, start, dest grid.Point) int {
	dist := map[grid.Point]int{start: 0}
	queue := []grid.Point{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == dest {
			return dist[cur]
		}
		for _, d := range grid.Neighbors {
			next := cur.Add(d)
			if _, seen := dist[next]; seen || !g.IsTraversable(next.X, next.Y) {
				continue
			}
			dist[next] = dist[cur] + 1
			queue = append(queue, next)
		}
	}
	return -1
}

func randomGrid(rng *rand.Rand, w, h int, density float64) *grid.Grid {
	g := grid.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			switch r := rng.Float64(); {
			case r < density/2:
				g.SetTile(x, y, grid.Wall)
			case r < density:
				g.SetTile(x, y, grid.Breakable)
			}
		}
	}
	return g
}

func randomFloor(rng *rand.Rand, g *grid.Grid) grid.Point {
	for {
		p := pt(rng.Intn(g.Width()), rng.Intn(g.Height()))
		if g.IsTraversable(p.X, p.Y) {
			return p
		}
	}
}

func checkPath(t *testing.T, g *grid.Grid, start, dest grid.Point, p Path) {
	t.Helper()
	if last, ok := p.Last(); !ok || last != dest {
		t.Fatalf("path %v from %v should end at %v", p, start, dest)
	}
	if start.Manhattan(p[0]) != 1 {
		t.Errorf("first waypoint %v is not adjacent to start %v", p[0], start)
	}
	for i, wp := range p {
		if !g.IsTraversable(wp.X, wp.Y) {
			t.Errorf("waypoint %d %v is not traversable", i, wp)
		}
		if i > 0 && p[i-1].Manhattan(wp) != 1 {
			t.Errorf("waypoints %v and %v are not adjacent", p[i-1], wp)
		}
	}
}

func TestPathProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	fifo := NewSearcher(WithMode(ModeFIFO))
	optimal := NewSearcher(WithMode(ModeOptimal))

	for trial := 0; trial < 200; trial++ {
		g := randomGrid(rng, 12+rng.Intn(8), 8+rng.Intn(8), 0.3)
		start := randomFloor(rng, g)
		dest := randomFloor(rng, g)
		want := bfsDistance(g, start, dest)

		for _, s := range []*Searcher{fifo, optimal} {
			p := s.FindPath(g, start, dest)
			switch {
			case start == dest || want < 0:
				if len(p) != 0 {
					t.Errorf("trial %d %v: expected empty path, got %v", trial, s.Mode(), p)
				}
			default:
				checkPath(t, g, start, dest, p)
				if len(p) != want {
					t.Errorf("trial %d %v: path length %d, shortest is %d", trial, s.Mode(), len(p), want)
				}
			}
		}
	}
}

func TestFindPathIsIdempotent(t *testing.T) {
	g := grid.ReferenceLayout().Grid
	s := NewSearcher()

	first := s.FindPath(g, pt(30, 22), pt(1, 20))
	second := s.FindPath(g, pt(30, 22), pt(1, 20))
	if len(first) == 0 {
		t.Fatal("expected a path across the reference map")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated searches differ:\n%v\n%v", first, second)
	}

	// Mutating the returned path must not leak into the next call.
	first[0] = pt(99, 99)
	if third := s.FindPath(g, pt(30, 22), pt(1, 20)); !reflect.DeepEqual(third, second) {
		t.Error("returned paths must not alias scratch storage")
	}
}

func TestScratchReuseAcrossGrids(t *testing.T) {
	large := grid.New(20, 20)
	small := lCorridor()
	s := NewSearcher()

	s.FindPath(large, pt(0, 0), pt(19, 19))
	got := s.FindPath(small, pt(1, 1), pt(2, 2))
	want := NewSearcher().FindPath(small, pt(1, 1), pt(2, 2))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("reused scratch gave %v, fresh gave %v", got, want)
	}

	// Back to the large grid after an unreachable search on it.
	walled := grid.New(20, 20)
	for y := 0; y < 20; y++ {
		walled.SetTile(10, y, grid.Wall)
	}
	if p := s.FindPath(walled, pt(0, 0), pt(19, 19)); len(p) != 0 {
		t.Fatalf("expected no path through the wall, got %v", p)
	}
	if p := s.FindPath(large, pt(0, 0), pt(19, 19)); len(p) != 38 {
		t.Errorf("expected a 38-step path after reuse, got %d", len(p))
	}
}

func TestSearchAfterBreakTile(t *testing.T) {
	g := grid.New(5, 3)
	for y := 0; y < 3; y++ {
		g.SetTile(2, y, grid.Wall)
	}
	g.SetTile(2, 1, grid.Breakable)
	s := NewSearcher()

	if p := s.FindPath(g, pt(0, 1), pt(4, 1)); len(p) != 0 {
		t.Fatalf("breakable tile should block, got %v", p)
	}
	g.BreakTile(2, 1)
	p := s.FindPath(g, pt(0, 1), pt(4, 1))
	checkPath(t, g, pt(0, 1), pt(4, 1), p)
	if len(p) != 4 {
		t.Errorf("expected 4 steps through the broken tile, got %v", p)
	}
}

func TestReconstructGuards(t *testing.T) {
	sc := NewScratch(3, 1)
	sc.node(pt(0, 0)).parent = pt(0, 0)
	sc.node(pt(1, 0)).parent = pt(0, 0)
	sc.node(pt(2, 0)).parent = pt(1, 0)

	p, ok := sc.reconstruct(pt(2, 0))
	if !ok || !reflect.DeepEqual(p, Path{pt(1, 0), pt(2, 0)}) {
		t.Fatalf("expected [(1,0) (2,0)], got %v (ok=%v)", p, ok)
	}

	sc.node(pt(1, 0)).parent = NoParent
	if _, ok := sc.reconstruct(pt(2, 0)); ok {
		t.Error("a chain ending at NoParent should be rejected")
	}

	sc.node(pt(1, 0)).parent = pt(2, 0)
	if _, ok := sc.reconstruct(pt(2, 0)); ok {
		t.Error("a parent cycle should be rejected")
	}
}

func TestPoolConcurrentSearches(t *testing.T) {
	g := grid.ReferenceLayout().Grid
	pool := NewPool(WithMode(ModeOptimal))
	want := NewSearcher(WithMode(ModeOptimal)).FindPath(g, pt(30, 22), pt(1, 20))
	if len(want) == 0 {
		t.Fatal("expected a reference path")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if got := pool.FindPath(g, pt(30, 22), pt(1, 20)); !reflect.DeepEqual(got, want) {
					t.Errorf("concurrent search diverged: %v", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeFIFO, false},
		{"fifo", ModeFIFO, false},
		{"Optimal", ModeOptimal, false},
		{"dijkstra", ModeFIFO, true},
	}
	for _, tc := range tests {
		got, err := ParseMode(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseMode(%q) = %v, %v", tc.in, got, err)
		}
	}

	var m Mode
	if err := m.UnmarshalText([]byte("optimal")); err != nil || m != ModeOptimal {
		t.Errorf("UnmarshalText: got %v, %v", m, err)
	}
}

func TestPathHelpers(t *testing.T) {
	var empty Path
	if _, ok := empty.Last(); ok {
		t.Error("empty path has no last waypoint")
	}
	p := Path{pt(1, 0), pt(2, 0)}
	c := p.Clone()
	c[0] = pt(5, 5)
	if p[0] != pt(1, 0) {
		t.Error("Clone must not share storage")
	}
	if p.Cost() != 2 {
		t.Errorf("expected cost 2, got %d", p.Cost())
	}
}

package pathfind

import (
	"sync"

	"github.com/amalg/go-gridchase/internal/grid"
)

// Pool hands every concurrent caller its own Searcher, so searches may run in
// parallel as long as each one reads an Oracle nobody is mutating.
type Pool struct {
	searchers sync.Pool
}

// NewPool creates a pool whose Searchers share the given options.
func NewPool(options ...Option) *Pool {
	p := &Pool{}
	p.searchers.New = func() any {
		return NewSearcher(options...)
	}
	return p
}

// Search borrows a Searcher for the duration of one search.
func (p *Pool) Search(o Oracle, start, dest grid.Point) Result {
	s := p.searchers.Get().(*Searcher)
	defer p.searchers.Put(s)
	return s.Search(o, start, dest)
}

// FindPath is Search without the bookkeeping.
func (p *Pool) FindPath(o Oracle, start, dest grid.Point) Path {
	return p.Search(o, start, dest).Path
}

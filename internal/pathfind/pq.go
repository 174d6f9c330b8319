package pathfind

import "github.com/amalg/go-gridchase/internal/grid"

// openEntry is one push onto the optimal-mode frontier. Entries are never
// updated in place; an entry whose g no longer matches its node is stale.
type openEntry struct {
	point grid.Point
	g     int
	f     int
	seq   int
}

// openHeap orders entries by f, then by insertion order.
type openHeap []openEntry

func (h openHeap) Len() int { return len(h) }

func (h openHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}

func (h openHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *openHeap) Push(x any) {
	*h = append(*h, x.(openEntry))
}

func (h *openHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

package steer

import "github.com/amalg/go-gridchase/internal/grid"

// Policy decides when a controller re-plans. Update runs at the start of
// every Tick.
type Policy interface {
	Update(c *Controller, dt float64)
	Reset()
}

// ManualPolicy never plans on its own; the owner calls RequestPath.
type ManualPolicy struct{}

func (ManualPolicy) Update(*Controller, float64) {}
func (ManualPolicy) Reset() {}

// TargetProvider reports the tile an agent is chasing. ok is false when
// there is nothing to chase.
type TargetProvider interface {
	TargetTile() (tile grid.Point, ok bool)
}

// TargetFunc adapts a function to TargetProvider.
type TargetFunc func() (grid.Point, bool)

func (f TargetFunc) TargetTile() (grid.Point, bool) { return f() }

// TrackingPolicy re-plans toward a moving target every Interval seconds, and
// immediately whenever the target's tile changes.
type TrackingPolicy struct {
	Target   TargetProvider
	Interval float64

	// Bounds clamps the target tile to [0,Width)×[0,Height) when both are
	// positive.
	Width, Height int

	elapsed    float64
	lastTarget grid.Point
	hasLast    bool
}

func NewTrackingPolicy(target TargetProvider, interval float64, width, height int) *TrackingPolicy {
	return &TrackingPolicy{Target: target, Interval: interval, Width: width, Height: height}
}

func (p *TrackingPolicy) Update(c *Controller, dt float64) {
	p.elapsed += dt
	if p.Target == nil {
		return
	}
	tile, ok := p.Target.TargetTile()
	if !ok {
		return
	}
	tile = p.clamp(tile)

	if p.elapsed >= p.Interval || !p.hasLast || tile != p.lastTarget {
		p.elapsed = 0
		p.lastTarget = tile
		p.hasLast = true
		c.RequestPath(tile)
	}
}

// Reset forgets the last target so the next Update plans immediately.
func (p *TrackingPolicy) Reset() {
	p.elapsed = 0
	p.lastTarget = grid.Point{}
	p.hasLast = false
}

// LastTarget is the tile of the most recent plan.
func (p *TrackingPolicy) LastTarget() (grid.Point, bool) {
	return p.lastTarget, p.hasLast
}

func (p *TrackingPolicy) clamp(t grid.Point) grid.Point {
	if p.Width <= 0 || p.Height <= 0 {
		return t
	}
	t.X = max(0, min(t.X, p.Width-1))
	t.Y = max(0, min(t.Y, p.Height-1))
	return t
}

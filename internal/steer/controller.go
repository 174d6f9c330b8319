package steer

import (
	"fmt"

	"github.com/amalg/go-gridchase/internal/grid"
	"github.com/amalg/go-gridchase/internal/pathfind"
)

// DefaultSnapDistance is how close (in world units) an agent must be to a
// waypoint centre to snap onto it.
const DefaultSnapDistance = 0.5

// Planner produces tile paths for a controller.
type Planner interface {
	FindPath(start, dest grid.Point) pathfind.Path
}

// GridPlanner runs a Searcher against a fixed oracle.
type GridPlanner struct {
	Searcher *pathfind.Searcher
	Oracle   pathfind.Oracle
}

func (p GridPlanner) FindPath(start, dest grid.Point) pathfind.Path {
	return p.Searcher.FindPath(p.Oracle, start, dest)
}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func(start, dest grid.Point) pathfind.Path

func (f PlannerFunc) FindPath(start, dest grid.Point) pathfind.Path { return f(start, dest) }

// State is the controller's position in its Idle → Pending → Following cycle.
type State int

const (
	StateIdle State = iota
	StatePending
	StateFollowing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateFollowing:
		return "following"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ControllerConfig holds the fixed parameters of one agent.
type ControllerConfig struct {
	Speed        float64 // world units per second
	TileSize     float64
	SnapDistance float64 // DefaultSnapDistance when zero
	Spawn        grid.Point
}

// Controller moves one agent along tile paths at a fixed speed.
//
// A path request is recorded by RequestPath and resolved on the next Tick,
// so an agent plans at most once per tick. After every update the current
// tile is the tile containing the position.
type Controller struct {
	cfg     ControllerConfig
	planner Planner
	policy  Policy

	pos  Vec2
	tile grid.Point
	path pathfind.Path

	dest    grid.Point
	hasDest bool
	pending bool
}

// NewController places an agent on the centre of cfg.Spawn. A nil policy
// behaves like ManualPolicy.
func NewController(cfg ControllerConfig, planner Planner, policy Policy) *Controller {
	if cfg.SnapDistance <= 0 {
		cfg.SnapDistance = DefaultSnapDistance
	}
	if policy == nil {
		policy = ManualPolicy{}
	}
	c := &Controller{cfg: cfg, planner: planner, policy: policy}
	c.Reset(cfg.Spawn)
	return c
}

func (c *Controller) Position() Vec2 { return c.pos }
func (c *Controller) Tile() grid.Point { return c.tile }
func (c *Controller) Speed() float64 { return c.cfg.Speed }
func (c *Controller) TileSize() float64 { return c.cfg.TileSize }
func (c *Controller) Spawn() grid.Point { return c.cfg.Spawn }
func (c *Controller) Policy() Policy { return c.policy }
func (c *Controller) Path() pathfind.Path { return c.path.Clone() }

// Destination is the tile of the most recent request, if any.
func (c *Controller) Destination() (grid.Point, bool) {
	return c.dest, c.hasDest
}

func (c *Controller) State() State {
	switch {
	case c.pending:
		return StatePending
	case len(c.path) > 0:
		return StateFollowing
	default:
		return StateIdle
	}
}

// RequestPath asks for a fresh search toward dest on the next Tick. A later
// request in the same tick replaces an earlier one.
func (c *Controller) RequestPath(dest grid.Point) {
	c.dest = dest
	c.hasDest = true
	c.pending = true
}

// Tick runs the policy, resolves a pending request and advances the agent.
func (c *Controller) Tick(dt float64) {
	c.policy.Update(c, dt)

	if c.pending {
		c.pending = false
		path := c.planner.FindPath(c.tile, c.dest)
		if len(path) > 0 && path[0] == c.tile {
			path = path[1:]
		}
		c.path = path
	}

	c.advance(dt)
}

// advance moves toward the next waypoint and pops it on arrival. At most one
// waypoint is consumed per tick.
func (c *Controller) advance(dt float64) {
	if len(c.path) == 0 {
		return
	}

	next := c.path[0]
	target := TileCenter(next, c.cfg.TileSize)
	delta := target.Sub(c.pos)
	dist := delta.Len()
	step := c.cfg.Speed * dt

	if dist < c.cfg.SnapDistance || step >= dist {
		c.pos = target
		c.tile = next
		c.path = c.path[1:]
		if len(c.path) == 0 {
			c.path = nil
		}
		return
	}

	c.pos = c.pos.Add(delta.Scale(step / dist))
	c.tile = TileAt(c.pos, c.cfg.TileSize)
}

// Reset drops any path or pending request, clears the policy's memory and
// puts the agent on the centre of spawn.
func (c *Controller) Reset(spawn grid.Point) {
	c.path = nil
	c.pending = false
	c.hasDest = false
	c.dest = grid.Point{}
	c.tile = spawn
	c.pos = TileCenter(spawn, c.cfg.TileSize)
	c.policy.Reset()
}

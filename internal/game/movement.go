package game

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/amalg/go-gridchase/internal/grid"
	"github.com/amalg/go-gridchase/internal/steer"
)

// movePlayerTo asks the player's controller to plan toward target. A blocked
// or out-of-bounds target plans an empty path and the player stops.
func (e *Engine) movePlayerTo(playerID string, target grid.Point) {
	p, ok := e.players[playerID]
	if !ok {
		return
	}
	p.ctrl.RequestPath(target)
}

// nudgePlayer plans a one-tile move in the given direction.
func (e *Engine) nudgePlayer(playerID string, dir Direction) {
	p, ok := e.players[playerID]
	if !ok {
		return
	}
	p.ctrl.RequestPath(p.ctrl.Tile().Add(dir.Delta()))
}

func (e *Engine) updatePlayers(dt float64) {
	for _, id := range e.joinOrder {
		e.players[id].ctrl.Tick(dt)
	}
}

// updateEnemies moves live enemies and counts down the respawn timers of
// dead ones.
func (e *Engine) updateEnemies(dt float64) {
	for _, en := range e.enemies {
		if en.alive {
			en.ctrl.Tick(dt)
			continue
		}
		if en.respawnIn > 0 {
			en.respawnIn -= dt
			if en.respawnIn <= 0 {
				e.reviveEnemy(en)
			}
		}
	}
}

func (e *Engine) reviveEnemy(en *enemyAgent) {
	en.alive = true
	en.respawnIn = 0
	en.ctrl.Reset(en.spawn)
}

// nearestPlayerTile is the tracking target of an enemy: the tile of the
// closest player, ties going to whoever joined first.
func (e *Engine) nearestPlayerTile(en *enemyAgent) (grid.Point, bool) {
	var (
		best  grid.Point
		found bool
		bestD = math.Inf(1)
	)
	from := en.ctrl.Position()
	for _, id := range e.joinOrder {
		p := e.players[id]
		if d := from.Dist(p.ctrl.Position()); d < bestD {
			bestD = d
			best = p.ctrl.Tile()
			found = true
		}
	}
	return best, found
}

// resolveContacts sends a player touched by an enemy back to their spawn
// and the enemy back to its own. At most one contact is handled per tick.
func (e *Engine) resolveContacts() {
	size := e.Config.TileSize
	for _, en := range e.enemies {
		if !en.alive {
			continue
		}
		for _, id := range e.joinOrder {
			p := e.players[id]
			if !overlaps(en.ctrl.Position(), size, p.ctrl.Position(), size) {
				continue
			}
			p.deaths++
			p.ctrl.Reset(p.spawn)
			e.reviveEnemy(en)
			e.log.WithFields(logrus.Fields{
				"player": id,
				"enemy":  en.id,
				"deaths": p.deaths,
			}).Debug("player caught")
			return
		}
	}
}

// overlaps reports whether two axis-aligned squares, given by centre and
// edge length, intersect. Touching edges do not count.
func overlaps(a steer.Vec2, sizeA float64, b steer.Vec2, sizeB float64) bool {
	half := (sizeA + sizeB) / 2
	return math.Abs(a.X-b.X) < half && math.Abs(a.Y-b.Y) < half
}

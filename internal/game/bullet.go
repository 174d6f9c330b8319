package game

import (
	"github.com/sirupsen/logrus"

	"github.com/amalg/go-gridchase/internal/steer"
)

// minAim is the shortest aim vector that still fires.
const minAim = 0.001

// shoot fires a bullet from the player's position toward the target tile
// centre, or along the action's direction when there is no target.
func (e *Engine) shoot(a Action) {
	p, ok := e.players[a.PlayerID]
	if !ok {
		return
	}

	origin := p.ctrl.Position()
	var aim steer.Vec2
	if a.HasTarget {
		aim = steer.TileCenter(a.Target, e.Config.TileSize).Sub(origin)
	} else {
		d := a.Dir.Delta()
		aim = steer.Vec2{X: float64(d.X), Y: float64(d.Y)}
	}

	length := aim.Len()
	if length <= minAim {
		return
	}
	e.bullets = append(e.bullets, Bullet{
		OwnerID: p.id,
		Pos:     origin,
		Vel:     aim.Scale(e.Config.BulletSpeed / length),
	})
}

// updateBullets moves every bullet, then resolves what it hit: a live enemy
// first, then the tile under it. Breaking a tile or killing an enemy scores
// a point for the shooter.
func (e *Engine) updateBullets(dt float64) {
	remaining := e.bullets[:0]
	for _, b := range e.bullets {
		b.Pos = b.Pos.Add(b.Vel.Scale(dt))
		if e.bulletHitEnemy(b) {
			continue
		}

		tile := steer.TileAt(b.Pos, e.Config.TileSize)
		if e.grid.BreakTile(tile.X, tile.Y) {
			e.award(b.OwnerID)
			e.log.WithFields(logrus.Fields{"player": b.OwnerID, "tile": tile.String()}).Debug("tile broken")
			continue
		}
		if !e.grid.IsTraversable(tile.X, tile.Y) {
			continue
		}
		remaining = append(remaining, b)
	}
	clear(e.bullets[len(remaining):])
	e.bullets = remaining
}

func (e *Engine) bulletHitEnemy(b Bullet) bool {
	for _, en := range e.enemies {
		if !en.alive || !overlaps(b.Pos, e.Config.BulletSize, en.ctrl.Position(), e.Config.TileSize) {
			continue
		}
		en.alive = false
		en.respawnIn = e.Config.EnemyRespawnDelay.Seconds()
		e.award(b.OwnerID)
		e.log.WithFields(logrus.Fields{"player": b.OwnerID, "enemy": en.id}).Debug("enemy down")
		return true
	}
	return false
}

// award adds a point to the shooter, if they are still connected.
func (e *Engine) award(playerID string) {
	if p, ok := e.players[playerID]; ok {
		p.score++
	}
}

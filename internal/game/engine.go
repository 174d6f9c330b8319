package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amalg/go-gridchase/internal/grid"
	"github.com/amalg/go-gridchase/internal/pathfind"
	"github.com/amalg/go-gridchase/internal/steer"
	"github.com/amalg/go-gridchase/pkg/logger"
)

// playerAgent is a connected player and the controller that moves it.
type playerAgent struct {
	id     string
	name   string
	slot   int // spawn and colour index, unique among connected players
	spawn  grid.Point
	score  int
	deaths int
	ctrl   *steer.Controller
}

// enemyAgent chases the nearest player. A dead enemy waits out its respawn
// timer and then returns to its spawn tile.
type enemyAgent struct {
	id        int
	spawn     grid.Point
	alive     bool
	respawnIn float64
	ctrl      *steer.Controller
}

// Engine owns the arena: the grid, every agent's controller, bullets and scores.
//
// Every agent plans with the same Searcher. That is safe because all
// searches run on the engine goroutine while e.mu is held.
type Engine struct {
	Config Config

	layout   *grid.Layout
	grid     *grid.Grid
	searcher *pathfind.Searcher
	planner  steer.Planner

	players   map[string]*playerAgent
	joinOrder []string
	enemies   []*enemyAgent
	bullets   []Bullet
	status    GameStatus
	winner    string
	ticks     uint64

	actions  chan Action
	done     chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	onTick   func(GameState) // Callback after each tick with a COPY of state
	log      *logrus.Entry
}

// NewEngine validates config, loads its layout and places the enemies on their spawns.
func NewEngine(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	layout, err := LoadBoard(config)
	if err != nil {
		return nil, err
	}

	log := logger.Component("engine")
	searcher := pathfind.NewSearcher(
		pathfind.WithMode(config.SearchMode),
		pathfind.WithMaxExpansions(config.MaxExpansions),
		pathfind.WithLogger(logger.Component("pathfind")),
	)

	e := &Engine{
		Config:   config,
		layout:   layout,
		grid:     layout.Grid,
		searcher: searcher,
		planner:  steer.GridPlanner{Searcher: searcher, Oracle: layout.Grid},
		players:  make(map[string]*playerAgent),
		status:   StatusLobby,
		actions:  make(chan Action, 256),
		done:     make(chan struct{}),
		log:      log,
	}

	spawns := layout.EnemySpawns
	if len(spawns) > config.MaxEnemies {
		spawns = spawns[:config.MaxEnemies]
	}
	for i, sp := range spawns {
		e.enemies = append(e.enemies, e.newEnemy(i, sp))
	}

	log.WithFields(logrus.Fields{
		"layout":  layout.Name,
		"width":   e.grid.Width(),
		"height":  e.grid.Height(),
		"enemies": len(e.enemies),
		"mode":    config.SearchMode.String(),
	}).Info("engine created")
	return e, nil
}

func (e *Engine) newEnemy(id int, spawn grid.Point) *enemyAgent {
	enemy := &enemyAgent{id: id, spawn: spawn, alive: true}
	target := steer.TargetFunc(func() (grid.Point, bool) {
		return e.nearestPlayerTile(enemy)
	})
	policy := steer.NewTrackingPolicy(target, e.Config.RepathInterval.Seconds(), e.grid.Width(), e.grid.Height())
	enemy.ctrl = steer.NewController(steer.ControllerConfig{
		Speed:    e.Config.EnemySpeed,
		TileSize: e.Config.TileSize,
		Spawn:    spawn,
	}, e.planner, policy)
	return enemy
}

// OnTick registers fn to receive a state snapshot after every tick.
func (e *Engine) OnTick(fn func(GameState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = fn
}

// Run starts the game loop at the configured tick rate. Each tick simulates
// the wall-clock time since the previous one, capped at Config.MaxDT.
// This blocks until Stop() is called.
func (e *Engine) Run() {
	ticker := time.NewTicker(time.Second / time.Duration(e.Config.TickRate))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-e.done:
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			e.tick(dt)
		}
	}
}

// Stop halts the game loop. It is safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.done) })
}

// EnqueueAction queues a for the next tick.
func (e *Engine) EnqueueAction(a Action) {
	select {
	case e.actions <- a:
	default:
		// Queue full: drop.
		e.log.WithField("player", a.PlayerID).Warn("action queue full, dropping action")
	}
}

// AddPlayer places a player on the lowest spawn slot no connected player
// holds. Joining is only allowed in the lobby.
func (e *Engine) AddPlayer(id, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusLobby {
		return fmt.Errorf("%w (%s)", ErrGameRunning, e.status)
	}
	if len(e.players) >= e.Config.MaxPlayers {
		return fmt.Errorf("%w (%d/%d players)", ErrGameFull, len(e.players), e.Config.MaxPlayers)
	}
	if _, exists := e.players[id]; exists {
		return fmt.Errorf("%w: %s", ErrPlayerExists, id)
	}

	slot := e.freeSlotLocked()
	spawn := e.layout.PlayerSpawns[slot%len(e.layout.PlayerSpawns)]
	e.players[id] = &playerAgent{
		id:    id,
		name:  name,
		slot:  slot,
		spawn: spawn,
		ctrl: steer.NewController(steer.ControllerConfig{
			Speed:    e.Config.PlayerSpeed,
			TileSize: e.Config.TileSize,
			Spawn:    spawn,
		}, e.planner, steer.ManualPolicy{}),
	}
	e.joinOrder = append(e.joinOrder, id)

	e.log.WithFields(logrus.Fields{"player": id, "name": name, "spawn": spawn.String()}).Info("player joined")
	return nil
}

// freeSlotLocked returns the lowest slot not held by a connected player.
func (e *Engine) freeSlotLocked() int {
	taken := make(map[int]bool, len(e.players))
	for _, p := range e.players {
		taken[p.slot] = true
	}
	slot := 0
	for taken[slot] {
		slot++
	}
	return slot
}

// RemovePlayer drops a disconnected player; its controller goes with it.
func (e *Engine) RemovePlayer(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.players[id]; !ok {
		return
	}
	delete(e.players, id)
	for i, pid := range e.joinOrder {
		if pid == id {
			e.joinOrder = append(e.joinOrder[:i], e.joinOrder[i+1:]...)
			break
		}
	}
	e.log.WithField("player", id).Info("player left")
}

// StartGame leaves the lobby. At least one player is required.
func (e *Engine) StartGame() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.players) < 1 {
		return ErrNoPlayers
	}
	e.status = StatusRunning
	e.log.WithField("players", len(e.players)).Info("game started")
	return nil
}

// Step advances the simulation by dt seconds without broadcasting.
func (e *Engine) Step(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepLocked(dt)
}

// tick runs one step and hands a state copy to the OnTick callback.
// The snapshot is taken under the lock; onTick runs after it is released since
// it may call back into the engine.
func (e *Engine) tick(dt float64) {
	e.mu.Lock()
	e.stepLocked(dt)
	stateCopy := e.copyStateLocked()
	onTick := e.onTick
	e.mu.Unlock()

	if onTick != nil {
		onTick(stateCopy)
	}
}

// stepLocked is one simulation step. Agents are processed in a fixed order
// (players by join order, then enemies by id), so a tile broken earlier in
// the step is already open to everyone processed after it.
func (e *Engine) stepLocked(dt float64) {
	if e.status != StatusRunning {
		return
	}
	if dt < 0 {
		dt = 0
	}
	if limit := e.Config.dtLimit(); dt > limit {
		dt = limit
	}

	e.drainActions()
	e.updatePlayers(dt)
	e.updateEnemies(dt)
	e.updateBullets(dt)
	e.resolveContacts()
	e.checkWinCondition()
	e.ticks++
}

// drainActions applies every queued action before any agent moves.
func (e *Engine) drainActions() {
	for {
		select {
		case a := <-e.actions:
			switch a.Type {
			case ActionMove:
				e.nudgePlayer(a.PlayerID, a.Dir)
			case ActionMoveTo:
				e.movePlayerTo(a.PlayerID, a.Target)
			case ActionShoot:
				e.shoot(a)
			}
		default:
			return
		}
	}
}

// checkWinCondition ends the game once someone reaches the score limit.
func (e *Engine) checkWinCondition() {
	if e.status != StatusRunning || e.Config.ScoreLimit <= 0 {
		return
	}
	for _, id := range e.joinOrder {
		if e.players[id].score >= e.Config.ScoreLimit {
			e.status = StatusOver
			e.winner = id
			e.log.WithFields(logrus.Fields{"winner": id, "score": e.players[id].score}).Info("game over")
			return
		}
	}
}

// GetStateCopy returns a snapshot that shares nothing with the engine.
func (e *Engine) GetStateCopy() GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyStateLocked()
}

// GridSnapshot returns a copy of the current terrain. Searches against it
// can run on any goroutine.
func (e *Engine) GridSnapshot() *grid.Grid {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.Clone()
}

// PlayerCount returns the number of connected players.
func (e *Engine) PlayerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.players)
}

// Status returns the lifecycle phase of the game.
func (e *Engine) Status() GameStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LayoutName names the arena being played.
func (e *Engine) LayoutName() string { return e.layout.Name }

// PlayerTile returns the tile the player currently occupies.
func (e *Engine) PlayerTile(id string) (grid.Point, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[id]
	if !ok {
		return grid.Point{}, false
	}
	return p.ctrl.Tile(), true
}

// copyStateLocked requires e.mu.
func (e *Engine) copyStateLocked() GameState {
	playersCopy := make(map[string]*Player, len(e.players))
	for id, p := range e.players {
		cp := &Player{
			ID:     p.id,
			Name:   p.name,
			Pos:    p.ctrl.Position(),
			Tile:   p.ctrl.Tile(),
			Path:   p.ctrl.Path(),
			Moving: p.ctrl.State() != steer.StateIdle,
			Score:  p.score,
			Deaths: p.deaths,
			Color:  p.slot % 4,
		}
		if dest, ok := p.ctrl.Destination(); ok && cp.Moving {
			cp.Destination = &dest
		}
		playersCopy[id] = cp
	}

	enemiesCopy := make([]Enemy, len(e.enemies))
	for i, en := range e.enemies {
		enemiesCopy[i] = Enemy{
			ID:        en.id,
			Pos:       en.ctrl.Position(),
			Tile:      en.ctrl.Tile(),
			Alive:     en.alive,
			RespawnIn: en.respawnIn,
			Path:      en.ctrl.Path(),
		}
	}

	bulletsCopy := make([]Bullet, len(e.bullets))
	copy(bulletsCopy, e.bullets)

	return GameState{
		Board:    e.grid.Rows(),
		Players:  playersCopy,
		Enemies:  enemiesCopy,
		Bullets:  bulletsCopy,
		Width:    e.grid.Width(),
		Height:   e.grid.Height(),
		TileSize: e.Config.TileSize,
		Status:   e.status,
		Winner:   e.winner,
		Tick:     e.ticks,
	}
}

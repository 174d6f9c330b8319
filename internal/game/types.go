package game

import (
	"errors"

	"github.com/amalg/go-gridchase/internal/grid"
	"github.com/amalg/go-gridchase/internal/steer"
)

var (
	ErrGameRunning  = errors.New("game already started")
	ErrGameFull     = errors.New("game is full")
	ErrPlayerExists = errors.New("player already exists")
	ErrNoPlayers    = errors.New("need at least 1 player to start")
	ErrNoSpawns     = errors.New("layout has no player spawns")
)

// Direction represents a nudge or shot direction.
type Direction int

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

// Delta returns the tile offset for d.
func (d Direction) Delta() grid.Point {
	switch d {
	case DirUp:
		return grid.Up
	case DirDown:
		return grid.Down
	case DirLeft:
		return grid.Left
	default:
		return grid.Right
	}
}

// ActionType represents the type of player action.
type ActionType int

const (
	ActionMove   ActionType = iota // Path to the neighbouring tile in Dir
	ActionMoveTo                   // Path to Target
	ActionShoot                    // Fire toward Target, or along Dir without one
)

// Action represents a player's input action.
type Action struct {
	PlayerID  string
	Type      ActionType
	Dir       Direction
	Target    grid.Point
	HasTarget bool
}

// Player is the snapshot of a connected player.
type Player struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Pos         steer.Vec2   `json:"pos"`
	Tile        grid.Point   `json:"tile"`
	Path        []grid.Point `json:"path,omitempty"`
	Destination *grid.Point  `json:"destination,omitempty"`
	Moving      bool         `json:"moving"`
	Score       int          `json:"score"`
	Deaths      int          `json:"deaths"`
	Color       int          `json:"color"` // Player color index (0-3)
}

// Enemy is the snapshot of one chasing agent.
type Enemy struct {
	ID        int          `json:"id"`
	Pos       steer.Vec2   `json:"pos"`
	Tile      grid.Point   `json:"tile"`
	Alive     bool         `json:"alive"`
	RespawnIn float64      `json:"respawn_in,omitempty"` // seconds
	Path      []grid.Point `json:"path,omitempty"`
}

// Bullet is a projectile in flight.
type Bullet struct {
	OwnerID string     `json:"owner_id"`
	Pos     steer.Vec2 `json:"pos"`
	Vel     steer.Vec2 `json:"vel"`
}

// GameStatus represents the current game phase.
type GameStatus int

const (
	StatusLobby   GameStatus = iota // Waiting for players
	StatusRunning                   // Game in progress
	StatusOver                      // Score limit reached
)

func (s GameStatus) String() string {
	switch s {
	case StatusLobby:
		return "lobby"
	case StatusRunning:
		return "running"
	case StatusOver:
		return "over"
	default:
		return "unknown"
	}
}

// GameState is a point-in-time copy of the simulation, safe to serialize.
type GameState struct {
	Board    [][]grid.TileCode  `json:"board"`
	Players  map[string]*Player `json:"players"`
	Enemies  []Enemy            `json:"enemies"`
	Bullets  []Bullet           `json:"bullets"`
	Width    int                `json:"width"`
	Height   int                `json:"height"`
	TileSize float64            `json:"tile_size"`
	Status   GameStatus         `json:"status"`
	Winner   string             `json:"winner,omitempty"`
	Tick     uint64             `json:"tick"`
}

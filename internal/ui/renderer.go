package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/amalg/go-gridchase/internal/game"
	"github.com/amalg/go-gridchase/internal/grid"
	"github.com/amalg/go-gridchase/internal/network"
	"github.com/amalg/go-gridchase/internal/steer"
)

// cellWidth is the number of terminal columns per tile.
const cellWidth = 2

// Cell glyphs, two columns each.
const (
	glyphWall      = "██"
	glyphBreakable = "▒▒"
	glyphFloor     = "  "
	glyphMe        = "@@"
	glyphBullet    = "••"
	glyphPath      = "··"
	glyphPreview   = "::"
	glyphCursor    = "[]"
)

const boardBackground = lipgloss.Color("#1a1a2e")

// Color palette
var (
	// Tile styles
	wallStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#3a3a3a")).
			Foreground(lipgloss.Color("#555555"))

	breakableStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#8B6914")).
			Foreground(lipgloss.Color("#A0772B"))

	floorStyle = lipgloss.NewStyle().
			Background(boardBackground).
			Foreground(boardBackground)

	enemyStyle = lipgloss.NewStyle().
			Background(boardBackground).
			Foreground(lipgloss.Color("#ff4444")).
			Bold(true)

	bulletStyle = lipgloss.NewStyle().
			Background(boardBackground).
			Foreground(lipgloss.Color("#ffcc00")).
			Bold(true)

	previewStyle = lipgloss.NewStyle().
			Background(boardBackground).
			Foreground(lipgloss.Color("#44ffff"))

	cursorStyle = lipgloss.NewStyle().
			Background(boardBackground).
			Foreground(lipgloss.Color("#ffffff")).
			Bold(true)

	// One colour per player slot.
	playerColors = []lipgloss.Color{
		lipgloss.Color("#00ff88"), // Green
		lipgloss.Color("#4488ff"), // Blue
		lipgloss.Color("#ff44ff"), // Magenta
		lipgloss.Color("#ffff44"), // Yellow
	}

	// HUD styles
	hudBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff8844")).
			Bold(true)

	lobbyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#44aaff")).
			Bold(true)

	winnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff88")).
			Bold(true).
			Blink(true)

	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// Overlay is client-side decoration drawn over the board.
type Overlay struct {
	Cursor  *grid.Point
	Preview []grid.Point
}

// boardLayers indexes everything drawn on top of the terrain by tile.
type boardLayers struct {
	players map[grid.Point]*game.Player
	enemies map[grid.Point]game.Enemy
	bullets map[grid.Point]bool
	paths   map[grid.Point]int // tile -> color index of the player walking it
	preview map[grid.Point]bool
	cursor  *grid.Point
}

func buildLayers(state *game.GameState, overlay Overlay) boardLayers {
	layers := boardLayers{
		players: make(map[grid.Point]*game.Player, len(state.Players)),
		enemies: make(map[grid.Point]game.Enemy, len(state.Enemies)),
		bullets: make(map[grid.Point]bool, len(state.Bullets)),
		paths:   make(map[grid.Point]int),
		preview: make(map[grid.Point]bool, len(overlay.Preview)),
		cursor:  overlay.Cursor,
	}

	for _, p := range state.Players {
		layers.players[p.Tile] = p
		for _, step := range p.Path {
			layers.paths[step] = p.Color
		}
	}
	for _, en := range state.Enemies {
		if en.Alive {
			layers.enemies[en.Tile] = en
		}
	}
	if state.TileSize > 0 {
		for _, b := range state.Bullets {
			layers.bullets[steer.TileAt(b.Pos, state.TileSize)] = true
		}
	}
	for _, step := range overlay.Preview {
		layers.preview[step] = true
	}
	return layers
}

// RenderBoard draws terrain, paths, the preview overlay and every agent.
func RenderBoard(state *game.GameState, myID string, overlay Overlay) string {
	if state == nil || len(state.Board) == 0 {
		return "Waiting for game state..."
	}

	layers := buildLayers(state, overlay)

	var rows []string
	for y := 0; y < state.Height && y < len(state.Board); y++ {
		var cells []string
		for x := 0; x < state.Width && x < len(state.Board[y]); x++ {
			cells = append(cells, renderCell(state.Board[y][x], grid.Point{X: x, Y: y}, layers, myID))
		}
		rows = append(rows, strings.Join(cells, ""))
	}

	return strings.Join(rows, "\n")
}

// renderCell draws one tile, cellWidth columns wide.
func renderCell(tile grid.TileCode, pos grid.Point, layers boardLayers, myID string) string {
	// Priority: Player > Enemy > Bullet > Cursor > Preview > Path > Tile
	if p, ok := layers.players[pos]; ok {
		color := playerColors[p.Color%len(playerColors)]
		style := lipgloss.NewStyle().
			Background(boardBackground).
			Foreground(color).
			Bold(true)

		label := fmt.Sprintf("P%d", p.Color+1)
		if p.ID == myID {
			label = glyphMe
		}
		return style.Render(label)
	}

	if en, ok := layers.enemies[pos]; ok {
		return enemyStyle.Render(fmt.Sprintf("E%d", en.ID%10))
	}

	if layers.bullets[pos] {
		return bulletStyle.Render(glyphBullet)
	}

	if layers.cursor != nil && *layers.cursor == pos {
		return cursorStyle.Render(glyphCursor)
	}

	if layers.preview[pos] {
		return previewStyle.Render(glyphPreview)
	}

	if colorIdx, ok := layers.paths[pos]; ok {
		return lipgloss.NewStyle().
			Background(boardBackground).
			Foreground(playerColors[colorIdx%len(playerColors)]).
			Render(glyphPath)
	}

	switch tile {
	case grid.Wall:
		return wallStyle.Render(glyphWall)
	case grid.Breakable:
		return breakableStyle.Render(glyphBreakable)
	default:
		return floorStyle.Render(glyphFloor)
	}
}

// RenderHUD renders the heads-up display showing scores, game status and
// the hovered path preview.
func RenderHUD(state *game.GameState, myID string, preview *network.PathResultMsg, mode, notice string) string {
	if state == nil {
		return ""
	}

	var parts []string

	// Title
	parts = append(parts, titleStyle.Render("GRIDCHASE"))
	parts = append(parts, "")

	// Game status
	switch state.Status {
	case game.StatusLobby:
		parts = append(parts, lobbyStyle.Render("LOBBY: waiting for players..."))
		parts = append(parts, "   Press [Enter] to start!")
	case game.StatusRunning:
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444")).Render("GAME IN PROGRESS"))
	case game.StatusOver:
		if p, ok := state.Players[state.Winner]; ok {
			parts = append(parts, winnerStyle.Render(fmt.Sprintf("%s WINS!", p.Name)))
		} else {
			parts = append(parts, dimStyle.Render("GAME OVER"))
		}
	}
	parts = append(parts, "")

	// Player list
	parts = append(parts, dimStyle.Render("Players:"))
	ids := make([]string, 0, len(state.Players))
	for id := range state.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := state.Players[id]
		nameStyle := lipgloss.NewStyle().Foreground(playerColors[p.Color%len(playerColors)])

		marker := "  "
		if p.ID == myID {
			marker = "→ "
		}
		parts = append(parts, fmt.Sprintf("%s%s  score %d  deaths %d", marker, nameStyle.Render(p.Name), p.Score, p.Deaths))
	}

	alive := 0
	for _, en := range state.Enemies {
		if en.Alive {
			alive++
		}
	}
	parts = append(parts, "")
	parts = append(parts, fmt.Sprintf("Enemies: %d/%d", alive, len(state.Enemies)))

	// Path preview
	parts = append(parts, fmt.Sprintf("Preview: %s", mode))
	if preview != nil {
		if preview.Found {
			parts = append(parts, previewStyle.Render(fmt.Sprintf("  %v: %d steps, %d expanded", preview.To, len(preview.Path), preview.Expanded)))
		} else {
			parts = append(parts, dimStyle.Render(fmt.Sprintf("  %v: no path (%s)", preview.To, preview.Reason)))
		}
	}

	if notice != "" {
		parts = append(parts, "")
		parts = append(parts, noticeStyle.Render(notice))
	}

	parts = append(parts, "")
	parts = append(parts, helpStyle.Render("Click: Walk | Right-click/Space: Shoot at"))
	parts = append(parts, helpStyle.Render("WASD/Arrows: Step | IJKL: Shoot | Tab: Mode | Q: Quit"))

	return hudBorderStyle.Render(strings.Join(parts, "\n"))
}

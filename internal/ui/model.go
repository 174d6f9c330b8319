package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amalg/go-gridchase/internal/game"
	"github.com/amalg/go-gridchase/internal/grid"
	"github.com/amalg/go-gridchase/internal/network"
)

// Conn is the part of *network.Client the TUI drives.
type Conn interface {
	PlayerID() string
	StateChan() <-chan game.GameState
	PathResults() <-chan network.PathResultMsg
	Errors() <-chan string
	SendAction(actionType game.ActionType, dir game.Direction) error
	MoveTo(target grid.Point) error
	ShootAt(target grid.Point) error
	QueryPath(target grid.Point, mode string) error
	SendStart() error
}

// Preview modes cycled with Tab.
const (
	previewFIFO    = "fifo"
	previewOptimal = "optimal"
)

// stateUpdateMsg is the latest snapshot from the server.
type stateUpdateMsg game.GameState

// pathResultMsg carries the answer to a hover path query.
type pathResultMsg network.PathResultMsg

// noticeMsg carries an error message sent by the server.
type noticeMsg string

// errMsg carries an error.
type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// Model is the arena client: it sends actions and path queries through a Conn.
type Model struct {
	conn     Conn
	state    *game.GameState
	playerID string
	cursor   *grid.Point
	preview  *network.PathResultMsg
	mode     string
	notice   string
	err      error
	quitting bool
}

// NewModel creates a new TUI model driving the given connection.
func NewModel(conn Conn) Model {
	return Model{
		conn:     conn,
		playerID: conn.PlayerID(),
		mode:     previewFIFO,
	}
}

// Init starts listening for updates from the server.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForState(m.conn), waitForPath(m.conn), waitForNotice(m.conn))
}

// Update handles incoming messages (input and server updates).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case stateUpdateMsg:
		state := game.GameState(msg)
		m.state = &state
		return m, waitForState(m.conn)

	case pathResultMsg:
		res := network.PathResultMsg(msg)
		// Answers for tiles the cursor already left are stale.
		if m.cursor != nil && *m.cursor == res.To {
			m.preview = &res
		}
		return m, waitForPath(m.conn)

	case noticeMsg:
		m.notice = string(msg)
		return m, waitForNotice(m.conn)

	case errMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

// View renders the current game state.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.err != nil {
		return noticeStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	overlay := Overlay{Cursor: m.cursor}
	if m.preview != nil {
		overlay.Preview = m.preview.Path
	}
	board := RenderBoard(m.state, m.playerID, overlay)
	hud := RenderHUD(m.state, m.playerID, m.preview, m.mode, m.notice)

		return lipgloss.JoinHorizontal(
		lipgloss.Top,
		board,
		"  ",
		hud,
	) + "\n"
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "w":
		m.conn.SendAction(game.ActionMove, game.DirUp)
	case "down", "s":
		m.conn.SendAction(game.ActionMove, game.DirDown)
	case "left", "a":
		m.conn.SendAction(game.ActionMove, game.DirLeft)
	case "right", "d":
		m.conn.SendAction(game.ActionMove, game.DirRight)

	case "i":
		m.conn.SendAction(game.ActionShoot, game.DirUp)
	case "k":
		m.conn.SendAction(game.ActionShoot, game.DirDown)
	case "j":
		m.conn.SendAction(game.ActionShoot, game.DirLeft)
	case "l":
		m.conn.SendAction(game.ActionShoot, game.DirRight)
	case " ":
		if m.cursor != nil {
			m.conn.ShootAt(*m.cursor)
		}

	case "tab":
		if m.mode == previewFIFO {
			m.mode = previewOptimal
		} else {
			m.mode = previewFIFO
		}
		m.preview = nil
		if m.cursor != nil {
			m.conn.QueryPath(*m.cursor, m.mode)
		}

	case "enter":
		m.conn.SendStart()
	}

	return m, nil
}

// handleMouse walks on left click, shoots on right click and previews the
// path to whatever tile the pointer hovers.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	tile, ok := m.tileAt(msg.X, msg.Y)
	if !ok {
		return m, nil
	}

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			m.conn.MoveTo(tile)
		case tea.MouseButtonRight:
			m.conn.ShootAt(tile)
		}
	case tea.MouseActionMotion:
		if m.cursor != nil && *m.cursor == tile {
			return m, nil
		}
		m.cursor = &tile
		m.preview = nil
		m.conn.QueryPath(tile, m.mode)
	}
	return m, nil
}

// tileAt maps a terminal cell to a board tile. The board is drawn at the
// top-left corner of the view.
func (m Model) tileAt(col, row int) (grid.Point, bool) {
	if m.state == nil || col < 0 || row < 0 {
		return grid.Point{}, false
	}
	p := grid.Point{X: col / cellWidth, Y: row}
	if p.X >= m.state.Width || p.Y >= m.state.Height {
		return grid.Point{}, false
	}
	return p, true
}

// waitForState blocks on the next snapshot.
func waitForState(conn Conn) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-conn.StateChan()
		if !ok {
			return errMsg{err: fmt.Errorf("server connection closed")}
		}
		return stateUpdateMsg(state)
	}
}

func waitForPath(conn Conn) tea.Cmd {
	return func() tea.Msg {
		return pathResultMsg(<-conn.PathResults())
	}
}

func waitForNotice(conn Conn) tea.Cmd {
	return func() tea.Msg {
		return noticeMsg(<-conn.Errors())
	}
}

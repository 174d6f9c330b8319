package network

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/amalg/go-gridchase/internal/game"
	"github.com/amalg/go-gridchase/internal/grid"
)

// Client connects to a game server and provides methods to send actions
// and receive state updates.
type Client struct {
	conn     net.Conn
	playerID string
	config   game.Config
	stateCh  chan game.GameState
	pathCh   chan PathResultMsg
	errCh    chan string
	done     chan struct{}
	once     sync.Once
	mu       sync.Mutex
}

// NewClient creates a new client and connects to the server.
func NewClient(addr, name string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	c := &Client{
		conn:    conn,
		stateCh: make(chan game.GameState, 10),
		pathCh:  make(chan PathResultMsg, 4),
		errCh:   make(chan string, 4),
		done:    make(chan struct{}),
	}

	// Send join message
	if err := Encode(conn, MsgJoin, JoinMsg{Name: name}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send join: %w", err)
	}

	// Read welcome message
	env, err := Decode(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}

	if env.Type == MsgError {
		var errMsg ErrorMsg
		DecodePayload(env, &errMsg)
		conn.Close()
		return nil, fmt.Errorf("server error: %s", errMsg.Message)
	}

	if env.Type != MsgWelcome {
		conn.Close()
		return nil, fmt.Errorf("expected welcome, got %s", env.Type)
	}

	var welcome WelcomeMsg
	if err := DecodePayload(env, &welcome); err != nil {
		conn.Close()
		return nil, fmt.Errorf("decode welcome: %w", err)
	}

	c.playerID = welcome.PlayerID
	c.config = welcome.Config

	// Start receiving state updates
	go c.receiveLoop()

	return c, nil
}

// PlayerID returns the client's assigned player ID.
func (c *Client) PlayerID() string {
	return c.playerID
}

// Config returns the game configuration received from the server.
func (c *Client) Config() game.Config {
	return c.config
}

// StateChan returns a channel that yields game state updates.
func (c *Client) StateChan() <-chan game.GameState {
	return c.stateCh
}

// PathResults yields answers to QueryPath.
func (c *Client) PathResults() <-chan PathResultMsg {
	return c.pathCh
}

// Errors yields error messages sent by the server.
func (c *Client) Errors() <-chan string {
	return c.errCh
}

// SendAction sends a player action to the server.
func (c *Client) SendAction(actionType game.ActionType, dir game.Direction) error {
	return c.send(MsgAction, ActionMsg{
		ActionType: actionType,
		Direction:  dir,
	})
}

// MoveTo asks the server to walk the player to target.
func (c *Client) MoveTo(target grid.Point) error {
	return c.send(MsgAction, ActionMsg{
		ActionType: game.ActionMoveTo,
		Target:     &target,
	})
}

// ShootAt fires toward the centre of target.
func (c *Client) ShootAt(target grid.Point) error {
	return c.send(MsgAction, ActionMsg{
		ActionType: game.ActionShoot,
		Target:     &target,
	})
}

// QueryPath asks for the path from the player's tile to target without
// moving. An empty mode uses the server's setting.
func (c *Client) QueryPath(target grid.Point, mode string) error {
	return c.send(MsgPathQuery, PathQueryMsg{To: target, Mode: mode})
}

// SendStart requests the server to start the game.
func (c *Client) SendStart() error {
	return c.send(MsgStart, struct{}{})
}

func (c *Client) send(msgType MsgType, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Encode(c.conn, msgType, payload)
}

// Close disconnects from the server.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
	c.conn.Close()
}

func (c *Client) receiveLoop() {
	defer close(c.stateCh)

	for {
		select {
		case <-c.done:
			return
		default:
		}

		env, err := Decode(c.conn)
		if err != nil {
			return
		}

		switch env.Type {
		case MsgState:
			var stateMsg StateMsg
			if err := DecodePayload(env, &stateMsg); err != nil {
				continue
			}
			// Non-blocking send to state channel
			select {
			case c.stateCh <- stateMsg.State:
			default:
				// Drop old state if consumer is slow. The latest state matters most.
				select {
				case <-c.stateCh:
				default:
				}
				c.stateCh <- stateMsg.State
			}
		case MsgPathResult:
			var result PathResultMsg
			if err := DecodePayload(env, &result); err != nil {
				continue
			}
			offerLatest(c.pathCh, result)
		case MsgError:
			var errMsg ErrorMsg
			if err := DecodePayload(env, &errMsg); err != nil {
				continue
			}
			offerLatest(c.errCh, errMsg.Message)
		}
	}
}

// offerLatest sends v, evicting the oldest buffered value when ch is full.
func offerLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

package network

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/amalg/go-gridchase/internal/game"
	"github.com/amalg/go-gridchase/internal/grid"
)

// MaxMessageSize caps a single framed message.
const MaxMessageSize = 1 << 20

// MsgType identifies the type of network message.
type MsgType string

const (
	MsgJoin       MsgType = "join"
	MsgWelcome    MsgType = "welcome"
	MsgAction     MsgType = "action"
	MsgState      MsgType = "state"
	MsgError      MsgType = "error"
	MsgStart      MsgType = "start"
	MsgPathQuery  MsgType = "path_query"
	MsgPathResult MsgType = "path_result"
)

// Envelope wraps all messages with a type discriminator for deserialization.
type Envelope struct {
	Type    MsgType         `json:"type" jsonschema:"enum=join,enum=welcome,enum=action,enum=state,enum=error,enum=start,enum=path_query,enum=path_result"`
	Payload json.RawMessage `json:"payload"`
}

// --- Client → Server Messages ---

// JoinMsg is sent by a client to join the game.
type JoinMsg struct {
	Name string `json:"name" jsonschema:"description=Display name shown to other players"`
}

// ActionMsg is sent by a client to perform an action. Target is the
// destination of a move_to and the aim point of a targeted shot.
type ActionMsg struct {
	ActionType game.ActionType `json:"action_type" jsonschema:"description=0 move (nudge) 1 move_to 2 shoot"`
	Direction  game.Direction  `json:"direction,omitempty" jsonschema:"description=0 up 1 down 2 left 3 right"`
	Target     *grid.Point     `json:"target,omitempty"`
}

// PathQueryMsg asks the server for a path on the current terrain without
// moving. From defaults to the sender's current tile.
type PathQueryMsg struct {
	From *grid.Point `json:"from,omitempty"`
	To   grid.Point  `json:"to"`
	Mode string      `json:"mode,omitempty" jsonschema:"enum=fifo,enum=optimal,description=Expansion order; empty uses the server setting"`
}

// --- Server → Client Messages ---

// WelcomeMsg is sent to a client after joining.
type WelcomeMsg struct {
	PlayerID string      `json:"player_id"`
	Config   game.Config `json:"config"`
}

// StateMsg is the full game state broadcast to all clients.
type StateMsg struct {
	State game.GameState `json:"state"`
}

// PathResultMsg answers a PathQueryMsg. An empty Path means no path.
type PathResultMsg struct {
	From     grid.Point   `json:"from"`
	To       grid.Point   `json:"to"`
	Path     []grid.Point `json:"path"`
	Found    bool         `json:"found"`
	Reason   string       `json:"reason"`
	Expanded int          `json:"expanded"`
	Mode     string       `json:"mode"`
}

// ErrorMsg notifies a client of an error.
type ErrorMsg struct {
	Message string `json:"message"`
}

// marshalEnvelope builds the JSON body shared by the TCP and websocket feeds.
func marshalEnvelope(msgType MsgType, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	env := Envelope{
		Type:    msgType,
		Payload: json.RawMessage(payloadBytes),
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return body, nil
}

// Encode serializes a message and writes it to the writer.
// Format: [4-byte big-endian length][JSON body]
func Encode(w io.Writer, msgType MsgType, payload interface{}) error {
	body, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	if len(body) > MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes", len(body))
	}

	// One write per frame keeps concurrent writers from interleaving headers.
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Decode reads a length-prefixed JSON message from the reader.
func Decode(r io.Reader) (*Envelope, error) {
	// Read 4-byte length header
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	if length > MaxMessageSize {
		return nil, fmt.Errorf("message too large: %d bytes", length)
	}

	// Read body
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	return &env, nil
}

// DecodePayload unmarshals the payload from an envelope into the target struct.
func DecodePayload(env *Envelope, target interface{}) error {
	if err := json.Unmarshal(env.Payload, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}

package network

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/amalg/go-gridchase/internal/game"
	"github.com/amalg/go-gridchase/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Spectators only send control frames.
	maxSpectatorMessage = 512

	spectatorBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// viewer is one websocket spectator.
type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

// Spectator streams state envelopes to read-only websocket viewers. Slow
// viewers miss frames rather than stalling the game loop.
type Spectator struct {
	mu      sync.RWMutex
	viewers map[*viewer]struct{}
	closed  bool
	log     *logrus.Entry
}

// NewSpectator creates an empty spectator hub.
func NewSpectator() *Spectator {
	return &Spectator{
		viewers: make(map[*viewer]struct{}),
		log:     logger.Component("spectator"),
	}
}

// Handler serves /ws for viewers and /health for probes.
func (s *Spectator) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return enableCORS(mux)
}

// ViewerCount reports how many viewers are attached.
func (s *Spectator) ViewerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.viewers)
}

// Publish marshals the state once and fans it out to every viewer.
func (s *Spectator) Publish(state game.GameState) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.viewers) == 0 {
		return
	}

	frame, err := marshalEnvelope(MsgState, StateMsg{State: state})
	if err != nil {
		s.log.WithError(err).Error("failed to encode spectator frame")
		return
	}
	for v := range s.viewers {
		select {
		case v.send <- frame:
		default:
		}
	}
}

// Close disconnects every viewer and refuses new ones.
func (s *Spectator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for v := range s.viewers {
		delete(s.viewers, v)
		close(v.send)
	}
}

func (s *Spectator) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	v := &viewer{conn: conn, send: make(chan []byte, spectatorBuffer)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.viewers[v] = struct{}{}
	count := len(s.viewers)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"remote": r.RemoteAddr, "viewers": count}).Info("spectator connected")

	go s.writePump(v)
	go s.readPump(v)
}

func (s *Spectator) unregister(v *viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.viewers[v]; ok {
		delete(s.viewers, v)
		close(v.send)
	}
}

// readPump discards viewer input and detects disconnects.
func (s *Spectator) readPump(v *viewer) {
	defer func() {
		s.unregister(v)
		v.conn.Close()
	}()

	v.conn.SetReadLimit(maxSpectatorMessage)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.WithError(err).Warn("spectator read error")
			}
			return
		}
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (s *Spectator) writePump(v *viewer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.WithError(err).Debug("spectator write failed")
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

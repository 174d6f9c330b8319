package network

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/amalg/go-gridchase/internal/discovery"
	"github.com/amalg/go-gridchase/internal/game"
	"github.com/amalg/go-gridchase/internal/grid"
	"github.com/amalg/go-gridchase/internal/pathfind"
	"github.com/amalg/go-gridchase/pkg/logger"
)

// Server hosts the game and manages client connections.
type Server struct {
	engine    *game.Engine
	addr      string
	listener  net.Listener
	clients   map[string]*clientConn
	pools     map[pathfind.Mode]*pathfind.Pool
	spectator *Spectator
	httpSrv   *http.Server
	httpAddr  net.Addr
	beacon    *discovery.Broadcaster
	nextID    atomic.Uint64
	mu        sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
	log       *logrus.Entry
}

// clientConn represents a connected client.
type clientConn struct {
	conn     net.Conn
	playerID string
	mu       sync.Mutex
}

// send writes one framed message. Writers share the connection, so every
// write goes through here.
func (cc *clientConn) send(msgType MsgType, payload interface{}) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return Encode(cc.conn, msgType, payload)
}

// NewServer creates a new game server.
func NewServer(addr string, config game.Config) (*Server, error) {
	engine, err := game.NewEngine(config)
	if err != nil {
		return nil, err
	}

	// Path queries run off the engine goroutine against grid snapshots.
	queryLog := logger.Component("pathquery")
	pools := make(map[pathfind.Mode]*pathfind.Pool, 2)
	for _, mode := range []pathfind.Mode{pathfind.ModeFIFO, pathfind.ModeOptimal} {
		pools[mode] = pathfind.NewPool(
			pathfind.WithMode(mode),
			pathfind.WithMaxExpansions(config.MaxExpansions),
			pathfind.WithLogger(queryLog),
		)
	}

	s := &Server{
		engine:    engine,
		addr:      addr,
		clients:   make(map[string]*clientConn),
		pools:     pools,
		spectator: NewSpectator(),
		done:      make(chan struct{}),
		log:       logger.Component("server"),
	}

	// Set up the broadcast callback. It receives a pre-copied state from the engine.
	engine.OnTick(func(state game.GameState) {
		s.broadcastState(state)
		s.spectator.Publish(state)
	})

	return s, nil
}

// Engine returns the underlying game engine.
func (s *Server) Engine() *game.Engine {
	return s.engine
}

// Addr returns the address the server is listening on, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start begins accepting connections and running the game loop.
func (s *Server) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.log.WithField("addr", s.listener.Addr().String()).Info("listening")

	// Log local IPs for convenience
	logLocalIPs(s.log, s.listener.Addr().String())

	// Start game engine in background
	go s.engine.Run()

	// Accept connections
	go s.acceptLoop()

	return nil
}

// ServeSpectators exposes the websocket spectator feed on addr.
func (s *Server) ServeSpectators(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen spectators: %w", err)
	}

	s.mu.Lock()
	s.httpSrv = &http.Server{Handler: s.spectator.Handler()}
	s.httpAddr = ln.Addr()
	srv := s.httpSrv
	s.mu.Unlock()

	s.log.WithField("addr", ln.Addr().String()).Info("spectator feed listening")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("spectator feed stopped")
		}
	}()
	return nil
}

// SpectatorAddr returns the spectator feed address, or nil if it is not served.
func (s *Server) SpectatorAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.httpAddr
}

// Stop shuts down the server. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.engine.Stop()
		if s.listener != nil {
			s.listener.Close()
		}

		s.mu.RLock()
		for _, c := range s.clients {
			c.conn.Close()
		}
		srv := s.httpSrv
		s.mu.RUnlock()

		s.spectator.Close()
		if s.beacon != nil {
			s.beacon.Stop()
		}
		if srv != nil {
			srv.Close()
		}
		s.log.Info("server stopped")
	})
}

// Advertise announces the arena on the LAN under name until Stop.
func (s *Server) Advertise(name, host string, port int) error {
	if s.listener == nil {
		return errors.New("advertise before start")
	}
	_, gamePort, _ := net.SplitHostPort(s.listener.Addr().String())
	s.beacon = discovery.NewBroadcaster(port, func() discovery.ArenaInfo {
		info := discovery.ArenaInfo{
			Name:       name,
			Host:       host,
			Players:    s.engine.PlayerCount(),
			MaxPlayers: s.engine.Config.MaxPlayers,
			Layout:     s.engine.LayoutName(),
			SearchMode: s.engine.Config.SearchMode.String(),
			Status:     s.engine.Status().String(),
			GameAddr:   net.JoinHostPort(advertisedIP(), gamePort),
		}
		if addr := s.SpectatorAddr(); addr != nil {
			_, wsPort, _ := net.SplitHostPort(addr.String())
			info.SpectatorAddr = net.JoinHostPort(advertisedIP(), wsPort)
		}
		return info
	})
	return s.beacon.Start()
}

// StartGame starts the game from lobby to running.
func (s *Server) StartGame() error {
	return s.engine.StartGame()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.log.WithError(err).Warn("accept error")
				continue
			}
		}
		go s.handleClient(conn)
	}
}

func (s *Server) handleClient(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	// Read join message
	env, err := Decode(conn)
	if err != nil {
		s.log.WithError(err).WithField("remote", remote).Warn("failed to read join message")
		return
	}

	if env.Type != MsgJoin {
		s.log.WithField("remote", remote).Warnf("expected join message, got %s", env.Type)
		Encode(conn, MsgError, ErrorMsg{Message: "expected join message"})
		return
	}

	var joinMsg JoinMsg
	if err := DecodePayload(env, &joinMsg); err != nil {
		s.log.WithError(err).WithField("remote", remote).Warn("failed to decode join message")
		return
	}

	playerID := fmt.Sprintf("p%d", s.nextID.Add(1))

	// Add player to engine
	if err := s.engine.AddPlayer(playerID, joinMsg.Name); err != nil {
		s.log.WithError(err).WithField("name", joinMsg.Name).Info("join refused")
		Encode(conn, MsgError, ErrorMsg{Message: err.Error()})
		return
	}

	// Register client
	cc := &clientConn{
		conn:     conn,
		playerID: playerID,
	}
	s.mu.Lock()
	s.clients[playerID] = cc
	s.mu.Unlock()

	log := s.log.WithField("player", playerID)
	log.WithFields(logrus.Fields{"name": joinMsg.Name, "remote": remote}).Info("player connected")

	// Send welcome message
	welcome := WelcomeMsg{
		PlayerID: playerID,
		Config:   s.engine.Config,
	}
	if err := cc.send(MsgWelcome, welcome); err != nil {
		log.WithError(err).Warn("failed to send welcome")
		s.removeClient(playerID)
		return
	}

	// Send initial state
	s.sendStateTo(cc, s.engine.GetStateCopy())

	// Read messages loop
	for {
		select {
		case <-s.done:
			return
		default:
		}

		env, err := Decode(conn)
		if err != nil {
			log.WithError(err).Info("player disconnected")
			s.removeClient(playerID)
			return
		}

		switch env.Type {
		case MsgAction:
			var actionMsg ActionMsg
			if err := DecodePayload(env, &actionMsg); err != nil {
				log.WithError(err).Warn("invalid action")
				continue
			}
			s.engine.EnqueueAction(toAction(playerID, actionMsg))
		case MsgStart:
			// Any player may start the game from the lobby.
			if err := s.engine.StartGame(); err != nil {
				cc.send(MsgError, ErrorMsg{Message: err.Error()})
			}
		case MsgPathQuery:
			var query PathQueryMsg
			if err := DecodePayload(env, &query); err != nil {
				log.WithError(err).Warn("invalid path query")
				cc.send(MsgError, ErrorMsg{Message: err.Error()})
				continue
			}
			result, err := s.answerPathQuery(playerID, query)
			if err != nil {
				cc.send(MsgError, ErrorMsg{Message: err.Error()})
				continue
			}
			if err := cc.send(MsgPathResult, result); err != nil {
				log.WithError(err).Warn("failed to send path result")
			}
		default:
			log.Warnf("unknown message type %s", env.Type)
		}
	}
}

func toAction(playerID string, msg ActionMsg) game.Action {
	a := game.Action{
		PlayerID: playerID,
		Type:     msg.ActionType,
		Dir:      msg.Direction,
	}
	if msg.Target != nil {
		a.Target = *msg.Target
		a.HasTarget = true
	}
	return a
}

// answerPathQuery searches a snapshot of the terrain so the game loop is
// never blocked by a query.
func (s *Server) answerPathQuery(playerID string, q PathQueryMsg) (PathResultMsg, error) {
	mode := s.engine.Config.SearchMode
	if q.Mode != "" {
		m, err := pathfind.ParseMode(q.Mode)
		if err != nil {
			return PathResultMsg{}, err
		}
		mode = m
	}

	var from grid.Point
	if q.From != nil {
		from = *q.From
	} else {
		tile, ok := s.engine.PlayerTile(playerID)
		if !ok {
			return PathResultMsg{}, fmt.Errorf("player %s has no position", playerID)
		}
		from = tile
	}

	res := s.pools[mode].Search(s.engine.GridSnapshot(), from, q.To)
	path := []grid.Point(res.Path)
	if path == nil {
		path = []grid.Point{}
	}
	return PathResultMsg{
		From:     from,
		To:       q.To,
		Path:     path,
		Found:    res.Found,
		Reason:   res.Reason.String(),
		Expanded: res.Expanded,
		Mode:     mode.String(),
	}, nil
}

func (s *Server) removeClient(playerID string) {
	s.mu.Lock()
	if cc, ok := s.clients[playerID]; ok {
		cc.conn.Close()
		delete(s.clients, playerID)
	}
	s.mu.Unlock()
	s.engine.RemovePlayer(playerID)
	s.log.WithField("player", playerID).Info("player removed")
}

func (s *Server) broadcastState(state game.GameState) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cc := range s.clients {
		s.sendStateTo(cc, state)
	}
}

func (s *Server) sendStateTo(cc *clientConn, state game.GameState) {
	if err := cc.send(MsgState, StateMsg{State: state}); err != nil {
		s.log.WithError(err).WithField("player", cc.playerID).Debug("failed to send state")
	}
}

// advertisedIP is the first non-loopback IPv4 address, falling back to
// loopback on machines without one.
func advertisedIP() string {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return "127.0.0.1"
}

// logLocalIPs logs all local network interfaces for players to connect to.
func logLocalIPs(log *logrus.Entry, addr string) {
	_, port, _ := net.SplitHostPort(addr)

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return
	}

	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				log.WithField("addr", net.JoinHostPort(ipnet.IP.String(), port)).Info("players can connect using")
			}
		}
	}
}

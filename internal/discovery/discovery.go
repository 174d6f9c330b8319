package discovery

import (
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amalg/go-gridchase/pkg/logger"
)

const (
	// DefaultPort is the UDP port used for arena discovery.
	DefaultPort = 9998
	// BroadcastInterval is how often hosts advertise their arena.
	BroadcastInterval = 1 * time.Second
	// ArenaExpiry is how long an arena stays visible after its last broadcast.
	ArenaExpiry = 4 * time.Second

	maxPacket = 4096
)

// ArenaInfo describes a running arena on the network.
type ArenaInfo struct {
	Name          string `json:"name"`
	Host          string `json:"host"`
	Players       int    `json:"players"`
	MaxPlayers    int    `json:"max_players"`
	Layout        string `json:"layout"`
	SearchMode    string `json:"search_mode"`
	Status        string `json:"status"`
	GameAddr      string `json:"game_addr"` // TCP host:port to connect to
	SpectatorAddr string `json:"spectator_addr,omitempty"`
}

// --- Broadcaster ---

// Broadcaster periodically sends UDP packets describing an arena. The
// description is fetched from source on every send so player counts stay
// current.
type Broadcaster struct {
	source   func() ArenaInfo
	port     int
	conn     net.PacketConn
	done     chan struct{}
	stopOnce sync.Once
	log      *logrus.Entry
}

// NewBroadcaster creates an arena broadcaster targeting the given UDP port.
func NewBroadcaster(port int, source func() ArenaInfo) *Broadcaster {
	return &Broadcaster{
		source: source,
		port:   port,
		done:   make(chan struct{}),
		log:    logger.Component("discovery"),
	}
}

// Start opens the broadcast socket and begins advertising.
func (b *Broadcaster) Start() error {
	// An unconnected socket can write to broadcast addresses.
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return fmt.Errorf("create broadcast socket: %w", err)
	}
	b.conn = conn
	go b.broadcastLoop()
	return nil
}

// Stop stops the broadcaster. It is safe to call more than once.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
}

func (b *Broadcaster) broadcastLoop() {
	defer b.conn.Close()

	ticker := time.NewTicker(BroadcastInterval)
	defer ticker.Stop()

	b.sendBroadcast()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.sendBroadcast()
		}
	}
}

func (b *Broadcaster) sendBroadcast() {
	data, err := json.Marshal(b.source())
	if err != nil {
		b.log.WithError(err).Warn("failed to encode arena info")
		return
	}

	// Loopback first: local firewalls often drop 255.255.255.255.
	loopback := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: b.port}
	if _, err := b.conn.WriteTo(data, loopback); err != nil {
		b.log.WithError(err).Debug("loopback advertisement failed")
	}

	b.conn.WriteTo(data, &net.UDPAddr{IP: net.IPv4bcast, Port: b.port})

	// Directed broadcast per interface.
	for _, ip := range interfaceBroadcasts() {
		b.conn.WriteTo(data, &net.UDPAddr{IP: ip, Port: b.port})
	}
}

// interfaceBroadcasts lists the IPv4 broadcast address of every interface
// that is up and supports broadcast.
func interfaceBroadcasts() []net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var out []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagBroadcast == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil || len(ipnet.Mask) != net.IPv4len {
				continue
			}
			out = append(out, broadcastAddr(ipnet))
		}
	}
	return out
}

// broadcastAddr is IP | ^Mask.
func broadcastAddr(ipnet *net.IPNet) net.IP {
	ip4 := ipnet.IP.To4()
	broadcast := make(net.IP, net.IPv4len)
	for i := range broadcast {
		broadcast[i] = ip4[i] | ^ipnet.Mask[i]
	}
	return broadcast
}

// --- Listener ---

// seenArena holds an arena and when it was last heard from.
type seenArena struct {
	info     ArenaInfo
	lastSeen time.Time
}

// Listener collects arena advertisements.
type Listener struct {
	port     int
	arenas   map[string]*seenArena // keyed by GameAddr
	mu       sync.RWMutex
	conn     *net.UDPConn
	done     chan struct{}
	stopOnce sync.Once
	log      *logrus.Entry
}

// NewListener creates a listener for the given UDP port. Port 0 picks a free
// port, reported by Addr.
func NewListener(port int) *Listener {
	return &Listener{
		port:   port,
		arenas: make(map[string]*seenArena),
		done:   make(chan struct{}),
		log:    logger.Component("discovery"),
	}
}

// Start begins listening for arena broadcasts.
func (l *Listener) Start() error {
	addr := &net.UDPAddr{
		Port: l.port,
		IP:   net.IPv4zero,
	}

	var err error
	l.conn, err = net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("listen UDP on port %d: %w (is another instance browsing?)", l.port, err)
	}

	go l.listenLoop()
	go l.cleanupLoop()

	return nil
}

// Addr returns the bound UDP address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Stop stops the listener.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
		if l.conn != nil {
			l.conn.Close()
		}
	})
}

// Arenas returns the currently visible arenas ordered by name, then address.
func (l *Listener) Arenas() []ArenaInfo {
	l.mu.RLock()
	arenas := make([]ArenaInfo, 0, len(l.arenas))
	for _, seen := range l.arenas {
		arenas = append(arenas, seen.info)
	}
	l.mu.RUnlock()

	sort.Slice(arenas, func(i, j int) bool {
		if arenas[i].Name != arenas[j].Name {
			return arenas[i].Name < arenas[j].Name
		}
		return arenas[i].GameAddr < arenas[j].GameAddr
	})
	return arenas
}

// Browse listens on port for the given duration and returns what it heard.
func Browse(port int, wait time.Duration) ([]ArenaInfo, error) {
	l := NewListener(port)
	if err := l.Start(); err != nil {
		return nil, err
	}
	defer l.Stop()

	time.Sleep(wait)
	return l.Arenas(), nil
}

func (l *Listener) listenLoop() {
	buf := make([]byte, maxPacket)
	for {
		select {
		case <-l.done:
			return
		default:
		}

		l.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, from, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}

		var info ArenaInfo
		if err := json.Unmarshal(buf[:n], &info); err != nil || info.GameAddr == "" {
			l.log.WithField("from", from.String()).Debug("ignoring malformed advertisement")
			continue
		}
		l.record(info, time.Now())
	}
}

func (l *Listener) record(info ArenaInfo, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, known := l.arenas[info.GameAddr]; !known {
		l.log.WithFields(logrus.Fields{"arena": info.Name, "addr": info.GameAddr}).Debug("arena discovered")
	}
	l.arenas[info.GameAddr] = &seenArena{info: info, lastSeen: now}
}

// prune forgets arenas not heard from within ArenaExpiry of now.
func (l *Listener) prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for addr, seen := range l.arenas {
		if now.Sub(seen.lastSeen) > ArenaExpiry {
			delete(l.arenas, addr)
		}
	}
}

func (l *Listener) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.prune(now)
		}
	}
}

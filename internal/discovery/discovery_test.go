package discovery

import (
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/amalg/go-gridchase/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestBroadcasterReachesListener(t *testing.T) {
	l := NewListener(0)
	if err := l.Start(); err != nil {
		t.Skipf("UDP unavailable: %v", err)
	}
	defer l.Stop()
	port := l.Addr().(*net.UDPAddr).Port

	info := ArenaInfo{Name: "arena", Host: "alice", Players: 1, MaxPlayers: 4, GameAddr: "127.0.0.1:9999"}
	b := NewBroadcaster(port, func() ArenaInfo { return info })
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for {
		arenas := l.Arenas()
		if len(arenas) == 1 {
			if arenas[0] != info {
				t.Fatalf("arena = %+v, want %+v", arenas[0], info)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("advertisement never arrived")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestArenasSortedAndPruned(t *testing.T) {
	l := NewListener(0)
	now := time.Now()
	l.record(ArenaInfo{Name: "b", GameAddr: "10.0.0.2:9999"}, now)
	l.record(ArenaInfo{Name: "a", GameAddr: "10.0.0.3:9999"}, now.Add(-ArenaExpiry-time.Second))
	l.record(ArenaInfo{Name: "a", GameAddr: "10.0.0.1:9999"}, now)

	arenas := l.Arenas()
	if len(arenas) != 3 || arenas[0].GameAddr != "10.0.0.1:9999" || arenas[1].GameAddr != "10.0.0.3:9999" || arenas[2].Name != "b" {
		t.Fatalf("arenas = %+v", arenas)
	}

	l.prune(now)
	arenas = l.Arenas()
	if len(arenas) != 2 {
		t.Fatalf("after prune: %+v", arenas)
	}
	for _, a := range arenas {
		if a.GameAddr == "10.0.0.3:9999" {
			t.Error("stale arena survived prune")
		}
	}
}

func TestBroadcastAddr(t *testing.T) {
	_, ipnet, _ := net.ParseCIDR("192.168.1.0/24")
	ipnet.IP = net.IPv4(192, 168, 1, 17)
	if got := broadcastAddr(ipnet); !got.Equal(net.IPv4(192, 168, 1, 255)) {
		t.Errorf("broadcastAddr = %v, want 192.168.1.255", got)
	}
}

package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amalg/go-gridchase/internal/discovery"
	"github.com/amalg/go-gridchase/internal/game"
	"github.com/amalg/go-gridchase/internal/network"
	"github.com/amalg/go-gridchase/internal/pathfind"
	"github.com/amalg/go-gridchase/internal/ui"
	"github.com/amalg/go-gridchase/pkg/logger"
)

func main() {
	port := flag.Int("port", 9999, "Port to listen on")
	name := flag.String("name", "Host", "Your player name")
	arena := flag.String("arena", "", "Arena name advertised on the LAN (default: <name>'s arena)")
	configPath := flag.String("config", "", "JSON config file overlaid on the defaults")
	layout := flag.String("layout", "", "reference, generated, or an ASCII map file (overrides config)")
	mode := flag.String("mode", "", "Search mode: fifo or optimal (overrides config)")
	maxPlayers := flag.Int("max-players", 0, "Maximum number of players (overrides config)")
	wsAddr := flag.String("ws", "", "Spectator websocket address, e.g. :8080 (disabled when empty)")
	advertise := flag.Bool("advertise", true, "Announce the arena for LAN discovery")
	discoveryPort := flag.Int("discovery-port", discovery.DefaultPort, "UDP port for LAN discovery")
	headless := flag.Bool("headless", false, "Host without joining as a player")
	logFile := flag.String("log", "", "Log file path (default: discard server logs, stdout when headless)")
	flag.Parse()

	logger.Init()

	config := game.DefaultConfig()
	if *configPath != "" {
		var err error
		config, err = game.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *layout != "" {
		config.Layout = *layout
	}
	if *mode != "" {
		m, err := pathfind.ParseMode(*mode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -mode: %v\n", err)
			os.Exit(1)
		}
		config.SearchMode = m
	}
	if *maxPlayers > 0 {
		config.MaxPlayers = *maxPlayers
	}

	// The TUI owns the terminal, so logs go to a file or nowhere.
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger.SetOutput(f)
	} else if !*headless {
		logger.SetOutput(io.Discard)
	}

	server, err := network.NewServer(net.JoinHostPort("0.0.0.0", strconv.Itoa(*port)), config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}
	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
	if *wsAddr != "" {
		if err := server.ServeSpectators(*wsAddr); err != nil {
			server.Stop()
			fmt.Fprintf(os.Stderr, "Failed to start spectator feed: %v\n", err)
			os.Exit(1)
		}
	}
	if *advertise {
		arenaName := *arena
		if arenaName == "" {
			arenaName = fmt.Sprintf("%s's arena", *name)
		}
		if err := server.Advertise(arenaName, *name, *discoveryPort); err != nil {
			// Discovery is a convenience; players can still join by address.
			logger.Log.WithError(err).Warn("LAN discovery disabled")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *headless {
		fmt.Printf("Gridchase server on port %d (%s layout, %s search)\n", *port, config.Layout, config.SearchMode)
		printJoinAddrs(*port)
		<-sigCh
		server.Stop()
		return
	}

	client, err := network.NewClient(net.JoinHostPort("127.0.0.1", strconv.Itoa(*port)), *name)
	if err != nil {
		server.Stop()
		fmt.Fprintf(os.Stderr, "Host could not join its own arena: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Gridchase server on port %d\n", *port)
	printJoinAddrs(*port)
	if *wsAddr != "" {
		fmt.Printf("Spectators: ws://%s/ws\n", server.SpectatorAddr())
	}
	fmt.Printf("\nJoined as %s (%s).\n", *name, client.PlayerID())
	time.Sleep(500 * time.Millisecond)

	go func() {
		<-sigCh
		client.Close()
		server.Stop()
		os.Exit(0)
	}()

	model := ui.NewModel(client)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion())
	if _, err := p.Run(); err != nil {
		client.Close()
		server.Stop()
		fmt.Fprintf(os.Stderr, "TUI exited with error: %v\n", err)
		os.Exit(1)
	}

	client.Close()
	server.Stop()
}

// printJoinAddrs lists every IPv4 address other players can dial.
func printJoinAddrs(port int) {
	addrs := []string{net.JoinHostPort("127.0.0.1", strconv.Itoa(port))}
	if ifaces, err := net.InterfaceAddrs(); err == nil {
		for _, a := range ifaces {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() || ipnet.IP.To4() == nil {
				continue
			}
			addrs = append(addrs, net.JoinHostPort(ipnet.IP.String(), strconv.Itoa(port)))
		}
	}
	fmt.Println("Join with: client -addr <one of>")
	for _, a := range addrs {
		fmt.Printf("  %s\n", a)
	}
}

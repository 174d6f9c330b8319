package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amalg/go-gridchase/internal/discovery"
	"github.com/amalg/go-gridchase/internal/network"
	"github.com/amalg/go-gridchase/internal/ui"
	"github.com/amalg/go-gridchase/pkg/logger"
)

func main() {
	addr := flag.String("addr", "", "Server address (e.g., 192.168.1.5:9999)")
	name := flag.String("name", "Player", "Your player name")
	browse := flag.Bool("discover", false, "List arenas announced on the LAN and join the first one")
	discoveryPort := flag.Int("discovery-port", discovery.DefaultPort, "UDP port for LAN discovery")
	flag.Parse()

	logger.Init()
	logger.SetOutput(io.Discard)

	if *addr == "" && *browse {
		fmt.Println("Looking for arenas...")
		arenas, err := discovery.Browse(*discoveryPort, 2*discovery.BroadcastInterval)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Discovery failed: %v\n", err)
			os.Exit(1)
		}
		if len(arenas) == 0 {
			fmt.Fprintln(os.Stderr, "No arenas found.")
			os.Exit(1)
		}
		for _, a := range arenas {
			fmt.Printf("  %-20s %s  %d/%d players  %s  %s search  [%s]\n",
				a.Name, a.GameAddr, a.Players, a.MaxPlayers, a.Layout, a.SearchMode, a.Status)
		}
		*addr = arenas[0].GameAddr
	}

	if *addr == "" {
		fmt.Fprintln(os.Stderr, "Usage: client --addr <host:port> [--name <name>]")
		fmt.Fprintln(os.Stderr, "       client --discover [--name <name>]")
		fmt.Fprintln(os.Stderr, "  Example: client --addr 192.168.1.5:9999 --name Alice")
		os.Exit(1)
	}

	fmt.Printf("Connecting to %s as %s...\n", *addr, *name)

	client, err := network.NewClient(*addr, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	fmt.Printf("Connected! Player ID: %s\n", client.PlayerID())
	fmt.Println("Starting TUI...")
	time.Sleep(500 * time.Millisecond)

	// Start the TUI
	model := ui.NewModel(client)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

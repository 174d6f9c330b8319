package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/amalg/go-gridchase/internal/game"
	"github.com/amalg/go-gridchase/internal/grid"
	"github.com/amalg/go-gridchase/internal/pathfind"
	"github.com/amalg/go-gridchase/pkg/logger"
)

var (
	wallStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	breakableStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0772B"))
	floorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#333344"))
	pathStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#44ffff")).Bold(true)
	endpointStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88")).Bold(true)
)

func main() {
	layoutName := flag.String("layout", game.LayoutReference, "reference, generated, or an ASCII map file")
	width := flag.Int("width", 21, "Generated board width")
	height := flag.Int("height", 15, "Generated board height")
	density := flag.Float64("density", 0.3, "Generated breakable density")
	seed := flag.Int64("seed", 0, "Generated board seed")
	from := flag.String("from", "", "Start tile x,y (default: first player spawn)")
	to := flag.String("to", "", "Destination tile x,y (default: first enemy spawn)")
	mode := flag.String("mode", "fifo", "Search mode: fifo or optimal")
	compare := flag.Bool("compare", false, "Run both search modes and report each")
	maxExpansions := flag.Int("max-expansions", 0, "Expansion budget (0 = unbounded)")
	quiet := flag.Bool("quiet", false, "Print only the result line")
	flag.Parse()

	logger.Init()

	config := game.DefaultConfig()
	config.Layout = *layoutName
	config.Generate = grid.GenerateConfig{
		Width:            *width,
		Height:           *height,
		BreakableDensity: *density,
		Enemies:          config.MaxEnemies,
		Seed:             *seed,
	}

	layout, err := game.LoadBoard(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load layout: %v\n", err)
		os.Exit(1)
	}

	start, err := pointFlag(*from, layout.PlayerSpawns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -from: %v\n", err)
		os.Exit(1)
	}
	dest, err := pointFlag(*to, layout.EnemySpawns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -to: %v\n", err)
		os.Exit(1)
	}

	modes := []pathfind.Mode{}
	if *compare {
		modes = append(modes, pathfind.ModeFIFO, pathfind.ModeOptimal)
	} else {
		m, err := pathfind.ParseMode(*mode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -mode: %v\n", err)
			os.Exit(1)
		}
		modes = append(modes, m)
	}

	var last pathfind.Result
	for _, m := range modes {
		searcher := pathfind.NewSearcher(
			pathfind.WithMode(m),
			pathfind.WithMaxExpansions(*maxExpansions),
		)
		last = searcher.Search(layout.Grid, start, dest)
		fmt.Printf("%s %v -> %v: mode=%s reason=%s length=%d expanded=%d\n",
			layout.Name, start, dest, m, last.Reason, len(last.Path), last.Expanded)
	}

	if !*quiet {
		fmt.Println()
		fmt.Print(renderOverlay(layout.Grid, start, dest, last.Path))
	}
	if !last.Found && last.Reason != pathfind.ReasonAlreadyThere {
		os.Exit(2)
	}
}

// pointFlag parses "x,y", falling back to the first entry of defaults.
func pointFlag(value string, defaults []grid.Point) (grid.Point, error) {
	if value == "" {
		if len(defaults) == 0 {
			return grid.Point{}, fmt.Errorf("no default tile in this layout")
		}
		return defaults[0], nil
	}
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return grid.Point{}, fmt.Errorf("want x,y, got %q", value)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return grid.Point{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return grid.Point{}, fmt.Errorf("y: %w", err)
	}
	return grid.Point{X: x, Y: y}, nil
}

// renderOverlay draws the grid with the path marked: S start, D destination,
// * path tiles.
func renderOverlay(g *grid.Grid, start, dest grid.Point, path pathfind.Path) string {
	onPath := make(map[grid.Point]bool, len(path))
	for _, p := range path {
		onPath[p] = true
	}

	var b strings.Builder
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			p := grid.Point{X: x, Y: y}
			switch {
			case p == start:
				b.WriteString(endpointStyle.Render("S"))
			case p == dest:
				b.WriteString(endpointStyle.Render("D"))
			case onPath[p]:
				b.WriteString(pathStyle.Render("*"))
			default:
				switch g.TileCodeAt(x, y) {
				case grid.Wall:
					b.WriteString(wallStyle.Render(string(grid.GlyphWall)))
				case grid.Breakable:
					b.WriteString(breakableStyle.Render(string(grid.GlyphBreakable)))
				default:
					b.WriteString(floorStyle.Render(string(grid.GlyphFloor)))
				}
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

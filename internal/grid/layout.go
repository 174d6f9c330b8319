package grid

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// Layout is a grid together with the tiles agents (re)spawn on.
type Layout struct {
	Name         string
	Grid         *Grid
	PlayerSpawns []Point
	EnemySpawns  []Point
}

// ASCII map glyphs.
const (
	GlyphFloor       = '.'
	GlyphWall        = '#'
	GlyphBreakable   = '+'
	GlyphPlayerSpawn = 'P'
	GlyphEnemySpawn  = 'E'
)

var referenceRows = []string{
	"################################",
	"#.........#............#.......#",
	"#...#.....#.####.#.#.#.#..#....#",
	"#...#####.#...............#....#",
	"#.......#.#...............#....#",
	"#+#######.######...#...+..#.#..#",
	"#.#......+.........#....###.#..#",
	"#.###########......########.#..#",
	"#.#.........#...#..#......#.#..#",
	"#...........#####.#######.###..#",
	"###.###........................#",
	"#.#.#.#.####.#####.##.###.#....#",
	"#.#.#.#.#..#+....#..#.###.#....#",
	"#.#.#.#.#..#+....#..#.#.#.#....#",
	"#.#.#.####.#.#####..#.###.#....#",
	"#.#.#.+.............+.#.#.#....#",
	"#.#.#.###.....###.###.#.#.#....#",
	"#.#.#.............###.#.#.######",
	"#...#.........#######.#.#......#",
	"#.#.#...+....##.....#........#.#",
	"#.#.#.........+.##..##########.#",
	"#.#.#........##.##..##.###..#..#",
	"#.#.#...................#...#..#",
	"################################",
}

// ReferenceLayout returns the classic 32×24 arena. The game begins with the
// first player on (1,1). The third enemy spawn sits inside a wall tile; the
// search never checks its start tile, so that enemy walks out on its first
// plan.
func ReferenceLayout() *Layout {
	layout, err := ParseLayout("reference", strings.Join(referenceRows, "\n"))
	if err != nil {
		panic(fmt.Sprintf("reference layout: %v", err))
	}
	layout.PlayerSpawns = []Point{{X: 1, Y: 1}, {X: 3, Y: 1}, {X: 1, Y: 3}, {X: 3, Y: 3}}
	layout.EnemySpawns = []Point{
		{X: 30, Y: 22},
		{X: 28, Y: 2},
		{X: 2, Y: 20},
		{X: 15, Y: 12},
		{X: 25, Y: 8},
	}
	return layout
}

// ParseLayout reads an ASCII map. Every line is one row; spawn markers are
// floor tiles. Blank trailing lines are ignored.
func ParseLayout(name, text string) (*Layout, error) {
	layout := &Layout{Name: name}
	var rows [][]TileCode

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" {
			continue
		}
		y := len(rows)
		row := make([]TileCode, 0, len(line))
		for x, ch := range line {
			switch ch {
			case GlyphFloor:
				row = append(row, Floor)
			case GlyphWall:
				row = append(row, Wall)
			case GlyphBreakable:
				row = append(row, Breakable)
			case GlyphPlayerSpawn:
				row = append(row, Floor)
				layout.PlayerSpawns = append(layout.PlayerSpawns, Point{X: x, Y: y})
			case GlyphEnemySpawn:
				row = append(row, Floor)
				layout.EnemySpawns = append(layout.EnemySpawns, Point{X: x, Y: y})
			default:
				return nil, fmt.Errorf("line %d: unknown glyph %q", lineNo, ch)
			}
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan layout: %w", err)
	}

	g, err := FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("layout %q: %w", name, err)
	}
	layout.Grid = g
	return layout, nil
}

// LoadLayout reads an ASCII map from disk.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return ParseLayout(path, string(data))
}

// Format renders the layout back to ASCII, including spawn markers.
func (l *Layout) Format() string {
	marks := make(map[Point]rune, len(l.PlayerSpawns)+len(l.EnemySpawns))
	for _, p := range l.EnemySpawns {
		marks[p] = GlyphEnemySpawn
	}
	for _, p := range l.PlayerSpawns {
		marks[p] = GlyphPlayerSpawn
	}

	var b strings.Builder
	for y := 0; y < l.Grid.Height(); y++ {
		for x := 0; x < l.Grid.Width(); x++ {
			if m, ok := marks[Point{X: x, Y: y}]; ok && !l.Grid.TileCodeAt(x, y).Blocking() {
				b.WriteRune(m)
				continue
			}
			switch l.Grid.TileCodeAt(x, y) {
			case Wall:
				b.WriteRune(GlyphWall)
			case Breakable:
				b.WriteRune(GlyphBreakable)
			default:
				b.WriteRune(GlyphFloor)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// GenerateConfig parameterizes GenerateLayout.
type GenerateConfig struct {
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	BreakableDensity float64 `json:"breakable_density"` // 0.0 to 1.0
	Enemies          int     `json:"enemies"`
	Seed             int64   `json:"seed"`
}

// SpawnCorners returns the four inner corners of a bordered board.
func SpawnCorners(width, height int) []Point {
	return []Point{
		{X: 1, Y: 1},                  // Top-left
		{X: width - 2, Y: 1},          // Top-right
		{X: 1, Y: height - 2},         // Bottom-left
		{X: width - 2, Y: height - 2}, // Bottom-right
	}
}

// GenerateLayout builds a pillar arena.
//
// Layout rules:
//   - Border is all Wall
//   - Wall at every interior position where both X and Y are even
//   - Random Breakable fill at the given density
//   - Player spawn corners (and their adjacent tiles) are kept clear
//   - Enemy spawns are floor tiles at least half the board away from (1,1)
func GenerateLayout(cfg GenerateConfig) *Layout {
	if cfg.Width < 5 {
		cfg.Width = 5
	}
	if cfg.Height < 5 {
		cfg.Height = 5
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	g := New(cfg.Width, cfg.Height)

	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			switch {
			case x == 0 || y == 0 || x == cfg.Width-1 || y == cfg.Height-1:
				g.SetTile(x, y, Wall)
			case x%2 == 0 && y%2 == 0:
				g.SetTile(x, y, Wall)
			}
		}
	}

	spawns := SpawnCorners(cfg.Width, cfg.Height)
	safe := makeSafeSet(spawns)

	for y := 1; y < cfg.Height-1; y++ {
		for x := 1; x < cfg.Width-1; x++ {
			if g.TileCodeAt(x, y) != Floor || safe[Point{X: x, Y: y}] {
				continue
			}
			if rng.Float64() < cfg.BreakableDensity {
				g.SetTile(x, y, Breakable)
			}
		}
	}

	layout := &Layout{
		Name:         fmt.Sprintf("generated-%dx%d-%d", cfg.Width, cfg.Height, cfg.Seed),
		Grid:         g,
		PlayerSpawns: spawns,
	}

	minDist := (cfg.Width + cfg.Height) / 2
	var candidates []Point
	for y := 1; y < cfg.Height-1; y++ {
		for x := 1; x < cfg.Width-1; x++ {
			p := Point{X: x, Y: y}
			if g.IsTraversable(x, y) && !safe[p] && p.Manhattan(spawns[0]) >= minDist {
				candidates = append(candidates, p)
			}
		}
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if n := max(cfg.Enemies, 0); n < len(candidates) {
		candidates = candidates[:n]
	}
	layout.EnemySpawns = candidates
	return layout
}

// makeSafeSet returns the spawn corners plus their orthogonal neighbours.
func makeSafeSet(spawns []Point) map[Point]bool {
	safe := make(map[Point]bool)
	for _, sp := range spawns {
		safe[sp] = true
		for _, d := range Neighbors {
			safe[sp.Add(d)] = true
		}
	}
	return safe
}

package game

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amalg/go-gridchase/internal/grid"
	"github.com/amalg/go-gridchase/internal/pathfind"
	"github.com/amalg/go-gridchase/internal/steer"
	"github.com/amalg/go-gridchase/pkg/logger"
)

const stepDT = 0.05

func TestMain(m *testing.M) {
	logger.Init()
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// newTestEngine builds an engine on an ASCII layout written to a temp file.
func newTestEngine(t *testing.T, rows []string, tweak func(*Config)) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arena.txt")
	if err := os.WriteFile(path, []byte(strings.Join(rows, "\n")), 0o644); err != nil {
		t.Fatalf("write layout: %v", err)
	}
	config := DefaultConfig()
	config.Layout = path
	if tweak != nil {
		tweak(&config)
	}
	engine, err := NewEngine(config)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func runningEngine(t *testing.T, rows []string, tweak func(*Config)) *Engine {
	t.Helper()
	engine := newTestEngine(t, rows, tweak)
	if err := engine.AddPlayer("p1", "TestPlayer"); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if err := engine.StartGame(); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	return engine
}

func steps(e *Engine, n int) {
	for i := 0; i < n; i++ {
		e.Step(stepDT)
	}
}

func TestLoadBoard(t *testing.T) {
	config := DefaultConfig()
	layout, err := LoadBoard(config)
	if err != nil {
		t.Fatalf("reference layout: %v", err)
	}
	if layout.Grid.Width() != 32 || layout.Grid.Height() != 24 {
		t.Errorf("expected 32x24 reference board, got %dx%d", layout.Grid.Width(), layout.Grid.Height())
	}

	config.Layout = LayoutGenerated
	layout, err = LoadBoard(config)
	if err != nil {
		t.Fatalf("generated layout: %v", err)
	}
	if layout.Grid.Width() != config.Generate.Width {
		t.Errorf("expected generated width %d, got %d", config.Generate.Width, layout.Grid.Width())
	}

	path := filepath.Join(t.TempDir(), "nospawn.txt")
	os.WriteFile(path, []byte("###\n#.#\n###\n"), 0o644)
	config.Layout = path
	if _, err := LoadBoard(config); !errors.Is(err, ErrNoSpawns) {
		t.Errorf("expected ErrNoSpawns, got %v", err)
	}

	config.Layout = filepath.Join(t.TempDir(), "missing.txt")
	if _, err := LoadBoard(config); err == nil {
		t.Error("missing layout file should fail")
	}
}

func TestNewEngineReference(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	state := engine.GetStateCopy()
	if len(state.Enemies) != 5 {
		t.Fatalf("expected 5 enemies, got %d", len(state.Enemies))
	}
	if state.Enemies[0].Tile != (grid.Point{X: 30, Y: 22}) {
		t.Errorf("first enemy should spawn at (30,22), got %v", state.Enemies[0].Tile)
	}
	if state.Status != StatusLobby {
		t.Errorf("expected lobby, got %v", state.Status)
	}

	config := DefaultConfig()
	config.MaxEnemies = 2
	engine, _ = NewEngine(config)
	if n := len(engine.GetStateCopy().Enemies); n != 2 {
		t.Errorf("MaxEnemies should cap enemies at 2, got %d", n)
	}

	config.TickRate = 0
	if _, err := NewEngine(config); err == nil {
		t.Error("invalid config should be rejected")
	}
}

func TestAddPlayer(t *testing.T) {
	engine, _ := NewEngine(DefaultConfig())

	// Add players
	if err := engine.AddPlayer("p1", "Alice"); err != nil {
		t.Fatalf("failed to add player 1: %v", err)
	}
	if err := engine.AddPlayer("p2", "Bob"); err != nil {
		t.Fatalf("failed to add player 2: %v", err)
	}

	state := engine.GetStateCopy()
	if len(state.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(state.Players))
	}
	if state.Players["p1"].Tile != (grid.Point{X: 1, Y: 1}) || state.Players["p2"].Tile != (grid.Point{X: 3, Y: 1}) {
		t.Errorf("unexpected spawns %v %v", state.Players["p1"].Tile, state.Players["p2"].Tile)
	}

	// Duplicate should fail
	if err := engine.AddPlayer("p1", "Alice2"); !errors.Is(err, ErrPlayerExists) {
		t.Errorf("expected ErrPlayerExists, got %v", err)
	}

	// Add up to max
	engine.AddPlayer("p3", "Charlie")
	engine.AddPlayer("p4", "Diana")
	if err := engine.AddPlayer("p5", "Eve"); !errors.Is(err, ErrGameFull) {
		t.Errorf("expected ErrGameFull, got %v", err)
	}

	engine.RemovePlayer("p4")
	engine.StartGame()
	if err := engine.AddPlayer("p6", "Frank"); !errors.Is(err, ErrGameRunning) {
		t.Errorf("expected ErrGameRunning, got %v", err)
	}
}

func TestRejoinTakesFreedSlot(t *testing.T) {
	engine, _ := NewEngine(DefaultConfig())
	engine.AddPlayer("a", "Alice")
	engine.AddPlayer("b", "Bob")
	engine.RemovePlayer("a")
	if err := engine.AddPlayer("c", "Carol"); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}

	state := engine.GetStateCopy()
	b, c := state.Players["b"], state.Players["c"]
	if b.Tile == c.Tile {
		t.Errorf("b and c share spawn %v", b.Tile)
	}
	if b.Color == c.Color {
		t.Errorf("b and c share color %d", b.Color)
	}
	if c.Tile != (grid.Point{X: 1, Y: 1}) || c.Color != 0 {
		t.Errorf("c should reuse the freed first slot, got tile %v color %d", c.Tile, c.Color)
	}

	if err := engine.AddPlayer("d", "Dave"); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if d := engine.GetStateCopy().Players["d"]; d.Color != 2 {
		t.Errorf("d should take the next unused slot, got color %d", d.Color)
	}
}

func TestStartGameNeedsPlayers(t *testing.T) {
	engine, _ := NewEngine(DefaultConfig())
	if err := engine.StartGame(); !errors.Is(err, ErrNoPlayers) {
		t.Errorf("expected ErrNoPlayers, got %v", err)
	}
}

func TestLobbyDoesNotSimulate(t *testing.T) {
	engine := newTestEngine(t, []string{"#####", "#P..#", "#####"}, nil)
	engine.AddPlayer("p1", "TestPlayer")
	engine.EnqueueAction(Action{PlayerID: "p1", Type: ActionMove, Dir: DirRight})
	steps(engine, 10)

	state := engine.GetStateCopy()
	if state.Tick != 0 || state.Players["p1"].Tile != (grid.Point{X: 1, Y: 1}) {
		t.Errorf("lobby should not advance, got tick %d tile %v", state.Tick, state.Players["p1"].Tile)
	}
}

func TestMoveToAction(t *testing.T) {
	engine := runningEngine(t, []string{
		"#######",
		"#P....#",
		"#.###.#",
		"#.....#",
		"#######",
	}, nil)

	target := grid.Point{X: 5, Y: 3}
	engine.EnqueueAction(Action{PlayerID: "p1", Type: ActionMoveTo, Target: target})
	engine.Step(stepDT)

	state := engine.GetStateCopy()
	p := state.Players["p1"]
	if !p.Moving || p.Destination == nil || *p.Destination != target {
		t.Fatalf("expected player heading to %v, got moving=%v dest=%v", target, p.Moving, p.Destination)
	}
	if len(p.Path) != 6 {
		t.Errorf("expected 6 remaining waypoints after the first step, got %v", p.Path)
	}

	// 6 tiles at 220 px/s is under a second.
	steps(engine, 40)
	p = engine.GetStateCopy().Players["p1"]
	if p.Tile != target || p.Moving {
		t.Errorf("expected to rest on %v, got %v moving=%v", target, p.Tile, p.Moving)
	}
	if p.Pos != steer.TileCenter(target, engine.Config.TileSize) {
		t.Errorf("expected to rest on the tile centre, got %+v", p.Pos)
	}
}

func TestNudge(t *testing.T) {
	engine := runningEngine(t, []string{
		"#####",
		"#P..#",
		"#####",
	}, nil)

	// Up is a wall: the plan is empty and nothing moves.
	engine.EnqueueAction(Action{PlayerID: "p1", Type: ActionMove, Dir: DirUp})
	steps(engine, 5)
	if tile := engine.GetStateCopy().Players["p1"].Tile; tile != (grid.Point{X: 1, Y: 1}) {
		t.Fatalf("move up from (1,1) should be blocked, got %v", tile)
	}

	engine.EnqueueAction(Action{PlayerID: "p1", Type: ActionMove, Dir: DirRight})
	steps(engine, 5)
	if tile := engine.GetStateCopy().Players["p1"].Tile; tile != (grid.Point{X: 2, Y: 1}) {
		t.Errorf("move right from (1,1) should reach (2,1), got %v", tile)
	}
}

func TestShootBreaksTile(t *testing.T) {
	engine := runningEngine(t, []string{
		"#####",
		"#P.+#",
		"#####",
	}, nil)

	engine.EnqueueAction(Action{PlayerID: "p1", Type: ActionShoot, Dir: DirRight})
	engine.Step(stepDT)
	if n := len(engine.GetStateCopy().Bullets); n != 1 {
		t.Fatalf("expected 1 bullet in flight, got %d", n)
	}

	engine.Step(stepDT)
	state := engine.GetStateCopy()
	if state.Board[1][3] != grid.Floor {
		t.Errorf("breakable at (3,1) should be broken, got %d", state.Board[1][3])
	}
	if len(state.Bullets) != 0 {
		t.Errorf("bullet should be spent, got %d", len(state.Bullets))
	}
	if state.Players["p1"].Score != 1 {
		t.Errorf("breaking a tile should score 1, got %d", state.Players["p1"].Score)
	}

	// The next shot flies through the gap and dies on the wall behind it.
	engine.EnqueueAction(Action{PlayerID: "p1", Type: ActionShoot, Dir: DirRight})
	steps(engine, 5)
	state = engine.GetStateCopy()
	if len(state.Bullets) != 0 || state.Players["p1"].Score != 1 {
		t.Errorf("wall hit should only remove the bullet, got %d bullets score %d", len(state.Bullets), state.Players["p1"].Score)
	}
}

func TestShootAtOwnTileIsIgnored(t *testing.T) {
	engine := runningEngine(t, []string{"#####", "#P..#", "#####"}, nil)
	engine.EnqueueAction(Action{PlayerID: "p1", Type: ActionShoot, HasTarget: true, Target: grid.Point{X: 1, Y: 1}})
	engine.Step(stepDT)
	if n := len(engine.GetStateCopy().Bullets); n != 0 {
		t.Errorf("zero-length aim should not fire, got %d bullets", n)
	}
}

func TestShootKillsEnemyAndRespawns(t *testing.T) {
	engine := runningEngine(t, []string{
		"#########",
		"#P.....E#",
		"#########",
	}, nil)

	engine.EnqueueAction(Action{PlayerID: "p1", Type: ActionShoot, HasTarget: true, Target: grid.Point{X: 7, Y: 1}})
	killed := false
	for i := 0; i < 10 && !killed; i++ {
		engine.Step(stepDT)
		killed = !engine.GetStateCopy().Enemies[0].Alive
	}
	if !killed {
		t.Fatal("bullet should have hit the approaching enemy")
	}
	state := engine.GetStateCopy()
	if state.Players["p1"].Score != 1 {
		t.Errorf("kill should score 1, got %d", state.Players["p1"].Score)
	}
	if got := state.Enemies[0].RespawnIn; got <= 0 || got > 3 {
		t.Errorf("respawn timer should be running, got %v", got)
	}

	revived := false
	for i := 0; i < 70 && !revived; i++ {
		engine.Step(stepDT)
		revived = engine.GetStateCopy().Enemies[0].Alive
	}
	if !revived {
		t.Fatal("enemy should revive after the respawn delay")
	}
	en := engine.GetStateCopy().Enemies[0]
	if en.Tile != (grid.Point{X: 7, Y: 1}) || en.RespawnIn != 0 {
		t.Errorf("revived enemy should be back on its spawn, got %v (timer %v)", en.Tile, en.RespawnIn)
	}
}

func TestEnemyContactRespawnsPlayer(t *testing.T) {
	engine := runningEngine(t, []string{
		"#######",
		"#P...E#",
		"#######",
	}, nil)

	// Walk the player toward the enemy so the respawn is observable.
	engine.EnqueueAction(Action{PlayerID: "p1", Type: ActionMoveTo, Target: grid.Point{X: 5, Y: 1}})
	caught := false
	for i := 0; i < 20 && !caught; i++ {
		engine.Step(stepDT)
		caught = engine.GetStateCopy().Players["p1"].Deaths > 0
	}
	if !caught {
		t.Fatal("enemy should have caught the player")
	}

	state := engine.GetStateCopy()
	p := state.Players["p1"]
	if p.Deaths != 1 {
		t.Errorf("one contact should count one death, got %d", p.Deaths)
	}
	if p.Tile != (grid.Point{X: 1, Y: 1}) || p.Moving {
		t.Errorf("player should be back on spawn and stopped, got %v moving=%v", p.Tile, p.Moving)
	}
	en := state.Enemies[0]
	if en.Pos != steer.TileCenter(grid.Point{X: 5, Y: 1}, engine.Config.TileSize) || !en.Alive {
		t.Errorf("enemy should be reset onto its spawn, got %+v alive=%v", en.Pos, en.Alive)
	}
}

func TestBrokenTileOpensEnemyRoute(t *testing.T) {
	engine := runningEngine(t, []string{
		"#######",
		"#P.+.E#",
		"#######",
	}, nil)

	engine.Step(stepDT)
	if en := engine.GetStateCopy().Enemies[0]; len(en.Path) != 0 {
		t.Fatalf("enemy should have no route while the tile stands, got %v", en.Path)
	}

	engine.EnqueueAction(Action{PlayerID: "p1", Type: ActionShoot, Dir: DirRight})
	steps(engine, 12)

	state := engine.GetStateCopy()
	if state.Board[1][3] != grid.Floor {
		t.Fatal("shot should have broken (3,1)")
	}
	spawnX := steer.TileCenter(grid.Point{X: 5, Y: 1}, engine.Config.TileSize).X
	if x := state.Enemies[0].Pos.X; x >= spawnX {
		t.Errorf("enemy should advance through the gap, still at x=%v", x)
	}
	if state.Players["p1"].Deaths != 0 {
		t.Errorf("enemy should not have reached the player yet")
	}
}

func TestNearestPlayerTile(t *testing.T) {
	engine := newTestEngine(t, []string{
		"##########",
		"#P......E#",
		"#......P.#",
		"##########",
	}, nil)
	engine.AddPlayer("far", "Far")
	engine.AddPlayer("near", "Near")

	tile, ok := engine.nearestPlayerTile(engine.enemies[0])
	if !ok || tile != (grid.Point{X: 7, Y: 2}) {
		t.Errorf("expected nearest player tile (7,2), got %v %v", tile, ok)
	}

	engine.RemovePlayer("far")
	engine.RemovePlayer("near")
	if _, ok := engine.nearestPlayerTile(engine.enemies[0]); ok {
		t.Error("no players should mean no target")
	}
}

func TestScoreLimit(t *testing.T) {
	engine := runningEngine(t, []string{
		"#####",
		"#P.+#",
		"#####",
	}, func(c *Config) { c.ScoreLimit = 1 })

	engine.EnqueueAction(Action{PlayerID: "p1", Type: ActionShoot, Dir: DirRight})
	steps(engine, 3)

	state := engine.GetStateCopy()
	if state.Status != StatusOver || state.Winner != "p1" {
		t.Errorf("expected p1 to win at the score limit, got %v %q", state.Status, state.Winner)
	}
	tick := state.Tick
	steps(engine, 3)
	if engine.GetStateCopy().Tick != tick {
		t.Error("a finished game should stop simulating")
	}
	if err := engine.AddPlayer("p2", "Late"); !errors.Is(err, ErrGameRunning) {
		t.Errorf("joining a finished game: expected ErrGameRunning, got %v", err)
	}
}

func TestStepClampsDT(t *testing.T) {
	engine := runningEngine(t, []string{"########", "#P.....#", "########"}, nil)
	engine.EnqueueAction(Action{PlayerID: "p1", Type: ActionMoveTo, Target: grid.Point{X: 6, Y: 1}})
	start := engine.GetStateCopy().Players["p1"].Pos

	engine.Step(10)
	moved := engine.GetStateCopy().Players["p1"].Pos.X - start.X
	want := engine.Config.PlayerSpeed * engine.Config.MaxDT.Seconds()
	if moved <= 0 || moved > want+1e-9 {
		t.Errorf("a long step should be capped at %v px, moved %v", want, moved)
	}
}

func TestStateCopyIsIndependent(t *testing.T) {
	engine := runningEngine(t, []string{"#####", "#P.+#", "#####"}, nil)

	state := engine.GetStateCopy()
	state.Board[1][3] = grid.Floor
	state.Players["p1"].Score = 99

	again := engine.GetStateCopy()
	if again.Board[1][3] != grid.Breakable || again.Players["p1"].Score != 0 {
		t.Error("mutating a state copy must not affect the engine")
	}

	snap := engine.GridSnapshot()
	snap.BreakTile(3, 1)
	if engine.GetStateCopy().Board[1][3] != grid.Breakable {
		t.Error("mutating a grid snapshot must not affect the engine")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.json")
	os.WriteFile(path, []byte(`{"search_mode":"optimal","max_enemies":2,"layout":"generated"}`), 0o644)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.SearchMode != pathfind.ModeOptimal || config.MaxEnemies != 2 || config.Layout != LayoutGenerated {
		t.Errorf("overrides not applied: %+v", config)
	}
	if config.TileSize != 32 || config.PlayerSpeed != 220 {
		t.Errorf("defaults should survive the overlay: %+v", config)
	}

	os.WriteFile(path, []byte(`{"repath_interval":"100ms","enemy_respawn_delay":"1.5s","max_dt":"20ms"}`), 0o644)
	config, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig durations: %v", err)
	}
	if config.RepathInterval.Duration != 100*time.Millisecond ||
		config.EnemyRespawnDelay.Duration != 1500*time.Millisecond ||
		config.MaxDT.Duration != 20*time.Millisecond {
		t.Errorf("durations not parsed: %+v", config)
	}

	invalid := []struct {
		name string
		json string
	}{
		{"unknown search mode", `{"search_mode":"sideways"}`},
		{"negative tick rate", `{"tick_rate":-1}`},
		{"numeric duration", `{"repath_interval":0.25}`},
		{"bad duration", `{"max_dt":"soon"}`},
		{"negative generated enemies", `{"layout":"generated","generate":{"width":11,"height":9,"enemies":-1}}`},
		{"density below zero", `{"generate":{"breakable_density":-0.1}}`},
		{"density above one", `{"generate":{"breakable_density":1.5}}`},
		{"zero respawn delay", `{"enemy_respawn_delay":"0s"}`},
		{"negative respawn delay", `{"enemy_respawn_delay":"-1s"}`},
		{"negative repath interval", `{"repath_interval":"-250ms"}`},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			os.WriteFile(path, []byte(tc.json), 0o644)
			if _, err := LoadConfig(path); err == nil {
				t.Errorf("%s should be rejected", tc.json)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestConfigDurationsRoundTrip(t *testing.T) {
	data, err := json.Marshal(DefaultConfig())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"repath_interval":"250ms"`) {
		t.Errorf("durations should encode as strings: %s", data)
	}
	var back Config
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.RepathInterval != DefaultConfig().RepathInterval || back.EnemyRespawnDelay != DefaultConfig().EnemyRespawnDelay {
		t.Errorf("durations changed in transit: %+v", back)
	}
}

func TestRunBroadcastsAndStops(t *testing.T) {
	engine := runningEngine(t, []string{"#####", "#P..#", "#####"}, func(c *Config) { c.TickRate = 100 })

	states := make(chan GameState, 1)
	engine.OnTick(func(s GameState) {
		select {
		case states <- s:
		default:
		}
	})
	go engine.Run()
	defer engine.Stop()

	select {
	case s := <-states:
		if s.Width != 5 || s.Height != 3 {
			t.Errorf("unexpected broadcast dims %dx%d", s.Width, s.Height)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick broadcast within 2s")
	}

	engine.Stop()
	engine.Stop() // second Stop must not panic
}

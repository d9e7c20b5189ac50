package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for NPC behaviour scripts.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every script in scriptsDir.
// An empty or missing directory yields an engine with no scripts; callers
// then get the built-in behaviour.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if scriptsDir != "" {
		if err := e.loadDir(scriptsDir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a chunk of Lua source in the engine's VM.
func (e *Engine) LoadString(src string) error {
	return e.vm.DoString(src)
}

func (e *Engine) Close() {
	e.vm.Close()
}

// WanderContext is the input of one wander decision.
type WanderContext struct {
	X, Y           int
	SpawnX, SpawnY int
	Radius         int
	Roll           int // uniform in [0, WanderRollRange)
}

// WanderRollRange bounds WanderContext.Roll. Rolls 0..7 pick a direction,
// anything higher means stand still this tick.
const WanderRollRange = 16

var wanderDX = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
var wanderDY = [8]int{-1, -1, 0, 1, 1, 1, 0, -1}

// HasWander reports whether a script defines npc_wander.
func (e *Engine) HasWander() bool {
	return e != nil && e.vm.GetGlobal("npc_wander") != lua.LNil
}

// WanderStep asks npc_wander(x, y, sx, sy, radius, roll) for the next step
// and clamps the answer to one tile. Without the script, or on a script
// error, the built-in rule is used.
func (e *Engine) WanderStep(ctx WanderContext) (dx, dy int) {
	if !e.HasWander() {
		return DefaultWander(ctx)
	}
	fn := e.vm.GetGlobal("npc_wander")
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, lua.LNumber(ctx.X), lua.LNumber(ctx.Y), lua.LNumber(ctx.SpawnX), lua.LNumber(ctx.SpawnY),
		lua.LNumber(ctx.Radius), lua.LNumber(ctx.Roll)); err != nil {
		e.log.Error("lua npc_wander error", zap.Error(err))
		return DefaultWander(ctx)
	}
	rx := e.vm.Get(-2)
	ry := e.vm.Get(-1)
	e.vm.Pop(2)
	return clampStep(int(lua.LVAsNumber(rx))), clampStep(int(lua.LVAsNumber(ry)))
}

// DefaultWander steps in the rolled direction, or back toward the spawn
// point when the step would leave the wander radius.
func DefaultWander(ctx WanderContext) (dx, dy int) {
	if ctx.Radius <= 0 || ctx.Roll < 0 || ctx.Roll >= len(wanderDX) {
		return 0, 0
	}
	dx, dy = wanderDX[ctx.Roll], wanderDY[ctx.Roll]
	nx, ny := ctx.X+dx, ctx.Y+dy
	if abs(nx-ctx.SpawnX) > ctx.Radius || abs(ny-ctx.SpawnY) > ctx.Radius {
		return sign(ctx.SpawnX - ctx.X), sign(ctx.SpawnY - ctx.Y)
	}
	return dx, dy
}

func clampStep(v int) int {
	return sign(v)
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

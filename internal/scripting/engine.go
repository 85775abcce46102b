// Package scripting exposes the reference registry to Lua scripts.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/factory"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Templates is the base template store scripts may read and rename.
type Templates interface {
	Template(baseID uint32) (entity.Fields, tag.Tag, bool)
	Name(baseID uint32) (string, bool)
	SetName(baseID uint32, name string) bool
}

// Engine wraps a single gopher-lua VM.
// Single-goroutine access only (tick loop).
type Engine struct {
	vm        *lua.LState
	reg       *factory.Registry
	templates Templates
	log       *zap.Logger
}

// NewEngine creates a Lua engine bound to reg and loads every script in
// scriptsDir. templates may be nil.
func NewEngine(scriptsDir string, reg *factory.Registry, templates Templates, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, reg: reg, templates: templates, log: log.With(zap.String("component", "scripting"))}
	e.registerConstants()
	e.registerAPI()

	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory, in name order.
func (e *Engine) loadDir(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
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

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// Call invokes the global Lua function name if it is defined. Missing hooks
// are not an error.
func (e *Engine) Call(name string, args ...lua.LValue) error {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return nil
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return fmt.Errorf("lua %s: %w", name, err)
	}
	return nil
}

// OnTick runs the on_tick(ms) hook.
func (e *Engine) OnTick(ms int64) error {
	return e.Call("on_tick", lua.LNumber(ms))
}

// OnCreate runs the on_create(id, type) hook.
func (e *Engine) OnCreate(id uint64, t tag.Tag) error {
	return e.Call("on_create", lua.LNumber(id), lua.LNumber(t.Leaf()))
}

// OnDestroy runs the on_destroy(id, type) hook.
func (e *Engine) OnDestroy(id uint64, t tag.Tag) error {
	return e.Call("on_destroy", lua.LNumber(id), lua.LNumber(t.Leaf()))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}

package system

import (
	"time"

	"github.com/l1jgo/gamefactory/internal/core/event"
	coresys "github.com/l1jgo/gamefactory/internal/core/system"
	"github.com/l1jgo/gamefactory/internal/scripting"
)

// ScriptSystem drives the Lua hooks. Lifecycle hooks run as events are
// delivered; on_tick runs once per tick. Phase 2 (Update).
type ScriptSystem struct {
	engine *scripting.Engine
}

func NewScriptSystem(engine *scripting.Engine, bus *event.Bus) *ScriptSystem {
	event.Subscribe(bus, func(ev event.InstanceCreated) {
		engine.OnCreate(uint64(ev.ID), ev.Type)
	})
	event.Subscribe(bus, func(ev event.InstanceDestroyed) {
		engine.OnDestroy(uint64(ev.ID), ev.Type)
	})
	return &ScriptSystem{engine: engine}
}

func (s *ScriptSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ScriptSystem) Update(dt time.Duration) {
	s.engine.OnTick(dt.Milliseconds())
}

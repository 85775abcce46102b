package scripting

import (
	"strings"

	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/factory"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Identities travel as Lua numbers; values above 2^53 lose precision.

func (e *Engine) registerConstants() {
	for _, c := range []struct {
		name string
		t    tag.Tag
	}{
		{"ALL_OBJECTS", tag.AllObjects},
		{"ALL_CONTAINERS", tag.AllContainers},
		{"ALL_ACTORS", tag.AllActors},
		{"ALL_WINDOWS", tag.AllWindows},
	} {
		e.vm.SetGlobal(c.name, lua.LNumber(c.t))
	}
	for _, k := range tag.Concrete {
		e.vm.SetGlobal("ID_"+strings.ToUpper(k.String()), lua.LNumber(k.Leaf()))
	}
	e.vm.SetGlobal("ID_REFERENCE", lua.LNumber(tag.Reference))
}

func (e *Engine) registerAPI() {
	api := map[string]lua.LGFunction{
		"GetType":         e.luaGetType,
		"GetCount":        e.luaGetCount,
		"GetList":         e.luaGetList,
		"IsDeleted":       e.luaIsDeleted,
		"CreateObject":    e.luaCreateObject,
		"DestroyObject":   e.luaDestroyObject,
		"GetBaseName":     e.luaGetBaseName,
		"SetBaseName":     e.luaSetBaseName,
		"GetPos":          e.luaGetPos,
		"SetPos":          e.luaSetPos,
		"LookupRefID":     e.luaLookupRefID,
		"LookupNetworkID": e.luaLookupNetworkID,
		"Log":             e.luaLog,
	}
	for name, fn := range api {
		e.vm.SetGlobal(name, e.vm.NewFunction(fn))
	}
}

func checkID(L *lua.LState, n int) ident.Identity {
	return ident.Identity(L.CheckNumber(n))
}

// GetType(id) returns the most-derived ID_* bit, or 0.
func (e *Engine) luaGetType(L *lua.LState) int {
	L.Push(lua.LNumber(e.reg.GetType(checkID(L, 1)).Leaf()))
	return 1
}

// GetCount(mask) counts live references whose type intersects mask.
func (e *Engine) luaGetCount(L *lua.LState) int {
	L.Push(lua.LNumber(e.reg.GetObjectCount(tag.Tag(L.CheckNumber(1)))))
	return 1
}

// GetList(mask) returns the identities of matching references in creation order.
func (e *Engine) luaGetList(L *lua.LState) int {
	ids := e.reg.GetIDObjectTypes(tag.Tag(L.CheckNumber(1)))
	t := L.CreateTable(len(ids), 0)
	for _, id := range ids {
		t.Append(lua.LNumber(id))
	}
	L.Push(t)
	return 1
}

func (e *Engine) luaIsDeleted(L *lua.LState) int {
	L.Push(lua.LBool(e.reg.IsDeleted(checkID(L, 1))))
	return 1
}

// CreateObject(base[, x, y, z]) creates an object of the template's kind and
// marks it changed so peers are told. Returns the new identity, or 0.
func (e *Engine) luaCreateObject(L *lua.LState) int {
	base := uint32(L.CheckNumber(1))
	t := tag.KindObject
	if e.templates != nil {
		if _, kind, ok := e.templates.Template(base); ok && kind.IsConcrete() {
			t = kind
		}
	}
	d := factory.Descriptor{BaseID: base}
	if L.GetTop() >= 4 {
		d.Fields.Pos = entity.Vector{
			X: float32(L.CheckNumber(2)),
			Y: float32(L.CheckNumber(3)),
			Z: float32(L.CheckNumber(4)),
		}
		d.Fields.HasPos = true
	}

	e.reg.SetChangeFlag(true)
	id, err := e.reg.CreateLocalInstance(t, d)
	if err != nil {
		e.reg.SetChangeFlag(false)
		e.log.Warn("script create failed", zap.Uint32("base", base), zap.Error(err))
		L.Push(lua.LNumber(0))
		return 1
	}
	L.Push(lua.LNumber(id))
	return 1
}

func (e *Engine) luaDestroyObject(L *lua.LState) int {
	L.Push(lua.LBool(e.reg.DestroyInstance(checkID(L, 1)) == nil))
	return 1
}

func (e *Engine) baseOf(id ident.Identity) (uint32, bool) {
	res := factory.GetObject[entity.Reference](e.reg, id)
	if !res.OK() {
		return 0, false
	}
	h := res.Value()
	defer h.Release()
	return h.Get().BaseID(), true
}

// GetBaseName(id) returns the name of the reference's base template.
func (e *Engine) luaGetBaseName(L *lua.LState) int {
	base, ok := e.baseOf(checkID(L, 1))
	name := ""
	if ok && e.templates != nil {
		name, _ = e.templates.Name(base)
	}
	L.Push(lua.LString(name))
	return 1
}

// SetBaseName(id, name) renames the reference's base template and the
// reference itself.
func (e *Engine) luaSetBaseName(L *lua.LState) int {
	id := checkID(L, 1)
	name := L.CheckString(2)
	base, ok := e.baseOf(id)
	if !ok || e.templates == nil || !e.templates.SetName(base, name) {
		L.Push(lua.LFalse)
		return 1
	}
	factory.OperateBool(e.reg, id, func(h *factory.Handle[entity.Object]) {
		h.Get().SetName(name)
	})
	L.Push(lua.LTrue)
	return 1
}

// GetPos(id) returns x, y, z; zeros when id is not an object.
func (e *Engine) luaGetPos(L *lua.LState) int {
	var pos entity.Vector
	factory.OperateBool(e.reg, checkID(L, 1), func(h *factory.Handle[entity.Object]) {
		pos = h.Get().Pos()
	})
	L.Push(lua.LNumber(pos.X))
	L.Push(lua.LNumber(pos.Y))
	L.Push(lua.LNumber(pos.Z))
	return 3
}

func (e *Engine) luaSetPos(L *lua.LState) int {
	v := entity.Vector{
		X: float32(L.CheckNumber(2)),
		Y: float32(L.CheckNumber(3)),
		Z: float32(L.CheckNumber(4)),
	}
	ok := factory.OperateBool(e.reg, checkID(L, 1), func(h *factory.Handle[entity.Object]) {
		h.Get().SetPos(v)
	})
	L.Push(lua.LBool(ok))
	return 1
}

// LookupRefID(id) returns the slot of a live reference, or 0.
func (e *Engine) luaLookupRefID(L *lua.LState) int {
	L.Push(lua.LNumber(e.reg.LookupRefID(checkID(L, 1))))
	return 1
}

// LookupNetworkID(slot) returns the identity holding slot, or 0.
func (e *Engine) luaLookupNetworkID(L *lua.LState) int {
	L.Push(lua.LNumber(e.reg.LookupNetworkID(ident.SlotID(L.CheckNumber(1)))))
	return 1
}

// Log(msg) writes an info line.
func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info(L.CheckString(1))
	return 0
}

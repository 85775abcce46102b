package entity

import (
	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
)

// Fields is the payload a peer announces alongside a new reference. Objects
// take Name and Pos; windows take Name as their label.
type Fields struct {
	Name   string
	Pos    Vector
	HasPos bool
}

// Apply copies announced fields onto inst.
func Apply(inst Instance, f Fields) {
	if o := As[Object](inst); o != nil {
		if f.Name != "" {
			o.SetName(f.Name)
		}
		if f.HasPos {
			o.SetPos(f.Pos)
		}
		return
	}
	if w := As[Window](inst); w != nil && f.Name != "" {
		w.SetLabel(f.Name)
	}
}

// Summary is a flat copy of a reference for mirrors and scripts.
type Summary struct {
	ID     ident.Identity
	Slot   ident.SlotID
	BaseID uint32
	Type   tag.Tag
	Name   string
	Pos    Vector
}

// Summarize reads the mirrored fields of inst under its payload lock.
func Summarize(inst Instance) Summary {
	r := inst.Base()
	s := Summary{ID: r.ID(), Slot: r.Slot(), BaseID: r.BaseID(), Type: r.Type()}
	if o := As[Object](inst); o != nil {
		s.Name = o.Name()
		s.Pos = o.Pos()
	} else if w := As[Window](inst); w != nil {
		s.Name = w.Label()
	}
	return s
}

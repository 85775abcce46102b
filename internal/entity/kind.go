package entity

import (
	"fmt"

	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
)

// Kind is the closed set of types a handle can be drawn for.
type Kind interface {
	Reference | Object | Item | Container | Actor | Player |
		Window | Button | Text | Edit | RadioButton
}

// MaskOf returns the tag an instance must satisfy to be viewed as T.
func MaskOf[T Kind]() tag.Tag {
	switch any((*T)(nil)).(type) {
	case *Reference:
		return tag.Reference
	case *Object:
		return tag.KindObject
	case *Item:
		return tag.KindItem
	case *Container:
		return tag.KindContainer
	case *Actor:
		return tag.KindActor
	case *Player:
		return tag.KindPlayer
	case *Window:
		return tag.KindWindow
	case *Button:
		return tag.KindButton
	case *Text:
		return tag.KindText
	case *Edit:
		return tag.KindEdit
	case *RadioButton:
		return tag.KindRadioButton
	}
	return tag.None
}

// Validate reports whether t satisfies the tag required by T.
func Validate[T Kind](t tag.Tag) bool {
	return t.Satisfies(MaskOf[T]())
}

// As returns inst viewed as T, or nil when the instance's tag does not
// satisfy T. The tag is checked first; the view is the embedded part.
func As[T Kind](inst Instance) *T {
	if inst == nil || !Validate[T](inst.Base().Type()) {
		return nil
	}
	var view any
	switch any((*T)(nil)).(type) {
	case *Reference:
		view = inst.Base()
	case *Object:
		if v, ok := inst.(objectView); ok {
			view = v.asObject()
		}
	case *Item:
		if v, ok := inst.(itemView); ok {
			view = v.asItem()
		}
	case *Container:
		if v, ok := inst.(containerView); ok {
			view = v.asContainer()
		}
	case *Actor:
		if v, ok := inst.(actorView); ok {
			view = v.asActor()
		}
	case *Player:
		if v, ok := inst.(playerView); ok {
			view = v.asPlayer()
		}
	case *Window:
		if v, ok := inst.(windowView); ok {
			view = v.asWindow()
		}
	case *Button:
		if v, ok := inst.(buttonView); ok {
			view = v.asButton()
		}
	case *Text:
		if v, ok := inst.(textView); ok {
			view = v.asText()
		}
	case *Edit:
		if v, ok := inst.(editView); ok {
			view = v.asEdit()
		}
	case *RadioButton:
		if v, ok := inst.(radioButtonView); ok {
			view = v.asRadioButton()
		}
	}
	t, _ := view.(*T)
	return t
}

// Each kind exposes its embedded part through an unexported accessor, which
// embedding promotes to every descendant.
type (
	objectView      interface{ asObject() *Object }
	itemView        interface{ asItem() *Item }
	containerView   interface{ asContainer() *Container }
	actorView       interface{ asActor() *Actor }
	playerView      interface{ asPlayer() *Player }
	windowView      interface{ asWindow() *Window }
	buttonView      interface{ asButton() *Button }
	textView        interface{ asText() *Text }
	editView        interface{ asEdit() *Edit }
	radioButtonView interface{ asRadioButton() *RadioButton }
)

// Params carries the fixed identity of a reference being constructed.
type Params struct {
	ID      ident.Identity
	Slot    ident.SlotID
	BaseID  uint32
	Changed bool

	// OnReclaim runs once, after the reference is detached and its last
	// session has ended.
	OnReclaim func(*Reference)
}

var constructors = map[tag.Tag]func() Instance{
	tag.KindObject:      func() Instance { return &Object{} },
	tag.KindItem:        func() Instance { return &Item{count: 1, condition: 100} },
	tag.KindContainer:   func() Instance { return &Container{} },
	tag.KindActor:       func() Instance { return &Actor{} },
	tag.KindPlayer:      func() Instance { return &Player{} },
	tag.KindWindow:      func() Instance { return &Window{visible: true} },
	tag.KindButton:      func() Instance { return &Button{Window{visible: true}} },
	tag.KindText:        func() Instance { return &Text{Window{visible: true}} },
	tag.KindEdit:        func() Instance { return &Edit{Window: Window{visible: true}} },
	tag.KindRadioButton: func() Instance { return &RadioButton{Window: Window{visible: true}} },
}

// New builds an instance of concrete kind t.
func New(t tag.Tag, p Params) (Instance, error) {
	ctor, ok := constructors[t]
	if !ok {
		return nil, fmt.Errorf("no constructor for type %v", t)
	}
	inst := ctor()
	r := inst.Base()
	r.id = p.ID
	r.slot = p.Slot
	r.baseID = p.BaseID
	r.tag = t
	r.changed = p.Changed
	r.onReclaim = p.OnReclaim
	return inst, nil
}

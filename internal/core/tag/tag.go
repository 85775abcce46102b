package tag

import (
	"fmt"
	"strings"
)

// Tag is the type bitmask carried by every reference. A tag holds the bit of
// its own category and the bit of every ancestor category, so "is-a" checks
// are a single AND.
type Tag uint32

// Category bits. Each bit is reserved forever; new categories take the next
// free bit.
const (
	None        Tag = 0
	Reference   Tag = 0x001
	Object      Tag = 0x002
	Item        Tag = 0x004
	Container   Tag = 0x008
	Actor       Tag = 0x010
	Player      Tag = 0x020
	Window      Tag = 0x040
	Button      Tag = 0x080
	Text        Tag = 0x100
	Edit        Tag = 0x200
	RadioButton Tag = 0x400
)

// Concrete kind tags (own bit | ancestor bits).
const (
	KindObject      = Reference | Object
	KindItem        = KindObject | Item
	KindContainer   = KindObject | Container
	KindActor       = KindContainer | Actor
	KindPlayer      = KindActor | Player
	KindWindow      = Reference | Window
	KindButton      = KindWindow | Button
	KindText        = KindWindow | Text
	KindEdit        = KindWindow | Edit
	KindRadioButton = KindWindow | RadioButton
)

// Enumeration masks, compatible with the scripting API's ALL_* constants.
const (
	AllReferences = Reference
	AllObjects    = Object | Item | Container | Actor | Player
	AllContainers = Container | Actor | Player
	AllActors     = Actor | Player
	AllWindows    = Window | Button | Text | Edit | RadioButton
)

// Concrete lists every kind the registry can instantiate, in bit order.
var Concrete = []Tag{
	KindObject, KindItem, KindContainer, KindActor, KindPlayer,
	KindWindow, KindButton, KindText, KindEdit, KindRadioButton,
}

var names = []struct {
	bit  Tag
	name string
}{
	{Reference, "Reference"},
	{Object, "Object"},
	{Item, "Item"},
	{Container, "Container"},
	{Actor, "Actor"},
	{Player, "Player"},
	{Window, "Window"},
	{Button, "Button"},
	{Text, "Text"},
	{Edit, "Edit"},
	{RadioButton, "RadioButton"},
}

// Matches reports whether tag shares at least one bit with mask.
func Matches(t, mask Tag) bool {
	return t&mask != 0
}

// Matches reports whether t shares at least one bit with mask.
func (t Tag) Matches(mask Tag) bool {
	return t&mask != 0
}

// Satisfies reports whether t carries every bit of kind, i.e. t is kind or
// one of its descendants.
func (t Tag) Satisfies(kind Tag) bool {
	return kind != None && t&kind == kind
}

// IsConcrete reports whether t is an instantiable kind tag.
func (t Tag) IsConcrete() bool {
	for _, c := range Concrete {
		if c == t {
			return true
		}
	}
	return false
}

// Leaf returns the most-derived category bit of t.
func (t Tag) Leaf() Tag {
	for i := len(names) - 1; i >= 0; i-- {
		if t&names[i].bit != 0 {
			return names[i].bit
		}
	}
	return None
}

// Parent returns the kind tag of t with its most-derived bit removed.
func (t Tag) Parent() Tag {
	return t &^ t.Leaf()
}

// String names the most-derived category, e.g. "Player".
func (t Tag) String() string {
	if t == None {
		return "None"
	}
	leaf := t.Leaf()
	for _, n := range names {
		if n.bit == leaf {
			if t.IsConcrete() || t == Reference {
				return n.name
			}
			return fmt.Sprintf("%s(0x%03x)", n.name, uint32(t))
		}
	}
	return fmt.Sprintf("Tag(0x%03x)", uint32(t))
}

// Parse resolves a category name (case-insensitive) to its concrete kind tag.
// "Reference" resolves to the bare Reference bit.
func Parse(s string) (Tag, error) {
	for _, n := range names {
		if !strings.EqualFold(n.name, s) {
			continue
		}
		if n.bit == Reference {
			return Reference, nil
		}
		for _, c := range Concrete {
			if c.Leaf() == n.bit {
				return c, nil
			}
		}
	}
	return None, fmt.Errorf("unknown type %q", s)
}

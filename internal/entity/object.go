package entity

import (
	"slices"

	"github.com/l1jgo/gamefactory/internal/core/ident"
)

// Vector is a world-space position or rotation.
type Vector struct {
	X, Y, Z float32
}

// Object is a placed world reference.
type Object struct {
	Reference

	name  string
	pos   Vector
	angle Vector
	cell  uint32
	lock  uint32
	owner uint32
}

func (o *Object) asObject() *Object { return o }

func (o *Object) Name() string {
	o.RLock()
	defer o.RUnlock()
	return o.name
}

func (o *Object) SetName(name string) {
	o.Lock()
	defer o.Unlock()
	o.name = name
}

func (o *Object) Pos() Vector {
	o.RLock()
	defer o.RUnlock()
	return o.pos
}

func (o *Object) SetPos(v Vector) {
	o.Lock()
	defer o.Unlock()
	o.pos = v
}

func (o *Object) Angle() Vector {
	o.RLock()
	defer o.RUnlock()
	return o.angle
}

func (o *Object) SetAngle(v Vector) {
	o.Lock()
	defer o.Unlock()
	o.angle = v
}

func (o *Object) Cell() uint32 {
	o.RLock()
	defer o.RUnlock()
	return o.cell
}

func (o *Object) SetCell(cell uint32) {
	o.Lock()
	defer o.Unlock()
	o.cell = cell
}

// LockLevel is the in-world lock difficulty (0 = unlocked).
func (o *Object) LockLevel() uint32 {
	o.RLock()
	defer o.RUnlock()
	return o.lock
}

func (o *Object) SetLockLevel(level uint32) {
	o.Lock()
	defer o.Unlock()
	o.lock = level
}

func (o *Object) Owner() uint32 {
	o.RLock()
	defer o.RUnlock()
	return o.owner
}

func (o *Object) SetOwner(owner uint32) {
	o.Lock()
	defer o.Unlock()
	o.owner = owner
}

// Item is an object that can sit in a container.
type Item struct {
	Object

	count     uint32
	condition float32
	equipped  bool
	container ident.Identity
}

func (i *Item) asItem() *Item { return i }

func (i *Item) Count() uint32 {
	i.RLock()
	defer i.RUnlock()
	return i.count
}

func (i *Item) SetCount(n uint32) {
	i.Lock()
	defer i.Unlock()
	i.count = n
}

// Condition is the item health in percent.
func (i *Item) Condition() float32 {
	i.RLock()
	defer i.RUnlock()
	return i.condition
}

func (i *Item) SetCondition(c float32) {
	i.Lock()
	defer i.Unlock()
	i.condition = c
}

func (i *Item) Equipped() bool {
	i.RLock()
	defer i.RUnlock()
	return i.equipped
}

func (i *Item) SetEquipped(equipped bool) {
	i.Lock()
	defer i.Unlock()
	i.equipped = equipped
}

// Container returns the identity of the container holding the item, or zero.
func (i *Item) Container() ident.Identity {
	i.RLock()
	defer i.RUnlock()
	return i.container
}

func (i *Item) SetContainer(id ident.Identity) {
	i.Lock()
	defer i.Unlock()
	i.container = id
}

// Container is an object holding items by identity.
type Container struct {
	Object

	items []ident.Identity
}

func (c *Container) asContainer() *Container { return c }

// AddItem appends id unless it is already held. It reports whether the list
// changed.
func (c *Container) AddItem(id ident.Identity) bool {
	c.Lock()
	defer c.Unlock()
	if slices.Contains(c.items, id) {
		return false
	}
	c.items = append(c.items, id)
	return true
}

func (c *Container) RemoveItem(id ident.Identity) bool {
	c.Lock()
	defer c.Unlock()
	i := slices.Index(c.items, id)
	if i < 0 {
		return false
	}
	c.items = slices.Delete(c.items, i, i+1)
	return true
}

// Items returns a copy of the held item identities.
func (c *Container) Items() []ident.Identity {
	c.RLock()
	defer c.RUnlock()
	return slices.Clone(c.items)
}

func (c *Container) RemoveAllItems() {
	c.Lock()
	defer c.Unlock()
	c.items = c.items[:0]
}

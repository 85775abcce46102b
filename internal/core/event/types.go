package event

import (
	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
)

// Registry lifecycle events.

type InstanceCreated struct {
	ID      ident.Identity
	Slot    ident.SlotID
	Type    tag.Tag
	Changed bool // created under the change flag; peers must be told
}

type InstanceDestroyed struct {
	ID      ident.Identity
	Slot    ident.SlotID
	Type    tag.Tag
	Changed bool
}

// InstanceReclaimed follows InstanceDestroyed once the last session on the
// reference has ended and its slot is free again.
type InstanceReclaimed struct {
	ID   ident.Identity
	Slot ident.SlotID
}

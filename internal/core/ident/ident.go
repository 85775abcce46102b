package ident

import "fmt"

// Identity is the process-stable id of a reference. It is issued once and
// never reused, even after the reference is destroyed. Zero means none.
type Identity uint64

// SlotID is the lightweight, reusable id of a reference. A slot is handed to
// a new reference only after its previous owner has been reclaimed. Zero
// means none.
type SlotID uint32

// Key is satisfied by either id space; lookup helpers accept both.
type Key interface {
	Identity | SlotID
}

func (id Identity) IsZero() bool { return id == 0 }
func (s SlotID) IsZero() bool    { return s == 0 }

func (id Identity) String() string { return fmt.Sprintf("%016x", uint64(id)) }
func (s SlotID) String() string    { return fmt.Sprintf("%08x", uint32(s)) }

// Describe renders a key for error messages and logs.
func Describe[K Key](k K) string {
	switch v := any(k).(type) {
	case Identity:
		return "id " + v.String()
	case SlotID:
		return "slot " + v.String()
	}
	return "?"
}

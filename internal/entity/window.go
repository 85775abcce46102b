package entity

import "github.com/l1jgo/gamefactory/internal/core/ident"

// Rect is a GUI position or size: relative x/y plus absolute offsets.
type Rect struct {
	X, Y, OffsetX, OffsetY float32
}

// Window is a GUI element. Windows nest through their parent identity.
type Window struct {
	Reference

	parent  ident.Identity
	label   string
	pos     Rect
	size    Rect
	visible bool
	locked  bool
	text    string
}

func (w *Window) asWindow() *Window { return w }

func (w *Window) Parent() ident.Identity {
	w.RLock()
	defer w.RUnlock()
	return w.parent
}

func (w *Window) SetParent(id ident.Identity) {
	w.Lock()
	defer w.Unlock()
	w.parent = id
}

func (w *Window) Label() string {
	w.RLock()
	defer w.RUnlock()
	return w.label
}

func (w *Window) SetLabel(label string) {
	w.Lock()
	defer w.Unlock()
	w.label = label
}

func (w *Window) Pos() Rect {
	w.RLock()
	defer w.RUnlock()
	return w.pos
}

func (w *Window) SetPos(r Rect) {
	w.Lock()
	defer w.Unlock()
	w.pos = r
}

func (w *Window) Size() Rect {
	w.RLock()
	defer w.RUnlock()
	return w.size
}

func (w *Window) SetSize(r Rect) {
	w.Lock()
	defer w.Unlock()
	w.size = r
}

func (w *Window) Visible() bool {
	w.RLock()
	defer w.RUnlock()
	return w.visible
}

func (w *Window) SetVisible(visible bool) {
	w.Lock()
	defer w.Unlock()
	w.visible = visible
}

func (w *Window) Locked() bool {
	w.RLock()
	defer w.RUnlock()
	return w.locked
}

func (w *Window) SetLocked(locked bool) {
	w.Lock()
	defer w.Unlock()
	w.locked = locked
}

func (w *Window) Text() string {
	w.RLock()
	defer w.RUnlock()
	return w.text
}

func (w *Window) SetText(text string) {
	w.Lock()
	defer w.Unlock()
	w.text = text
}

type Button struct {
	Window
}

func (b *Button) asButton() *Button { return b }

type Text struct {
	Window
}

func (t *Text) asText() *Text { return t }

// Edit is a text input with an optional length limit and validation pattern.
type Edit struct {
	Window

	maxLength  uint32
	validation string
}

func (e *Edit) asEdit() *Edit { return e }

func (e *Edit) MaxLength() uint32 {
	e.RLock()
	defer e.RUnlock()
	return e.maxLength
}

func (e *Edit) SetMaxLength(n uint32) {
	e.Lock()
	defer e.Unlock()
	e.maxLength = n
}

func (e *Edit) Validation() string {
	e.RLock()
	defer e.RUnlock()
	return e.validation
}

func (e *Edit) SetValidation(pattern string) {
	e.Lock()
	defer e.Unlock()
	e.validation = pattern
}

// RadioButton is a selectable window; buttons sharing a group are exclusive.
type RadioButton struct {
	Window

	selected bool
	group    uint32
}

func (r *RadioButton) asRadioButton() *RadioButton { return r }

func (r *RadioButton) Selected() bool {
	r.RLock()
	defer r.RUnlock()
	return r.selected
}

func (r *RadioButton) SetSelected(selected bool) {
	r.Lock()
	defer r.Unlock()
	r.selected = selected
}

func (r *RadioButton) Group() uint32 {
	r.RLock()
	defer r.RUnlock()
	return r.group
}

func (r *RadioButton) SetGroup(group uint32) {
	r.Lock()
	defer r.Unlock()
	r.group = group
}

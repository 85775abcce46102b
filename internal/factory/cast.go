package factory

import (
	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/errors"
)

// Cast draws a handle of kind U on the reference h is bound to. It succeeds
// only if the reference's own tag satisfies U, whatever kind h was drawn
// for. The new handle holds its own session; h is left as it was.
func Cast[U, T entity.Kind](h *Handle[T]) Expected[*Handle[U]] {
	want := entity.MaskOf[U]()
	if !h.Valid() {
		return Fail[*Handle[U]](errors.NewCastError("", nil, want))
	}
	view := entity.As[U](h.inst)
	if view == nil {
		return Fail[*Handle[U]](errors.NewCastError(ident.Describe(h.ID()), h.tag, want))
	}
	h.inst.Base().StartSession()
	return Ok(&Handle[U]{inst: h.inst, view: view, tag: h.tag})
}

// CastMove is Cast followed by releasing h on success.
func CastMove[U, T entity.Kind](h *Handle[T]) Expected[*Handle[U]] {
	res := Cast[U](h)
	if res.OK() {
		h.Release()
	}
	return res
}

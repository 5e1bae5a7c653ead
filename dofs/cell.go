package dofs

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

func (a Accessor) checkCell() {
	a.check()
	if a.Kind != Cell {
		panic(fmt.Errorf("%w: %v is not a cell", ErrInvalidEntity, a.Ref()))
	}
}

func (a Accessor) checkActive() {
	if !a.Active() {
		panic(fmt.Errorf("%w: %v", ErrNotActive, a.Ref()))
	}
}

func (a Accessor) Active() bool {
	a.checkCell()
	return a.h.tr.Cell(a.Level, a.Index).Active()
}

func (a Accessor) SubdomainID() int {
	a.checkCell()
	return a.h.tr.Cell(a.Level, a.Index).Subdomain
}

func (a Accessor) AtBoundary() bool {
	a.checkCell()
	return a.h.tr.CellAtBoundary(a.Level, a.Index)
}

func (a Accessor) FaceAtBoundary(f int) bool {
	a.checkCell()
	return a.h.tr.FaceAtBoundary(a.Level, a.Index, f)
}

// Neighbor returns the cell across face f, which may be coarser than this one
func (a Accessor) Neighbor(f int) (nb Accessor, ok bool) {
	a.checkCell()
	cr, ok := a.h.tr.Neighbor(a.Level, a.Index, f)
	return Accessor{h: a.h, Kind: Cell, Level: cr.Level, Index: cr.Index}, ok
}

func (a Accessor) Parent() Accessor {
	a.checkCell()
	p := a.h.tr.Cell(a.Level, a.Index).Parent
	if p < 0 {
		return Accessor{h: a.h, Kind: Cell, Level: -1, Index: -1}
	}
	return Accessor{h: a.h, Kind: Cell, Level: a.Level - 1, Index: p}
}

func (a Accessor) checkLocal(n int) {
	if nd := a.h.fe.TotalDofs(); n != nd {
		panic(fmt.Errorf("%w: local vector has %d entries, element %s has %d", ErrBufferSize, n, a.h.fe.Name(), nd))
	}
}

func (a Accessor) checkGlobal(n int) {
	if nd := a.h.NDofs(); n != nd {
		panic(fmt.Errorf("%w: global vector has %d entries, need %d", ErrBufferSize, n, nd))
	}
}

// GetDofValues gathers the global values of an active cell's DOFs into local
func (a Accessor) GetDofValues(global mat.Vector, local *mat.VecDense) {
	a.checkActive()
	a.checkLocal(local.Len())
	a.checkGlobal(global.Len())
	for k, i := range a.dofIndices() {
		local.SetVec(k, global.AtVec(i))
	}
}

// SetDofValues overwrites the global values of an active cell's DOFs
func (a Accessor) SetDofValues(local mat.Vector, global Vector) {
	a.checkActive()
	a.checkLocal(local.Len())
	a.checkGlobal(global.Len())
	for k, i := range a.dofIndices() {
		global.SetVec(i, local.AtVec(k))
	}
}

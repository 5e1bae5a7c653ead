package dofs

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godofs/mesh"
	"github.com/notargets/godofs/utils"
)

var (
	ErrBufferSize = errors.New("buffer has the wrong length")
	ErrNoChild    = errors.New("child does not exist")
	ErrNotActive  = errors.New("cell is not active")
)

// Vector is a writable global vector, satisfied by *mat.VecDense and distributed vectors
type Vector interface {
	Len() int
	AtVec(i int) float64
	SetVec(i int, v float64)
}

/*
Accessor addresses one mesh entity through a handler it borrows. Accessors are values, cheap to copy, and must
not outlive the numbering they were made from: any refinement of the mesh invalidates them and using them
panics until the handler is renumbered.

An accessor with Level and Index of -1 is past the end and only IsValid may be called on it.
*/
type Accessor struct {
	h     *Handler
	Kind  Kind
	Level int
	Index int
}

func (a Accessor) Ref() EntityRef { return EntityRef{a.Kind, a.Level, a.Index} }

func (a Accessor) Handler() *Handler { return a.h }

func (a Accessor) IsValid() bool {
	if a.h == nil || a.Level < 0 || a.Index < 0 {
		return false
	}
	tr := a.h.tr
	switch a.Kind {
	case Vertex:
		return a.Index < tr.NVertices()
	case Edge:
		return tr.Dim() > 1 && a.Level < tr.NLevels() && a.Index < tr.NLines(a.Level)
	case Cell:
		return a.Level < tr.NLevels() && a.Index < tr.NCells(a.Level)
	}
	return false
}

func (a Accessor) check() {
	a.h.checkNumbered()
	if !a.IsValid() {
		panic(fmt.Errorf("%w: %v", ErrInvalidEntity, a.Ref()))
	}
}

func (a Accessor) Used() bool {
	a.check()
	switch a.Kind {
	case Vertex:
		return a.h.tr.VertexUsed(a.Index)
	case Edge:
		return a.h.tr.Line(a.Level, a.Index).Used
	}
	return a.h.tr.Cell(a.Level, a.Index).Used
}

func (a Accessor) geometry() mesh.GeometryInfo { return a.h.tr.Geometry() }

// DofIndex returns the index stored in intrinsic slot i of the entity
func (a Accessor) DofIndex(i int) int {
	a.check()
	return a.h.storage.Get(a.Ref(), i)
}

func (a Accessor) SetDofIndex(i, value int) {
	a.check()
	a.h.storage.Set(a.Ref(), i, value)
}

func (a Accessor) NVertices() int {
	switch a.Kind {
	case Vertex:
		return 1
	case Edge:
		return 2
	}
	return a.geometry().VerticesPerCell
}

// VertexIndex returns the global mesh vertex id of vertex v of the entity
func (a Accessor) VertexIndex(v int) int {
	a.check()
	if v < 0 || v >= a.NVertices() {
		panic(fmt.Errorf("%w: vertex %d of %v", ErrInvalidEntity, v, a.Ref()))
	}
	switch a.Kind {
	case Vertex:
		return a.Index
	case Edge:
		return a.h.tr.Line(a.Level, a.Index).Vertices[v]
	}
	return a.h.tr.Cell(a.Level, a.Index).Vertices[v]
}

func (a Accessor) VertexDofIndex(v, i int) int {
	return a.h.storage.Get(EntityRef{Vertex, 0, a.VertexIndex(v)}, i)
}

func (a Accessor) SetVertexDofIndex(v, i, value int) {
	a.h.storage.Set(EntityRef{Vertex, 0, a.VertexIndex(v)}, i, value)
}

// Line returns bounding line i of a 2D cell
func (a Accessor) Line(i int) Accessor {
	a.check()
	if a.Kind != Cell || a.geometry().LinesPerCell == 0 {
		panic(fmt.Errorf("%w: %v has no bounding lines", ErrInvalidEntity, a.Ref()))
	}
	lines := a.h.tr.Cell(a.Level, a.Index).Lines
	if i < 0 || i >= len(lines) {
		panic(fmt.Errorf("%w: line %d of %v", ErrInvalidEntity, i, a.Ref()))
	}
	return Accessor{h: a.h, Kind: Edge, Level: a.Level, Index: lines[i]}
}

// Face returns face f of a cell, a vertex in 1D and a line in 2D
func (a Accessor) Face(f int) Accessor {
	if a.geometry().Dim == 1 {
		return Accessor{h: a.h, Kind: Vertex, Index: a.VertexIndex(f)}
	}
	return a.Line(f)
}

// NDofs is the number of DOFs on the closure of the entity
func (a Accessor) NDofs() (n int) {
	var (
		s  = &a.h.storage
		nv = a.NVertices()
	)
	n = nv * s.NSlots(Vertex)
	if a.Kind == Vertex {
		return
	}
	if a.Kind == Cell {
		n += a.geometry().LinesPerCell * s.NSlots(Edge)
	}
	return n + s.NSlots(a.Kind)
}

// GetDofIndices fills buf, which must have length NDofs, in the element's local order
func (a Accessor) GetDofIndices(buf []int) {
	a.check()
	if len(buf) != a.NDofs() {
		panic(fmt.Errorf("%w: have %d, need %d for %v", ErrBufferSize, len(buf), a.NDofs(), a.Ref()))
	}
	var (
		s = &a.h.storage
		k int
	)
	if a.Kind == Vertex {
		for i := 0; i < s.NSlots(Vertex); i++ {
			buf[i] = a.DofIndex(i)
		}
		return
	}
	for v := 0; v < a.NVertices(); v++ {
		for i := 0; i < s.NSlots(Vertex); i++ {
			buf[k] = a.VertexDofIndex(v, i)
			k++
		}
	}
	if a.Kind == Cell {
		for f := 0; f < a.geometry().LinesPerCell; f++ {
			line := a.Line(f)
			for i := 0; i < s.NSlots(Edge); i++ {
				buf[k] = line.DofIndex(i)
				k++
			}
		}
	}
	for i := 0; i < s.NSlots(a.Kind); i++ {
		buf[k] = a.DofIndex(i)
		k++
	}
}

func (a Accessor) dofIndices() (buf []int) {
	buf = make([]int, a.NDofs())
	a.GetDofIndices(buf)
	return
}

// DistributeLocalToGlobal adds the local vector into the global one
func (a Accessor) DistributeLocalToGlobal(local mat.Vector, global Vector) {
	indices := a.dofIndices()
	if local.Len() != len(indices) {
		panic(fmt.Errorf("%w: local vector has %d entries, need %d", ErrBufferSize, local.Len(), len(indices)))
	}
	a.checkGlobal(global.Len())
	for k, i := range indices {
		global.SetVec(i, global.AtVec(i)+local.AtVec(k))
	}
}

// DistributeLocalToGlobalMatrix adds the local matrix into the global one, whose pattern must hold every coupling
func (a Accessor) DistributeLocalToGlobalMatrix(local mat.Matrix, global *utils.CSR) {
	indices := a.dofIndices()
	if nr, nc := local.Dims(); nr != len(indices) || nc != len(indices) {
		panic(fmt.Errorf("%w: local matrix is %dx%d, need %d", ErrBufferSize, nr, nc, len(indices)))
	}
	nr, nc := global.Dims()
	if nr != nc {
		panic(fmt.Errorf("%w: global matrix is %dx%d", ErrBufferSize, nr, nc))
	}
	a.checkGlobal(nr)
	for k, i := range indices {
		for m, j := range indices {
			global.Add(i, j, local.At(k, m))
		}
	}
}

func (a Accessor) HasChildren() bool {
	a.check()
	switch a.Kind {
	case Edge:
		return a.h.tr.LineHasChildren(a.Level, a.Index)
	case Cell:
		return a.h.tr.Cell(a.Level, a.Index).HasChildren()
	}
	return false
}

func (a Accessor) NChildren() int {
	if !a.HasChildren() {
		return 0
	}
	if a.Kind == Edge {
		return 2
	}
	return a.geometry().ChildrenPerCell
}

/*
Child returns child i. A child that does not exist or is no longer used gives a past the end accessor, or
panics in strict mode.
*/
func (a Accessor) Child(i int) (child Accessor) {
	a.check()
	child = Accessor{h: a.h, Kind: a.Kind, Level: -1, Index: -1}
	var first int
	switch a.Kind {
	case Edge:
		first = a.h.tr.Line(a.Level, a.Index).FirstChild
	case Cell:
		first = a.h.tr.Cell(a.Level, a.Index).FirstChild
	default:
		first = -1
	}
	if first < 0 || i < 0 || i >= a.NChildren() {
		if a.h.strict {
			panic(fmt.Errorf("%w: child %d of %v", ErrNoChild, i, a.Ref()))
		}
		return
	}
	child.Level, child.Index = a.Level+1, first+i
	if !child.Used() {
		if a.h.strict {
			panic(fmt.Errorf("%w: child %d of %v is not used", ErrNoChild, i, a.Ref()))
		}
		child.Level, child.Index = -1, -1
	}
	return
}

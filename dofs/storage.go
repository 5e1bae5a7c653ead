package dofs

import (
	"errors"
	"fmt"

	"github.com/notargets/godofs/fe"
	"github.com/notargets/godofs/mesh"
)

// InvalidIndex marks a slot that has not been numbered
const InvalidIndex = -1

var (
	ErrInvalidIndex  = errors.New("invalid dof slot")
	ErrInvalidEntity = errors.New("invalid mesh entity")
)

type Kind uint8

const (
	Vertex Kind = iota
	Edge
	Face
	Cell
	nKinds
)

func (k Kind) String() string {
	return [...]string{"Vertex", "Edge", "Face", "Cell"}[k]
}

// EntityRef names a mesh entity, Level is ignored for vertices which are numbered globally
type EntityRef struct {
	Kind         Kind
	Level, Index int
}

func (er EntityRef) String() string {
	if er.Kind == Vertex {
		return fmt.Sprintf("Vertex %d", er.Index)
	}
	return fmt.Sprintf("%v (%d,%d)", er.Kind, er.Level, er.Index)
}

/*
Storage holds the global DOF indices of every entity. Each kind has a fixed number of slots per entity taken from
the element; a level's table is a flat slice of length entities * slots:

	table[index*slots + slot]

Vertices have a single table over the mesh's global vertex ids.
*/
type Storage struct {
	dim    int
	slots  [nKinds]int
	vertex []int
	levels [][nKinds][]int
}

// objDim is the dimension of the objects of kind k in a mesh of dimension dim, -1 if there are none
func objDim(k Kind, dim int) int {
	switch k {
	case Vertex:
		return 0
	case Cell:
		return dim
	case Edge:
		if dim > 1 {
			return 1
		}
	case Face:
		if dim > 2 {
			return 2
		}
	}
	return -1
}

// Reinit sizes the tables for the current mesh and fills them with InvalidIndex
func (s *Storage) Reinit(tr *mesh.Triangulation, element fe.FiniteElement) {
	if element.Dim() != tr.Dim() {
		panic(fmt.Errorf("element %s is %dD, mesh is %dD", element.Name(), element.Dim(), tr.Dim()))
	}
	s.dim = tr.Dim()
	for k := Kind(0); k < nKinds; k++ {
		s.slots[k] = 0
		if od := objDim(k, s.dim); od >= 0 {
			s.slots[k] = element.DofsPerObject(od)
		}
	}
	s.vertex = fill(s.vertex, tr.NVertices()*s.slots[Vertex])
	s.levels = s.levels[:0]
	for l := 0; l < tr.NLevels(); l++ {
		var tables [nKinds][]int
		tables[Cell] = fill(nil, tr.NCells(l)*s.slots[Cell])
		if s.dim > 1 {
			tables[Edge] = fill(nil, tr.NLines(l)*s.slots[Edge])
		}
		s.levels = append(s.levels, tables)
	}
}

func fill(buf []int, n int) []int {
	if cap(buf) < n {
		buf = make([]int, n)
	}
	buf = buf[:n]
	for i := range buf {
		buf[i] = InvalidIndex
	}
	return buf
}

func (s *Storage) NSlots(k Kind) int { return s.slots[k] }

func (s *Storage) table(ref EntityRef) (tab []int, n int) {
	if ref.Kind >= nKinds || objDim(ref.Kind, s.dim) < 0 {
		panic(fmt.Errorf("%w: %v does not exist in %dD", ErrInvalidEntity, ref, s.dim))
	}
	if ref.Kind == Vertex {
		tab = s.vertex
	} else {
		if ref.Level < 0 || ref.Level >= len(s.levels) {
			panic(fmt.Errorf("%w: %v, have %d levels", ErrInvalidEntity, ref, len(s.levels)))
		}
		tab = s.levels[ref.Level][ref.Kind]
	}
	if n = s.slots[ref.Kind]; n == 0 {
		return
	}
	if ref.Index < 0 || (ref.Index+1)*n > len(tab) {
		panic(fmt.Errorf("%w: %v, have %d entities", ErrInvalidEntity, ref, len(tab)/n))
	}
	return
}

func (s *Storage) offset(ref EntityRef, slot int) (tab []int, pos int) {
	tab, n := s.table(ref)
	if slot < 0 || slot >= n {
		panic(fmt.Errorf("%w: slot %d of %v, have %d slots", ErrInvalidIndex, slot, ref, n))
	}
	return tab, ref.Index*n + slot
}

func (s *Storage) Get(ref EntityRef, slot int) int {
	tab, pos := s.offset(ref, slot)
	return tab[pos]
}

func (s *Storage) Set(ref EntityRef, slot, value int) {
	if value < InvalidIndex {
		panic(fmt.Errorf("%w: value %d for slot %d of %v", ErrInvalidIndex, value, slot, ref))
	}
	tab, pos := s.offset(ref, slot)
	tab[pos] = value
}

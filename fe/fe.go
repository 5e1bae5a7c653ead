package fe

import (
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godofs/mesh"
)

/*
FiniteElement describes the layout of an element's local DOFs on the reference cell and the transfer matrices
between a cell and its children.

Local DOFs are ordered by object: all vertex slots (vertex by vertex), then the slots of each bounding line in
the cell's line order, each line's slots running along the line's own orientation, then quad interior slots.
In 1D the cell is itself a line, so its interior slots are DofsPerLine.
*/
type FiniteElement interface {
	Name() string
	Dim() int
	Degree() int
	DofsPerVertex() int
	DofsPerLine() int
	DofsPerQuad() int
	DofsPerHex() int
	DofsPerObject(objDim int) int
	TotalDofs() int
	NComponents() int
	ComponentOf(localDof int) int
	UnitSupportPoints() []mesh.Point
	// Restriction and Prolongation return cached matrices which must not be modified
	Restriction(child int) *mat.Dense
	Prolongation(child int) *mat.Dense
}

// ComponentMask selects vector components, a nil mask selects all of them
type ComponentMask []bool

func NewComponentMask(nComponents int, selected ...int) (cm ComponentMask) {
	cm = make(ComponentMask, nComponents)
	for _, c := range selected {
		cm[c] = true
	}
	return
}

func (cm ComponentMask) Selects(component int) bool {
	if cm == nil {
		return true
	}
	return component < len(cm) && cm[component]
}

func dofsPerObject(fe FiniteElement, objDim int) int {
	switch objDim {
	case 0:
		return fe.DofsPerVertex()
	case 1:
		return fe.DofsPerLine()
	case 2:
		return fe.DofsPerQuad()
	case 3:
		return fe.DofsPerHex()
	}
	return 0
}

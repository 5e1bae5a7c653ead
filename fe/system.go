package fe

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godofs/mesh"
)

// System is n copies of a scalar element. Within every object the slots interleave components, slot s belongs
// to component s % n.
type System struct {
	base         FiniteElement
	n            int
	restriction  []*mat.Dense
	prolongation []*mat.Dense
}

func NewSystem(base FiniteElement, n int) (sys *System) {
	if n < 1 {
		panic(fmt.Errorf("a system needs at least one component, have %d", n))
	}
	if base.NComponents() != 1 {
		panic(fmt.Errorf("system base element %s must be scalar", base.Name()))
	}
	sys = &System{base: base, n: n}
	nChildren := mesh.Geometry(base.Dim()).ChildrenPerCell
	for c := 0; c < nChildren; c++ {
		sys.restriction = append(sys.restriction, sys.expand(base.Restriction(c)))
		sys.prolongation = append(sys.prolongation, sys.expand(base.Prolongation(c)))
	}
	return
}

// expand places M on the diagonal blocks of each component: E(i*n+s, j*n+s) = M(i,j)
func (sys *System) expand(M *mat.Dense) (E *mat.Dense) {
	nr, nc := M.Dims()
	E = mat.NewDense(nr*sys.n, nc*sys.n, nil)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			v := M.At(i, j)
			if v == 0 {
				continue
			}
			for s := 0; s < sys.n; s++ {
				E.Set(i*sys.n+s, j*sys.n+s, v)
			}
		}
	}
	return
}

func (sys *System) Name() string {
	return fmt.Sprintf("FESystem[%s^%d]", sys.base.Name(), sys.n)
}
func (sys *System) Base() FiniteElement          { return sys.base }
func (sys *System) Dim() int                     { return sys.base.Dim() }
func (sys *System) Degree() int                  { return sys.base.Degree() }
func (sys *System) DofsPerVertex() int           { return sys.n * sys.base.DofsPerVertex() }
func (sys *System) DofsPerLine() int             { return sys.n * sys.base.DofsPerLine() }
func (sys *System) DofsPerQuad() int             { return sys.n * sys.base.DofsPerQuad() }
func (sys *System) DofsPerHex() int              { return sys.n * sys.base.DofsPerHex() }
func (sys *System) DofsPerObject(objDim int) int { return dofsPerObject(sys, objDim) }
func (sys *System) TotalDofs() int               { return sys.n * sys.base.TotalDofs() }
func (sys *System) NComponents() int             { return sys.n }

func (sys *System) ComponentOf(localDof int) int {
	if localDof < 0 || localDof >= sys.TotalDofs() {
		panic(fmt.Errorf("local dof %d out of range [0,%d)", localDof, sys.TotalDofs()))
	}
	return localDof % sys.n
}

func (sys *System) UnitSupportPoints() (pts []mesh.Point) {
	for _, pt := range sys.base.UnitSupportPoints() {
		for s := 0; s < sys.n; s++ {
			pts = append(pts, pt)
		}
	}
	return
}

func (sys *System) Restriction(child int) *mat.Dense {
	sys.checkChild(child)
	return sys.restriction[child]
}

func (sys *System) Prolongation(child int) *mat.Dense {
	sys.checkChild(child)
	return sys.prolongation[child]
}

func (sys *System) checkChild(c int) {
	if c < 0 || c >= len(sys.restriction) {
		panic(fmt.Errorf("child %d out of range [0,%d)", c, len(sys.restriction)))
	}
}

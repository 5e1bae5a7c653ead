package dofs

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

var ErrInterpolationConflict = errors.New("children disagree on a restricted value")

const conflictTolerance = 1e-10

/*
GetInterpolatedDofValues returns the values of the cell's DOFs as seen from the active cells below it. A cell
without children gathers directly. Otherwise each child's values are restricted to the parent and the nonzero
results overwrite out in child order, so the last child to produce a value for a DOF wins. In strict mode two
children that disagree on a DOF beyond a relative tolerance of 1e-10 cause a panic.
*/
func (a Accessor) GetInterpolatedDofValues(global mat.Vector, out *mat.VecDense) {
	a.checkCell()
	a.checkLocal(out.Len())
	a.checkGlobal(global.Len())
	if !a.HasChildren() {
		a.GetDofValues(global, out)
		return
	}
	var (
		n          = out.Len()
		childVals  = mat.NewVecDense(n, nil)
		restricted = mat.NewVecDense(n, nil)
		written    = make([]bool, n)
	)
	out.Zero()
	for c := 0; c < a.NChildren(); c++ {
		child := a.Child(c)
		if !child.IsValid() {
			continue
		}
		child.GetInterpolatedDofValues(global, childVals)
		restricted.MulVec(a.h.fe.Restriction(c), childVals)
		for i := 0; i < n; i++ {
			v := restricted.AtVec(i)
			if v == 0 {
				continue
			}
			if a.h.strict && written[i] {
				if prev := out.AtVec(i); !scalar.EqualWithinAbsOrRel(prev, v, conflictTolerance, conflictTolerance) {
					panic(fmt.Errorf("%w: local dof %d of %v, %v from an earlier child and %v from child %d",
						ErrInterpolationConflict, i, a.Ref(), prev, v, c))
				}
			}
			out.SetVec(i, v)
			written[i] = true
		}
	}
}

// SetDofValuesByInterpolation prolongates local values down to the active cells below the cell and writes them
func (a Accessor) SetDofValuesByInterpolation(local mat.Vector, global Vector) {
	a.checkCell()
	a.checkLocal(local.Len())
	a.checkGlobal(global.Len())
	if !a.HasChildren() {
		a.SetDofValues(local, global)
		return
	}
	childVals := mat.NewVecDense(local.Len(), nil)
	for c := 0; c < a.NChildren(); c++ {
		child := a.Child(c)
		if !child.IsValid() {
			continue
		}
		childVals.MulVec(a.h.fe.Prolongation(c), local)
		child.SetDofValuesByInterpolation(childVals, global)
	}
}

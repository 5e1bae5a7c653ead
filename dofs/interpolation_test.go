package dofs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godofs/fe"
	"github.com/notargets/godofs/mesh"
)

// Fields exactly representable by Q(p), bounded away from zero on [0,2]^2
var polynomialFields = map[int]func(p mesh.Point) float64{
	1: func(p mesh.Point) float64 { return 3 + p[0] + 0.5*p[1] + p[0]*p[1] },
	2: func(p mesh.Point) float64 { return 3 + p[0]*p[0] + p[0]*p[1] - 0.25*p[1]*p[1] },
	3: func(p mesh.Point) float64 { return 3 + p[0]*p[0]*p[0]/8 + p[0]*p[1]*p[1]/8 - p[1]/4 },
}

func TestInterpolationIdempotence(t *testing.T) {
	tr, err := mesh.NewHyperCube(2, 2, 0, 2)
	require.NoError(t, err)
	h := NewHandler(tr)
	h.SetStrict(true)
	h.DistributeDofs(fe.NewQ(2, 2))
	u := mat.NewVecDense(h.NDofs(), nil)
	for i := 0; i < u.Len(); i++ {
		u.SetVec(i, float64(i*i)-3)
	}
	for _, cell := range h.ActiveCells() {
		var (
			plain        = mat.NewVecDense(9, nil)
			interpolated = mat.NewVecDense(9, nil)
		)
		cell.GetDofValues(u, plain)
		cell.GetInterpolatedDofValues(u, interpolated)
		assert.Equal(t, plain.RawVector().Data, interpolated.RawVector().Data)
	}
}

func TestProlongationRestrictionConsistency(t *testing.T) {
	for _, dim := range []int{1, 2} {
		for degree := 1; degree <= 3; degree++ {
			tr, err := mesh.NewHyperCube(dim, 1, 0, 2)
			require.NoError(t, err)
			tr.RefineGlobal(1)
			var (
				h       = NewHandler(tr)
				element = fe.NewQ(dim, degree)
				field   = polynomialFields[degree]
			)
			h.SetStrict(true)
			h.DistributeDofs(element)
			parent := h.Cell(0, 0)
			require.Equal(t, mesh.Geometry(dim).ChildrenPerCell, parent.NChildren())

			u := mat.NewVecDense(h.NDofs(), nil)
			Interpolate(h, func(p mesh.Point, _ int) float64 { return field(p) }, u)
			out := mat.NewVecDense(element.TotalDofs(), nil)
			parent.GetInterpolatedDofValues(u, out)
			for k, pt := range element.UnitSupportPoints() {
				exact := field(tr.MapToCell(0, 0, pt))
				assert.True(t, scalar.EqualWithinRel(exact, out.AtVec(k), 1e-10),
					"dim %d degree %d dof %d: have %v, want %v", dim, degree, k, out.AtVec(k), exact)
			}

			// Prolongating the parent values reproduces the field on every child
			back := mat.NewVecDense(h.NDofs(), nil)
			parent.SetDofValuesByInterpolation(out, back)
			assert.InDeltaSlice(t, u.RawVector().Data, back.RawVector().Data, 1e-11)
		}
	}
}

func TestInterpolationMultiLevel(t *testing.T) {
	tr, err := mesh.NewHyperCube(2, 1, 0, 2)
	require.NoError(t, err)
	tr.RefineGlobal(1)
	tr.SetRefineFlag(1, 0)
	tr.ExecuteRefinement()
	require.Equal(t, 3, tr.NLevels())
	var (
		h       = NewHandler(tr)
		element = fe.NewSystem(fe.NewQ(2, 2), 2)
		field   = polynomialFields[2]
	)
	h.SetStrict(true)
	h.DistributeDofs(element)
	u := mat.NewVecDense(h.NDofs(), nil)
	Interpolate(h, func(p mesh.Point, c int) float64 { return field(p) * float64(c+1) }, u)
	out := mat.NewVecDense(element.TotalDofs(), nil)
	h.Cell(0, 0).GetInterpolatedDofValues(u, out)
	for k, pt := range element.UnitSupportPoints() {
		exact := field(tr.MapToCell(0, 0, pt)) * float64(element.ComponentOf(k)+1)
		assert.InDelta(t, exact, out.AtVec(k), 1e-10*exact)
	}
}

// skewedElement doubles the restriction of child 1 so that children disagree on shared DOFs
type skewedElement struct {
	*fe.Q
	skewed *mat.Dense
}

func (se skewedElement) Restriction(child int) *mat.Dense {
	if child == 1 {
		return se.skewed
	}
	return se.Q.Restriction(child)
}

func TestInterpolationConflict(t *testing.T) {
	var (
		q  = fe.NewQ(1, 2)
		se = skewedElement{Q: q, skewed: mat.NewDense(3, 3, nil)}
	)
	se.skewed.Scale(2, q.Restriction(1))
	tr, err := mesh.NewHyperCube(1, 1, 0, 2)
	require.NoError(t, err)
	tr.RefineGlobal(1)
	h := NewHandler(tr)
	h.DistributeDofs(se)
	u := mat.NewVecDense(h.NDofs(), nil)
	Interpolate(h, func(p mesh.Point, _ int) float64 { return 1 + p[0] }, u)
	out := mat.NewVecDense(3, nil)

	// The midpoint lies in both children, the last child wins
	h.Cell(0, 0).GetInterpolatedDofValues(u, out)
	assert.InDelta(t, 1, out.AtVec(0), 1e-14)
	assert.InDelta(t, 6, out.AtVec(1), 1e-14)
	assert.InDelta(t, 4, out.AtVec(2), 1e-14)

	h.SetStrict(true)
	assertPanicsWith(t, ErrInterpolationConflict, func() { h.Cell(0, 0).GetInterpolatedDofValues(u, out) })
}

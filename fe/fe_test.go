package fe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godofs/mesh"
)

func TestQLayout(t *testing.T) {
	q := NewQ(2, 3)
	assert.Equal(t, 1, q.DofsPerVertex())
	assert.Equal(t, 2, q.DofsPerLine())
	assert.Equal(t, 4, q.DofsPerQuad())
	assert.Equal(t, 16, q.TotalDofs())
	assert.Equal(t, 4, q.DofsPerObject(2))
	pts := q.UnitSupportPoints()
	// Vertices counter-clockwise, then bottom, right, top, left lines, then the interior x fastest
	assert.Equal(t, mesh.Point{1, 1}, pts[2])
	assert.InDeltaSlice(t, []float64{1. / 3, 0}, pts[4][:], 1e-15)
	assert.InDeltaSlice(t, []float64{1, 2. / 3}, pts[7][:], 1e-15)
	assert.InDeltaSlice(t, []float64{2. / 3, 1}, pts[9][:], 1e-15)
	assert.InDeltaSlice(t, []float64{0, 1. / 3}, pts[10][:], 1e-15)
	assert.InDeltaSlice(t, []float64{2. / 3, 1. / 3}, pts[13][:], 1e-15)

	q1 := NewQ(1, 2)
	assert.Equal(t, 3, q1.TotalDofs())
	assert.Equal(t, 1, q1.DofsPerLine())
	assert.Equal(t, 0, q1.DofsPerQuad())
	assert.InDelta(t, 0.5, q1.UnitSupportPoints()[2][0], 1e-15)
	assert.Panics(t, func() { NewQ(3, 1) })
	assert.Panics(t, func() { NewQ(2, 0) })
	assert.Panics(t, func() { q1.Restriction(2) })
}

func TestLagrangeAt(t *testing.T) {
	for p := 1; p <= 4; p++ {
		for m := 0; m <= p; m++ {
			for k := 0; k <= p; k++ {
				expected := 0.
				if k == m {
					expected = 1
				}
				assert.Equal(t, expected, LagrangeAt(m, p, k, p))
				// Nodes of the halved line used by hanging node weights
				assert.Equal(t, expected, LagrangeAt(m, p, 2*k, 2*p))
			}
		}
		// Partition of unity
		var sum float64
		for m := 0; m <= p; m++ {
			sum += LagrangeAt(m, p, 3, 10)
		}
		assert.InDelta(t, 1, sum, 1e-14)
	}
	// Linear weights at the midpoint
	assert.Equal(t, 0.5, LagrangeAt(0, 1, 1, 2))
	assert.Equal(t, 0.5, LagrangeAt(1, 1, 1, 2))
}

// interpolateToParent mirrors cell interpolation: restrict each child's values and keep the nonzero results
func interpolateToParent(fe FiniteElement, children []*mat.VecDense) (out *mat.VecDense) {
	n := fe.TotalDofs()
	out = mat.NewVecDense(n, nil)
	tmp := mat.NewVecDense(n, nil)
	for c, child := range children {
		tmp.MulVec(fe.Restriction(c), child)
		for i := 0; i < n; i++ {
			if v := tmp.AtVec(i); v != 0 {
				out.SetVec(i, v)
			}
		}
	}
	return
}

func TestTransferConsistency(t *testing.T) {
	fields := map[int]func(p mesh.Point) float64{
		1: func(p mesh.Point) float64 { return 1.5 + 2*p[0] + 3*p[1] - p[0]*p[1] },
		2: func(p mesh.Point) float64 { return 0.25 + p[0]*p[0] - 2*p[1]*p[1] + 0.5*p[0]*p[1] + p[1] },
		3: func(p mesh.Point) float64 { return 1 + p[0]*p[0]*p[0] - p[1]*p[1]*p[0] + 2*p[1] },
	}
	for _, dim := range []int{1, 2} {
		for degree := 1; degree <= 3; degree++ {
			var (
				q         = NewQ(dim, degree)
				f         = fields[degree]
				pts       = q.UnitSupportPoints()
				parent    = mat.NewVecDense(q.TotalDofs(), nil)
				nChildren = mesh.Geometry(dim).ChildrenPerCell
				children  []*mat.VecDense
			)
			for i, pt := range pts {
				parent.SetVec(i, f(pt))
			}
			for c := 0; c < nChildren; c++ {
				child := mat.NewVecDense(q.TotalDofs(), nil)
				child.MulVec(q.Prolongation(c), parent)
				// Prolongated values are the field at the child's support points
				off := mesh.ChildOffset(dim, c)
				for i, pt := range pts {
					x := mesh.Point{0.5 * (pt[0] + float64(off[0])), 0.5 * (pt[1] + float64(off[1]))}
					assert.InDelta(t, f(x), child.AtVec(i), 1e-12)
				}
				children = append(children, child)
			}
			out := interpolateToParent(q, children)
			for i := 0; i < q.TotalDofs(); i++ {
				assert.True(t, scalar.EqualWithinAbsOrRel(parent.AtVec(i), out.AtVec(i), 1e-10, 1e-10),
					"dim %d degree %d dof %d: %v != %v", dim, degree, i, parent.AtVec(i), out.AtVec(i))
			}
		}
	}
}

func TestSystem(t *testing.T) {
	var (
		q   = NewQ(2, 2)
		sys = NewSystem(q, 2)
	)
	assert.Equal(t, 2, sys.DofsPerVertex())
	assert.Equal(t, 2, sys.DofsPerLine())
	assert.Equal(t, 2, sys.DofsPerQuad())
	assert.Equal(t, 18, sys.TotalDofs())
	assert.Equal(t, 1, sys.ComponentOf(9))
	assert.Equal(t, 0, sys.ComponentOf(10))
	assert.Equal(t, "FESystem[FE_Q<2>(2)^2]", sys.Name())
	for c := 0; c < 4; c++ {
		var (
			P  = q.Prolongation(c)
			PS = sys.Prolongation(c)
		)
		for i := 0; i < q.TotalDofs(); i++ {
			for j := 0; j < q.TotalDofs(); j++ {
				assert.Equal(t, P.At(i, j), PS.At(2*i+1, 2*j+1))
				assert.Equal(t, 0., PS.At(2*i, 2*j+1))
			}
		}
	}
	assert.Panics(t, func() { NewSystem(sys, 2) })

	// Components are transferred independently
	var (
		parent   = mat.NewVecDense(sys.TotalDofs(), nil)
		pts      = sys.UnitSupportPoints()
		children []*mat.VecDense
	)
	for i, pt := range pts {
		if sys.ComponentOf(i) == 0 {
			parent.SetVec(i, pt[0]*pt[1]+1)
		} else {
			parent.SetVec(i, math.Pow(pt[0], 2)-pt[1]+2)
		}
	}
	for c := 0; c < 4; c++ {
		child := mat.NewVecDense(sys.TotalDofs(), nil)
		child.MulVec(sys.Prolongation(c), parent)
		children = append(children, child)
	}
	out := interpolateToParent(sys, children)
	assert.InDeltaSlice(t, parent.RawVector().Data, out.RawVector().Data, 1e-12)

	mask := NewComponentMask(2, 1)
	assert.False(t, mask.Selects(0))
	assert.True(t, mask.Selects(1))
	assert.True(t, ComponentMask(nil).Selects(5))
}

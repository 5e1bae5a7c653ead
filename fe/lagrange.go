package fe

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godofs/mesh"
)

// Q is the continuous tensor product Lagrange element on equispaced nodes
type Q struct {
	dim, degree  int
	lattice      [][2]int // Support points in units of 1/degree
	restriction  []*mat.Dense
	prolongation []*mat.Dense
}

func NewQ(dim, degree int) (q *Q) {
	if dim < 1 || dim > 2 {
		panic(fmt.Errorf("FE_Q is only available in 1D and 2D, have dim = %d", dim))
	}
	if degree < 1 {
		panic(fmt.Errorf("polynomial degree must be >= 1, have %d", degree))
	}
	q = &Q{dim: dim, degree: degree}
	q.lattice = supportLattice(dim, degree)
	nChildren := mesh.Geometry(dim).ChildrenPerCell
	for c := 0; c < nChildren; c++ {
		q.prolongation = append(q.prolongation, q.buildProlongation(c))
		q.restriction = append(q.restriction, q.buildRestriction(c))
	}
	return
}

func supportLattice(dim, p int) (lat [][2]int) {
	switch dim {
	case 1:
		lat = append(lat, [2]int{0, 0}, [2]int{p, 0})
		for k := 1; k < p; k++ {
			lat = append(lat, [2]int{k, 0})
		}
	case 2:
		var corners [4][2]int
		for v := range corners {
			off := mesh.ChildOffset(2, v)
			corners[v] = [2]int{off[0] * p, off[1] * p}
			lat = append(lat, corners[v])
		}
		for _, lv := range mesh.QuadLineVertices {
			a, b := corners[lv[0]], corners[lv[1]]
			for k := 1; k < p; k++ {
				lat = append(lat, [2]int{(a[0]*(p-k) + b[0]*k) / p, (a[1]*(p-k) + b[1]*k) / p})
			}
		}
		for iy := 1; iy < p; iy++ {
			for ix := 1; ix < p; ix++ {
				lat = append(lat, [2]int{ix, iy})
			}
		}
	}
	return
}

func (q *Q) Name() string       { return fmt.Sprintf("FE_Q<%d>(%d)", q.dim, q.degree) }
func (q *Q) Dim() int           { return q.dim }
func (q *Q) Degree() int        { return q.degree }
func (q *Q) DofsPerVertex() int { return 1 }
func (q *Q) DofsPerLine() int   { return q.degree - 1 }

func (q *Q) DofsPerQuad() int {
	if q.dim < 2 {
		return 0
	}
	return (q.degree - 1) * (q.degree - 1)
}

func (q *Q) DofsPerHex() int                   { return 0 }
func (q *Q) DofsPerObject(objDim int) int      { return dofsPerObject(q, objDim) }
func (q *Q) TotalDofs() int                    { return len(q.lattice) }
func (q *Q) NComponents() int                  { return 1 }
func (q *Q) Restriction(child int) *mat.Dense  { return q.restriction[q.checkChild(child)] }
func (q *Q) Prolongation(child int) *mat.Dense { return q.prolongation[q.checkChild(child)] }

func (q *Q) ComponentOf(localDof int) int {
	q.checkDof(localDof)
	return 0
}

func (q *Q) UnitSupportPoints() (pts []mesh.Point) {
	pts = make([]mesh.Point, len(q.lattice))
	for i, a := range q.lattice {
		pts[i] = mesh.Point{float64(a[0]) / float64(q.degree), float64(a[1]) / float64(q.degree)}
	}
	return
}

func (q *Q) checkDof(i int) {
	if i < 0 || i >= len(q.lattice) {
		panic(fmt.Errorf("local dof %d out of range [0,%d)", i, len(q.lattice)))
	}
}

func (q *Q) checkChild(c int) int {
	if c < 0 || c >= len(q.restriction) {
		panic(fmt.Errorf("child %d out of range [0,%d)", c, len(q.restriction)))
	}
	return c
}

// shape evaluates basis function j at the point num/den (per coordinate) of the reference cell
func (q *Q) shape(j int, num [2]int, den int) (f float64) {
	f = 1
	for d := 0; d < q.dim; d++ {
		f *= LagrangeAt(q.lattice[j][d], q.degree, num[d], den)
	}
	return
}

func (q *Q) buildProlongation(child int) (P *mat.Dense) {
	/*
		Row i holds the parent basis evaluated at child support point i:
			x_parent = (a_i + offset*p) / 2p
	*/
	var (
		n   = len(q.lattice)
		p   = q.degree
		off = mesh.ChildOffset(q.dim, child)
	)
	P = mat.NewDense(n, n, nil)
	for i, a := range q.lattice {
		num := [2]int{a[0] + off[0]*p, a[1] + off[1]*p}
		for j := 0; j < n; j++ {
			P.Set(i, j, q.shape(j, num, 2*p))
		}
	}
	return
}

func (q *Q) buildRestriction(child int) (R *mat.Dense) {
	/*
		Row i holds the child basis evaluated at parent support point i when that point lies inside the child:
			x_child = 2*a_i/p - offset
		Rows of parent points outside the child are zero.
	*/
	var (
		n   = len(q.lattice)
		p   = q.degree
		off = mesh.ChildOffset(q.dim, child)
	)
	R = mat.NewDense(n, n, nil)
	for i, a := range q.lattice {
		var (
			num    [2]int
			inside = true
		)
		for d := 0; d < q.dim; d++ {
			num[d] = 2*a[d] - off[d]*p
			if num[d] < 0 || num[d] > p {
				inside = false
			}
		}
		if !inside {
			continue
		}
		for j := 0; j < n; j++ {
			R.Set(i, j, q.shape(j, num, p))
		}
	}
	return
}

// LagrangeAt evaluates the 1D basis function of node m/p at x = num/den. Integer arguments keep the result exact
// where x coincides with a node.
func LagrangeAt(m, p, num, den int) (f float64) {
	f = 1
	for k := 0; k <= p; k++ {
		if k == m {
			continue
		}
		f *= float64(num*p-k*den) / float64((m-k)*den)
	}
	return
}

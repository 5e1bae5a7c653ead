package distributed

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godofs/constraints"
	"github.com/notargets/godofs/dofs"
	"github.com/notargets/godofs/fe"
	"github.com/notargets/godofs/indexset"
	"github.com/notargets/godofs/mesh"
)

// newQuadrantHandler numbers a 4x4 square with two refined cells, one subdomain per quadrant
func newQuadrantHandler(t *testing.T, element fe.FiniteElement) *dofs.Handler {
	tr, err := mesh.NewHyperCube(2, 4, 0, 1)
	require.NoError(t, err)
	tr.SetRefineFlag(0, 5)
	tr.SetRefineFlag(0, 10)
	tr.ExecuteRefinement()
	for _, cr := range tr.ActiveCells() {
		c := tr.MapToCell(cr.Level, cr.Index, mesh.Point{0.5, 0.5})
		rank := 0
		if c[0] > 0.5 {
			rank++
		}
		if c[1] > 0.5 {
			rank += 2
		}
		tr.SetSubdomainID(cr.Level, cr.Index, rank)
	}
	h := dofs.NewHandler(tr)
	h.SetStrict(true)
	h.DistributeDofs(element)
	return h
}

func field(p mesh.Point) float64 { return math.Sin(3*p[0]) + math.Exp(p[1]) }

func TestLayout(t *testing.T) {
	var (
		h = newQuadrantHandler(t, fe.NewSystem(fe.NewQ(2, 2), 2))
		l = NewLayout(h)
	)
	require.Equal(t, 4, l.NRanks())
	require.NoError(t, l.CheckPartition())
	require.NoError(t, CheckBoundarySubset(h, nil, l))
	require.NoError(t, CheckBoundarySubset(h, fe.NewComponentMask(2, 1), l))
	for r := 0; r < l.NRanks(); r++ {
		ghosts := l.Ghosts(r)
		assert.False(t, ghosts.IsEmpty(), "rank %d", r)
		assert.True(t, ghosts.Intersect(l.Owned[r]).IsEmpty())
		for _, i := range ghosts.Elements() {
			owner := l.OwnerOf(i)
			assert.NotEqual(t, r, owner)
			assert.Equal(t, h.DofOwner(i), owner)
		}
	}
	assert.Equal(t, -1, l.OwnerOf(l.NDofs))
	assert.Equal(t, -1, l.OwnerOf(-1))
	require.NotNil(t, l.owners)
	scan := Layout{NDofs: l.NDofs, Owned: l.Owned, Relevant: l.Relevant}
	for i := 0; i < l.NDofs; i++ {
		assert.Equal(t, scan.OwnerOf(i), l.OwnerOf(i), "dof %d", i)
	}

	// Two ranks claiming the same dof
	overlapping := *l
	overlapping.Owned = append([]*indexset.IndexSet(nil), l.Owned...)
	overlapping.Owned[1] = l.Owned[1].Clone()
	overlapping.Owned[1].AddIndex(0)
	assert.True(t, errors.Is(overlapping.CheckPartition(), ErrOwnershipInconsistent))

	// A dof nobody owns
	missing := *l
	missing.Owned = append([]*indexset.IndexSet(nil), l.Owned...)
	missing.Owned[3] = l.Owned[3].Clone()
	missing.Owned[3].SubtractSet(indexset.NewRange(l.NDofs, l.NDofs-1, l.NDofs))
	assert.True(t, errors.Is(missing.CheckPartition(), ErrOwnershipInconsistent))

	// Boundary dofs that a rank cannot read
	narrow := *l
	narrow.Relevant = append([]*indexset.IndexSet(nil), l.Owned...)
	assert.True(t, errors.Is(CheckBoundarySubset(h, nil, &narrow), ErrOwnershipInconsistent))
}

func TestOwnerMap(t *testing.T) {
	block := func(begin, end int) *indexset.IndexSet { return indexset.NewRange(10, begin, end) }
	pm := newOwnerMap(10, []*indexset.IndexSet{block(0, 4), indexset.New(10), block(4, 10)})
	require.NotNil(t, pm)
	l := &Layout{NDofs: 10, owners: pm}
	for i, owner := range []int{0, 0, 0, 0, 2, 2, 2, 2, 2, 2} {
		assert.Equal(t, owner, l.OwnerOf(i))
	}

	// Out of order, split or incomplete ownership falls back to searching every rank
	assert.Nil(t, newOwnerMap(10, []*indexset.IndexSet{block(4, 10), block(0, 4)}))
	assert.Nil(t, newOwnerMap(10, []*indexset.IndexSet{block(0, 3)}))
	split := block(0, 2)
	split.AddRange(5, 10)
	owned := []*indexset.IndexSet{split, block(2, 5)}
	assert.Nil(t, newOwnerMap(10, owned))
	scan := &Layout{NDofs: 10, Owned: owned}
	assert.Equal(t, 0, scan.OwnerOf(7))
	assert.Equal(t, 1, scan.OwnerOf(3))
}

func TestVector(t *testing.T) {
	var (
		h = newQuadrantHandler(t, fe.NewQ(2, 1))
		l = NewLayout(h)
		v = NewVector(l, 1)
		g = NewGhostedVector(l, 1)
	)
	var mv mat.Vector = g
	assert.Equal(t, l.NDofs, mv.Len())
	assert.False(t, v.HasGhostElements())
	assert.True(t, g.HasGhostElements())
	assert.Len(t, v.OwnedValues(), l.Owned[1].NElements())
	assert.Len(t, g.GhostValues(), l.Ghosts(1).NElements())

	first := l.Owned[1].NthIndex(0)
	ghost := l.Ghosts(1).NthIndex(0)
	v.SetVec(first, 2)
	v.AddAt(first, 0.5)
	assert.Equal(t, 2.5, v.At(first, 0))
	assert.True(t, v.InLocalRange(first))
	assert.False(t, v.InLocalRange(ghost))
	assert.False(t, v.IsReadable(ghost))
	assert.True(t, g.IsReadable(ghost))
	assert.False(t, g.InLocalRange(ghost))
	_, err := func() (_ float64, err error) {
		defer func() { err, _ = recover().(error) }()
		return v.AtVec(ghost), nil
	}()
	assert.True(t, errors.Is(err, ErrNotLocal))

	g.CopyOwned(v)
	assert.Equal(t, 2.5, g.AtVec(first))
	g.SetVec(ghost, 1)
	g.ZeroGhosts()
	assert.Equal(t, 0.0, g.AtVec(ghost))
	assert.Equal(t, 2.5, g.AtVec(first))
	assert.Panics(t, func() { g.CopyOwned(NewVector(l, 0)) })
}

// ownedVectors splits a global vector into one vector per rank
func ownedVectors(l *Layout, u mat.Vector, ghosted bool) (vs []*Vector) {
	vs = make([]*Vector, l.NRanks())
	for r := range vs {
		if ghosted {
			vs[r] = NewGhostedVector(l, r)
		} else {
			vs[r] = NewVector(l, r)
		}
		for _, i := range l.Owned[r].Elements() {
			vs[r].SetVec(i, u.AtVec(i))
		}
	}
	return
}

func TestUpdateGhosts(t *testing.T) {
	var (
		h  = newQuadrantHandler(t, fe.NewQ(2, 2))
		l  = NewLayout(h)
		ex = NewExchanger(l)
		u  = mat.NewVecDense(l.NDofs, nil)
	)
	dofs.Interpolate(h, func(p mesh.Point, _ int) float64 { return field(p) }, u)
	vs := ownedVectors(l, u, true)
	for round := 0; round < 2; round++ {
		require.NoError(t, ex.UpdateGhosts(vs))
		for r, v := range vs {
			for _, i := range l.Relevant[r].Elements() {
				assert.Equal(t, u.AtVec(i), v.AtVec(i), "rank %d dof %d", r, i)
			}
		}
		// A second round sees changed owner values
		for _, v := range vs {
			owned := v.OwnedValues()
			for k := range owned {
				owned[k] *= 2
			}
		}
		u.ScaleVec(2, u)
	}

	// Every rank gathers its cells from the ghosted vector
	require.NoError(t, ex.UpdateGhosts(vs))
	for r, v := range vs {
		local := mat.NewVecDense(9, nil)
		expected := mat.NewVecDense(9, nil)
		for _, cell := range h.LocallyOwnedCells(r) {
			cell.GetDofValues(v, local)
			cell.GetDofValues(u, expected)
			assert.Equal(t, expected.RawVector().Data, local.RawVector().Data)
		}
	}

	assert.True(t, errors.Is(ex.UpdateGhosts(vs[:3]), ErrLayoutMismatch))
	assert.True(t, errors.Is(ex.UpdateGhosts(ownedVectors(l, u, false)), ErrLayoutMismatch))
	swapped := append([]*Vector(nil), vs...)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	assert.True(t, errors.Is(ex.UpdateGhosts(swapped), ErrLayoutMismatch))
}

func TestCompressAdd(t *testing.T) {
	var (
		element = fe.NewSystem(fe.NewQ(2, 1), 2)
		h       = newQuadrantHandler(t, element)
		l       = NewLayout(h)
		ex      = NewExchanger(l)
		local   = mat.NewVecDense(element.TotalDofs(), nil)
		serial  = mat.NewVecDense(l.NDofs, nil)
	)
	for k := 0; k < local.Len(); k++ {
		local.SetVec(k, float64(k+1))
	}
	for _, cell := range h.ActiveCells() {
		cell.DistributeLocalToGlobal(local, serial)
	}
	vs := ownedVectors(l, mat.NewVecDense(l.NDofs, nil), true)
	for r, v := range vs {
		for _, cell := range h.LocallyOwnedCells(r) {
			cell.DistributeLocalToGlobal(local, v)
		}
	}
	require.NoError(t, ex.CompressAdd(vs))
	for r, v := range vs {
		for _, i := range l.Owned[r].Elements() {
			assert.InDelta(t, serial.AtVec(i), v.AtVec(i), 1e-12, "rank %d dof %d", r, i)
		}
		for _, g := range v.GhostValues() {
			assert.Equal(t, 0.0, g)
		}
	}
}

func TestDistributedCondense(t *testing.T) {
	var (
		h      = newQuadrantHandler(t, fe.NewQ(2, 2))
		l      = NewLayout(h)
		ex     = NewExchanger(l)
		serial = mat.NewVecDense(l.NDofs, nil)
		ac     = constraints.New(nil)
	)
	dofs.Interpolate(h, func(p mesh.Point, _ int) float64 { return field(p) }, serial)
	var (
		dst = ownedVectors(l, serial, false)
		src = ownedVectors(l, serial, true)
	)
	require.NoError(t, ex.UpdateGhosts(src))
	require.NoError(t, dofs.MakeHangingNodeConstraints(h, ac))
	require.NoError(t, ac.Close())
	require.Equal(t, 2*4*3, ac.NConstraints())
	require.NoError(t, ac.Distribute(serial))

	for r := 0; r < l.NRanks(); r++ {
		local := constraints.New(l.Relevant[r])
		require.NoError(t, dofs.MakeHangingNodeConstraints(h, local))
		require.NoError(t, local.Close())

		assert.True(t, errors.Is(local.Condense(src[r]), constraints.ErrGhostedVector))
		require.NoError(t, local.CondenseFrom(dst[r], src[r]))
		for _, i := range l.Owned[r].Elements() {
			assert.InDelta(t, serial.AtVec(i), dst[r].AtVec(i), 1e-14, "rank %d dof %d", r, i)
		}
	}
}

package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHyperCube(t *testing.T) {
	{ // 1D
		tr, err := NewHyperCube(1, 4, 0, 1)
		require.NoError(t, err)
		assert.Equal(t, 5, tr.NVertices())
		assert.Equal(t, 4, tr.NActiveCells())
		assert.True(t, tr.VertexAtBoundary(0))
		assert.True(t, tr.VertexAtBoundary(4))
		assert.False(t, tr.VertexAtBoundary(2))
		nb, ok := tr.Neighbor(0, 1, 0)
		assert.True(t, ok)
		assert.Equal(t, CellRef{0, 0}, nb)
		_, ok = tr.Neighbor(0, 0, 0)
		assert.False(t, ok)
		assert.InDelta(t, 0.375, tr.MapToCell(0, 1, Point{0.5, 0})[0], 1e-14)
	}
	{ // 2D
		tr, err := NewHyperCube(2, 2, 0, 1)
		require.NoError(t, err)
		assert.Equal(t, 9, tr.NVertices())
		assert.Equal(t, 4, tr.NActiveCells())
		assert.Equal(t, 12, tr.NLines(0))
		var nBoundary int
		for i := 0; i < tr.NLines(0); i++ {
			ln := tr.Line(0, i)
			if ln.Boundary {
				nBoundary++
			}
			// Lines run from low to high coordinate
			p0, p1 := tr.Vertex(ln.Vertices[0]), tr.Vertex(ln.Vertices[1])
			assert.True(t, p0[0] <= p1[0] && p0[1] <= p1[1])
		}
		assert.Equal(t, 8, nBoundary)
		// Cell 0 and cell 1 share cell 0's right line as cell 1's left line
		assert.Equal(t, tr.Cell(0, 0).Lines[1], tr.Cell(0, 1).Lines[3])
		nb, ok := tr.Neighbor(0, 0, 2)
		assert.True(t, ok)
		assert.Equal(t, CellRef{0, 2}, nb)
		assert.True(t, tr.CellAtBoundary(0, 3))
		p := tr.MapToCell(0, 3, Point{0.5, 0.5})
		assert.InDeltaSlice(t, []float64{0.75, 0.75}, p[:], 1e-14)
	}
	_, err := NewHyperCube(3, 1, 0, 1)
	assert.Error(t, err)
	_, err = NewHyperCube(2, 0, 0, 1)
	assert.Error(t, err)
}

func TestRefinement(t *testing.T) {
	tr, err := NewHyperCube(2, 2, 0, 1)
	require.NoError(t, err)
	var nNotified int
	tr.Subscribe(func() { nNotified++ })
	tr.SetRefineFlag(0, 0)
	tr.ExecuteRefinement()
	assert.Equal(t, 1, nNotified)
	assert.Equal(t, 2, tr.NLevels())
	assert.Equal(t, 14, tr.NVertices())
	assert.Equal(t, 7, tr.NActiveCells())
	assert.False(t, tr.CellActive(0, 0))
	assert.Equal(t, 0, tr.Cell(0, 0).FirstChild)

	// Children share the parent's corner vertices in counter-clockwise order
	parent := tr.Cell(0, 0)
	for k := 0; k < 4; k++ {
		assert.Equal(t, parent.Vertices[k], tr.Cell(1, k).Vertices[k])
		assert.Equal(t, 0, tr.Cell(1, k).Parent)
	}
	// The right line of the parent is split, neighbors of the right children are the coarse cell 1
	assert.True(t, tr.LineHasChildren(0, parent.Lines[1]))
	nb, ok := tr.Neighbor(1, 1, 1)
	assert.True(t, ok)
	assert.Equal(t, CellRef{0, 1}, nb)
	nb, ok = tr.Neighbor(1, 0, 1)
	assert.True(t, ok)
	assert.Equal(t, CellRef{1, 1}, nb)
	// Midpoint of the shared line is a hanging vertex on the boundary of the coarse cell 1
	mid := tr.Line(1, tr.Cell(1, 1).Lines[1]).Vertices[1]
	p := tr.Vertex(mid)
	assert.InDeltaSlice(t, []float64{0.5, 0.25}, p[:], 1e-14)

	// Refining the upper right child forces the two coarse neighbors to refine
	tr.SetRefineFlag(1, 2)
	tr.ExecuteRefinement()
	assert.False(t, tr.CellActive(0, 1))
	assert.False(t, tr.CellActive(0, 2))
	assert.True(t, tr.CellActive(0, 3))
	assert.Equal(t, 3, tr.NLevels())
	assert.Equal(t, 16, tr.NActiveCells())
	assert.Equal(t, 2, nNotified)
}

func TestCoarsening(t *testing.T) {
	tr, err := NewHyperCube(2, 2, 0, 1)
	require.NoError(t, err)
	tr.SetRefineFlag(0, 0)
	tr.ExecuteRefinement()
	tr.SetRefineFlag(1, 2)
	tr.ExecuteRefinement()
	nActive := tr.NActiveCells()

	// Coarsening cell 1 would leave the refined child of cell 0 next to a level 0 cell
	first := tr.Cell(0, 1).FirstChild
	for k := 0; k < 4; k++ {
		tr.SetCoarsenFlag(1, first+k)
	}
	tr.ExecuteCoarsening()
	assert.Equal(t, nActive, tr.NActiveCells())
	assert.False(t, tr.CoarsenFlagSet(1, first))

	// Coarsening the grandchildren first is allowed, then cell 1 may go
	grand := tr.Cell(1, 2).FirstChild
	for k := 0; k < 4; k++ {
		tr.SetCoarsenFlag(2, grand+k)
	}
	for k := 0; k < 4; k++ {
		tr.SetCoarsenFlag(1, first+k)
	}
	tr.ExecuteCoarsening()
	assert.True(t, tr.CellActive(0, 1))
	assert.True(t, tr.CellActive(1, 2))
	assert.False(t, tr.Cell(2, grand).Used)
	assert.Equal(t, 10, tr.NActiveCells())

	// Refinement after coarsening appends fresh children and reuses the split lines
	nVerts := tr.NVertices()
	tr.SetRefineFlag(0, 1)
	tr.ExecuteRefinement()
	assert.Equal(t, nVerts, tr.NVertices())
	assert.Equal(t, 13, tr.NActiveCells())
	assert.NotEqual(t, first, tr.Cell(0, 1).FirstChild)
}

func TestRefinement1D(t *testing.T) {
	tr, err := NewHyperCube(1, 2, -1, 1)
	require.NoError(t, err)
	tr.RefineGlobal(2)
	assert.Equal(t, 8, tr.NActiveCells())
	assert.Equal(t, 9, tr.NVertices())
	assert.Equal(t, 3, tr.NLevels())
	// Left neighbor of the first child of coarse cell 1 is the second child of coarse cell 0
	c1 := tr.Cell(0, 1).FirstChild
	nb, ok := tr.Neighbor(1, c1, 0)
	assert.True(t, ok)
	assert.Equal(t, CellRef{1, tr.Cell(0, 0).FirstChild + 1}, nb)

	tr.SetCoarsenFlag(2, 0)
	tr.SetCoarsenFlag(2, 1)
	tr.ExecuteCoarsening()
	assert.Equal(t, 7, tr.NActiveCells())
	assert.Equal(t, 1, tr.NSubdomains())
}

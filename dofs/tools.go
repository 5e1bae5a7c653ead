package dofs

import (
	"fmt"

	"github.com/notargets/godofs/constraints"
	"github.com/notargets/godofs/fe"
	"github.com/notargets/godofs/indexset"
	"github.com/notargets/godofs/mesh"
	"github.com/notargets/godofs/utils"
)

// ExtractLocallyActiveDofs returns the DOFs of the active cells of rank
func ExtractLocallyActiveDofs(h *Handler, rank int) (is *indexset.IndexSet) {
	is = indexset.New(h.NDofs())
	for _, cell := range h.LocallyOwnedCells(rank) {
		is.AddIndices(cell.dofIndices())
	}
	return
}

// GhostCells lists the active cells of other ranks that share a vertex with a cell of rank
func GhostCells(h *Handler, rank int) (ghosts []Accessor) {
	h.checkNumbered()
	touched := make(map[int]bool)
	for _, cell := range h.LocallyOwnedCells(rank) {
		for v := 0; v < cell.NVertices(); v++ {
			touched[cell.VertexIndex(v)] = true
		}
	}
	for _, cell := range h.ActiveCells() {
		if cell.SubdomainID() == rank {
			continue
		}
		for v := 0; v < cell.NVertices(); v++ {
			if touched[cell.VertexIndex(v)] {
				ghosts = append(ghosts, cell)
				break
			}
		}
	}
	return
}

// ExtractLocallyRelevantDofs returns the owned DOFs of rank together with the DOFs of its cells and ghost cells
func ExtractLocallyRelevantDofs(h *Handler, rank int) (is *indexset.IndexSet) {
	is = ExtractLocallyActiveDofs(h, rank)
	is.AddSet(h.LocallyOwnedDofs(rank))
	for _, cell := range GhostCells(h, rank) {
		is.AddIndices(cell.dofIndices())
	}
	return
}

// faceLocalDofs lists the local DOF numbers of the closure of face f in the element's local ordering
func faceLocalDofs(h *Handler, f int) (local []int) {
	var (
		geo = h.tr.Geometry()
		s   = &h.storage
		dpv = s.NSlots(Vertex)
		dpl = s.NSlots(Edge)
	)
	addVertex := func(v int) {
		for i := 0; i < dpv; i++ {
			local = append(local, v*dpv+i)
		}
	}
	switch geo.Dim {
	case 1:
		addVertex(f)
	case 2:
		lv := mesh.QuadLineVertices[f]
		addVertex(lv[0])
		addVertex(lv[1])
		for i := 0; i < dpl; i++ {
			local = append(local, geo.VerticesPerCell*dpv+f*dpl+i)
		}
	}
	return
}

/*
ExtractBoundaryDofs returns the DOFs on boundary faces of the active cells of rank, AllRanks for every active
cell, restricted to the components selected by mask. A nil mask selects all components.
*/
func ExtractBoundaryDofs(h *Handler, mask fe.ComponentMask, rank int) (is *indexset.IndexSet) {
	is = indexset.New(h.NDofs())
	var (
		geo     = h.tr.Geometry()
		element = h.FE()
		buf     = make([]int, element.TotalDofs())
	)
	for _, cell := range h.LocallyOwnedCells(rank) {
		if !cell.AtBoundary() {
			continue
		}
		cell.GetDofIndices(buf)
		for f := 0; f < geo.FacesPerCell; f++ {
			if !cell.FaceAtBoundary(f) {
				continue
			}
			for _, k := range faceLocalDofs(h, f) {
				if mask.Selects(element.ComponentOf(k)) {
					is.AddIndex(buf[k])
				}
			}
		}
	}
	return
}

/*
MakeHangingNodeConstraints constrains the DOFs on the refined side of every line between an active cell and
finer neighbors. The mid vertex and child line DOFs are interpolated from the coarse line's vertex and line DOFs:

	coarse nodes at 0, 2k and 2p, fine nodes at k and p+k in units of 1/(2p) along the line

Lines are visited from the coarse cell, so each hanging line is constrained once. 1D meshes have no hanging
nodes.
*/
func MakeHangingNodeConstraints(h *Handler, ac *constraints.AffineConstraints) (err error) {
	h.checkNumbered()
	if h.tr.Dim() < 2 {
		return
	}
	var (
		element = h.FE()
		p       = element.Degree()
		nComp   = element.NComponents()
		s       = &h.storage
		dpv     = s.NSlots(Vertex)
		dpl     = s.NSlots(Edge)
	)
	type node struct {
		dof, comp, pos int // pos in units of 1/(2p)
	}
	for _, cell := range h.ActiveCells() {
		for f := 0; f < h.tr.Geometry().LinesPerCell; f++ {
			line := cell.Line(f)
			if !line.HasChildren() {
				continue
			}
			var coarse, fine []node
			for i := 0; i < dpv; i++ {
				coarse = append(coarse,
					node{line.VertexDofIndex(0, i), i % nComp, 0},
					node{line.VertexDofIndex(1, i), i % nComp, 2 * p})
			}
			for i := 0; i < dpl; i++ {
				coarse = append(coarse, node{line.DofIndex(i), i % nComp, 2 * (i/nComp + 1)})
			}
			c0, c1 := line.Child(0), line.Child(1)
			if !c0.IsValid() || !c1.IsValid() {
				return fmt.Errorf("%w: hanging line %v", ErrNoChild, line.Ref())
			}
			for i := 0; i < dpv; i++ {
				fine = append(fine, node{c0.VertexDofIndex(1, i), i % nComp, p})
			}
			for i := 0; i < dpl; i++ {
				k := i/nComp + 1
				fine = append(fine,
					node{c0.DofIndex(i), i % nComp, k},
					node{c1.DofIndex(i), i % nComp, p + k})
			}
			for _, fn := range fine {
				if ac.IsConstrained(fn.dof) {
					continue
				}
				ac.AddLine(fn.dof)
				for _, cn := range coarse {
					if cn.comp != fn.comp {
						continue
					}
					// Coarse node m of the line sits at 2m in units of 1/(2p)
					w := fe.LagrangeAt(cn.pos/2, p, fn.pos, 2*p)
					if w == 0 {
						continue
					}
					if err = ac.AddEntry(fn.dof, cn.dof, w); err != nil {
						return
					}
				}
			}
		}
	}
	return
}

// MakeSparsityPattern couples all DOFs of each active cell of rank, AllRanks for every cell
func MakeSparsityPattern(h *Handler, rank int) (sp *utils.SparsityPattern) {
	sp = utils.NewSparsityPattern(h.NDofs(), h.NDofs())
	for _, cell := range h.LocallyOwnedCells(rank) {
		sp.AddEntries(cell.dofIndices())
	}
	return
}

// MapDofsToSupportPoints returns the location of every DOF
func MapDofsToSupportPoints(h *Handler) (pts []mesh.Point) {
	var (
		unit = h.FE().UnitSupportPoints()
		buf  = make([]int, len(unit))
	)
	pts = make([]mesh.Point, h.NDofs())
	for _, cell := range h.ActiveCells() {
		cell.GetDofIndices(buf)
		for k, i := range buf {
			pts[i] = h.tr.MapToCell(cell.Level, cell.Index, unit[k])
		}
	}
	return
}

// Interpolate sets every DOF of v to fn evaluated at its support point for its component
func Interpolate(h *Handler, fn func(p mesh.Point, component int) float64, v Vector) {
	var (
		element = h.FE()
		unit    = element.UnitSupportPoints()
		buf     = make([]int, len(unit))
	)
	if v.Len() != h.NDofs() {
		panic(fmt.Errorf("%w: vector has %d entries, need %d", ErrBufferSize, v.Len(), h.NDofs()))
	}
	for _, cell := range h.ActiveCells() {
		cell.GetDofIndices(buf)
		for k, i := range buf {
			v.SetVec(i, fn(h.tr.MapToCell(cell.Level, cell.Index, unit[k]), element.ComponentOf(k)))
		}
	}
}

package mesh

import (
	"fmt"
	"log"
)

func (t *Triangulation) SetRefineFlag(level, index int) {
	c := t.Cell(level, index)
	if !c.Active() {
		panic(fmt.Errorf("refine flag on inactive cell (%d,%d)", level, index))
	}
	c.refine = true
	c.coarsen = false
}

func (t *Triangulation) RefineFlagSet(level, index int) bool { return t.Cell(level, index).refine }

func (t *Triangulation) SetCoarsenFlag(level, index int) {
	c := t.Cell(level, index)
	if !c.Active() {
		panic(fmt.Errorf("coarsen flag on inactive cell (%d,%d)", level, index))
	}
	if level == 0 {
		panic(fmt.Errorf("cell (%d,%d) is on the coarse level and can not be coarsened", level, index))
	}
	c.coarsen = true
	c.refine = false
}

func (t *Triangulation) CoarsenFlagSet(level, index int) bool { return t.Cell(level, index).coarsen }

// RefineGlobal refines every active cell n times
func (t *Triangulation) RefineGlobal(n int) {
	for k := 0; k < n; k++ {
		for _, cr := range t.ActiveCells() {
			t.levels[cr.Level].cells[cr.Index].refine = true
		}
		t.ExecuteRefinement()
	}
}

// ExecuteRefinement refines all flagged cells, first extending the flags so that no line ends up with more than
// one hanging node
func (t *Triangulation) ExecuteRefinement() {
	if t.geo.Dim == 2 {
		t.closeRefinementFlags()
	}
	var nRefined int
	// Level count grows while refining, flagged cells on new levels do not exist yet
	for l := 0; l < len(t.levels); l++ {
		lev := t.levels[l]
		for i := range lev.cells {
			if lev.cells[i].refine && lev.cells[i].Active() {
				t.refineCell(l, i)
				nRefined++
			}
			lev.cells[i].refine = false
		}
	}
	t.rebuild()
	if nRefined != 0 {
		t.notify()
	}
}

func (t *Triangulation) closeRefinementFlags() {
	for changed := true; changed; {
		changed = false
		for l := 1; l < len(t.levels); l++ {
			var (
				lev    = t.levels[l]
				coarse = t.levels[l-1]
			)
			for i := range lev.cells {
				c := &lev.cells[i]
				if !c.refine || !c.Active() {
					continue
				}
				for _, L := range c.Lines {
					P := lev.lines[L].Parent
					if P < 0 {
						continue
					}
					for _, k := range coarse.lineCells[P] {
						if k != c.Parent && coarse.cells[k].Active() && !coarse.cells[k].refine {
							coarse.cells[k].refine = true
							changed = true
						}
					}
				}
			}
		}
	}
}

func (t *Triangulation) ensureLevel(l int) *level {
	for len(t.levels) <= l {
		t.levels = append(t.levels, &level{})
	}
	return t.levels[l]
}

// ensureLineChildren splits a line at its midpoint, reusing children made by an earlier refinement
func (t *Triangulation) ensureLineChildren(l, L int) (first, mid int) {
	var (
		lev  = t.levels[l]
		fine = t.ensureLevel(l + 1)
		ln   = lev.lines[L]
	)
	if ln.FirstChild >= 0 {
		return ln.FirstChild, fine.lines[ln.FirstChild].Vertices[1]
	}
	p0, p1 := t.vertices[ln.Vertices[0]], t.vertices[ln.Vertices[1]]
	mid = t.addVertex(Point{0.5 * (p0[0] + p1[0]), 0.5 * (p0[1] + p1[1])}, ln.Boundary)
	first = len(fine.lines)
	fine.lines = append(fine.lines,
		newLine([2]int{ln.Vertices[0], mid}, L, ln.Boundary),
		newLine([2]int{mid, ln.Vertices[1]}, L, ln.Boundary),
	)
	lev.lines[L].FirstChild = first
	return
}

func (t *Triangulation) refineCell(l, i int) {
	var (
		fine = t.ensureLevel(l + 1)
		c    = &t.levels[l].cells[i]
	)
	switch t.geo.Dim {
	case 1:
		if c.center < 0 {
			p0, p1 := t.vertices[c.Vertices[0]], t.vertices[c.Vertices[1]]
			c.center = t.addVertex(Point{0.5 * (p0[0] + p1[0]), 0}, false)
		}
		c.FirstChild = len(fine.cells)
		fine.cells = append(fine.cells,
			newCell([]int{c.Vertices[0], c.center}, nil, i, c.Subdomain),
			newCell([]int{c.center, c.Vertices[1]}, nil, i, c.Subdomain),
		)
	case 2:
		var (
			lc  [4][2]int // Child lines of each bounding line
			m   [4]int    // Midpoints of each bounding line
			v   = c.Vertices
			ctr int
		)
		for f, L := range c.Lines {
			var first int
			first, m[f] = t.ensureLineChildren(l, L)
			lc[f] = [2]int{first, first + 1}
		}
		// ensureLineChildren may grow the vertex slice but never moves cells
		c = &t.levels[l].cells[i]
		if c.center < 0 {
			c.center = t.addVertex(t.MapToCell(l, i, Point{0.5, 0.5}), false)
		}
		ctr = c.center
		if c.inner < 0 {
			c.inner = len(fine.lines)
			fine.lines = append(fine.lines,
				newLine([2]int{m[0], ctr}, -1, false),
				newLine([2]int{ctr, m[2]}, -1, false),
				newLine([2]int{m[3], ctr}, -1, false),
				newLine([2]int{ctr, m[1]}, -1, false),
			)
		}
		in := [4]int{c.inner, c.inner + 1, c.inner + 2, c.inner + 3}
		c.FirstChild = len(fine.cells)
		fine.cells = append(fine.cells,
			newCell([]int{v[0], m[0], ctr, m[3]}, []int{lc[0][0], in[0], in[2], lc[3][0]}, i, c.Subdomain),
			newCell([]int{m[0], v[1], m[1], ctr}, []int{lc[0][1], lc[1][0], in[3], in[0]}, i, c.Subdomain),
			newCell([]int{ctr, m[1], v[2], m[2]}, []int{in[3], lc[1][1], lc[2][1], in[1]}, i, c.Subdomain),
			newCell([]int{m[3], ctr, m[2], v[3]}, []int{in[2], in[1], lc[2][0], lc[3][1]}, i, c.Subdomain),
		)
	}
}

// ExecuteCoarsening removes the children of every parent whose children are all active and flagged, unless a
// neighbor refined across one of the parent's lines would be left with two hanging levels
func (t *Triangulation) ExecuteCoarsening() {
	var nCoarsened, nRefused int
	for l := len(t.levels) - 1; l > 0; l-- {
		var (
			coarse = t.levels[l-1]
			lev    = t.levels[l]
		)
		for p := range coarse.cells {
			parent := &coarse.cells[p]
			if !parent.Used || !parent.HasChildren() {
				continue
			}
			flagged := true
			for k := 0; k < t.geo.ChildrenPerCell; k++ {
				ch := &lev.cells[parent.FirstChild+k]
				if !ch.Active() || !ch.coarsen {
					flagged = false
				}
			}
			if !flagged {
				continue
			}
			if !t.canCoarsen(l-1, p) {
				nRefused++
				continue
			}
			for k := 0; k < t.geo.ChildrenPerCell; k++ {
				ch := &lev.cells[parent.FirstChild+k]
				ch.Used = false
				ch.coarsen = false
			}
			parent.Subdomain = lev.cells[parent.FirstChild].Subdomain
			parent.FirstChild = -1
			nCoarsened++
			t.rebuild()
		}
	}
	for _, lev := range t.levels {
		for i := range lev.cells {
			lev.cells[i].coarsen = false
		}
	}
	if nRefused != 0 {
		log.Printf("coarsening refused for %d cells to keep the mesh 1-irregular\n", nRefused)
	}
	t.rebuild()
	if nCoarsened != 0 {
		t.notify()
	}
}

func (t *Triangulation) canCoarsen(l, p int) bool {
	if t.geo.Dim == 1 {
		return true
	}
	for _, L := range t.levels[l].cells[p].Lines {
		first := t.levels[l].lines[L].FirstChild
		if first < 0 {
			continue
		}
		for k := 0; k < 2; k++ {
			if t.LineHasChildren(l+1, first+k) {
				return false
			}
		}
	}
	return true
}

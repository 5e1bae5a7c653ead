package dofs

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/notargets/godofs/fe"
	"github.com/notargets/godofs/indexset"
	"github.com/notargets/godofs/mesh"
	"github.com/notargets/godofs/utils"
)

var ErrStale = errors.New("dof handler is not numbered for the current mesh")

// AllRanks selects every active cell in functions that take a rank
const AllRanks = -1

/*
Handler numbers the DOFs of an element on a triangulation. Entities are owned by the smallest subdomain id among
the active cells using them and every rank owns one contiguous range of indices, so the sequential numbering is
the single subdomain case.

Refining or coarsening the mesh makes the handler stale until DistributeDofs is called again.
*/
type Handler struct {
	tr       *mesh.Triangulation
	fe       fe.FiniteElement
	storage  Storage
	nDofs    int
	offsets  []int // Rank r owns [offsets[r], offsets[r+1])
	strict   bool
	numbered bool
}

func NewHandler(tr *mesh.Triangulation) (h *Handler) {
	h = &Handler{tr: tr}
	tr.Subscribe(func() { h.numbered = false })
	return
}

// SetStrict enables the consistency checks that are too expensive for production runs
func (h *Handler) SetStrict(strict bool) { h.strict = strict }
func (h *Handler) Strict() bool          { return h.strict }

func (h *Handler) Mesh() *mesh.Triangulation { return h.tr }
func (h *Handler) FE() fe.FiniteElement      { return h.fe }
func (h *Handler) Storage() *Storage         { return &h.storage }
func (h *Handler) IsNumbered() bool          { return h.numbered }

func (h *Handler) checkNumbered() {
	if !h.numbered {
		panic(ErrStale)
	}
}

func (h *Handler) NDofs() int {
	h.checkNumbered()
	return h.nDofs
}

func (h *Handler) NRanks() int {
	h.checkNumbered()
	return len(h.offsets) - 1
}

func (h *Handler) checkRank(rank int) {
	if rank < 0 || rank >= len(h.offsets)-1 {
		panic(fmt.Errorf("rank %d out of range [0,%d)", rank, len(h.offsets)-1))
	}
}

func (h *Handler) LocallyOwnedDofs(rank int) *indexset.IndexSet {
	h.checkNumbered()
	h.checkRank(rank)
	return indexset.NewRange(h.nDofs, h.offsets[rank], h.offsets[rank+1])
}

func (h *Handler) NLocallyOwnedDofsPerRank() (n []int) {
	h.checkNumbered()
	n = make([]int, len(h.offsets)-1)
	for r := range n {
		n[r] = h.offsets[r+1] - h.offsets[r]
	}
	return
}

// DofOwner returns the rank owning global index i
func (h *Handler) DofOwner(i int) int {
	h.checkNumbered()
	if i < 0 || i >= h.nDofs {
		panic(fmt.Errorf("%w: dof %d out of range [0,%d)", ErrInvalidIndex, i, h.nDofs))
	}
	return sort.SearchInts(h.offsets[1:], i+1)
}

// owners holds the owning rank of every entity used by an active cell, -1 for the others
type owners struct {
	vertex []int
	lines  [][]int
}

func (h *Handler) computeOwners() (o owners) {
	o.vertex = fillOwner(h.tr.NVertices())
	for l := 0; l < h.tr.NLevels(); l++ {
		var lines []int
		if h.tr.Dim() > 1 {
			lines = fillOwner(h.tr.NLines(l))
		}
		o.lines = append(o.lines, lines)
	}
	take := func(cur *int, rank int) {
		if *cur < 0 || rank < *cur {
			*cur = rank
		}
	}
	for _, cr := range h.tr.ActiveCells() {
		c := h.tr.Cell(cr.Level, cr.Index)
		for _, v := range c.Vertices {
			take(&o.vertex[v], c.Subdomain)
		}
		for _, L := range c.Lines {
			take(&o.lines[cr.Level][L], c.Subdomain)
		}
	}
	return
}

func fillOwner(n int) (o []int) {
	o = make([]int, n)
	for i := range o {
		o[i] = -1
	}
	return
}

/*
DistributeDofs assigns global indices for element on the current mesh. Ranks are numbered in order; within a
rank the active cells are visited in order and each cell numbers, if owned and not yet numbered, its vertices,
then its lines, then its interior.
*/
func (h *Handler) DistributeDofs(element fe.FiniteElement) {
	h.fe = element
	h.storage.Reinit(h.tr, element)
	var (
		own    = h.computeOwners()
		active = h.tr.ActiveCells()
		nRanks = max(1, h.tr.NSubdomains())
		next   int
		s      = &h.storage
	)
	number := func(ref EntityRef) {
		for slot := 0; slot < s.NSlots(ref.Kind); slot++ {
			s.Set(ref, slot, next)
			next++
		}
	}
	numbered := func(ref EntityRef) bool {
		return s.NSlots(ref.Kind) == 0 || s.Get(ref, 0) != InvalidIndex
	}
	h.offsets = make([]int, nRanks+1)
	for rank := 0; rank < nRanks; rank++ {
		for _, cr := range active {
			c := h.tr.Cell(cr.Level, cr.Index)
			for _, v := range c.Vertices {
				ref := EntityRef{Vertex, 0, v}
				if own.vertex[v] == rank && !numbered(ref) {
					number(ref)
				}
			}
			for _, L := range c.Lines {
				ref := EntityRef{Edge, cr.Level, L}
				if own.lines[cr.Level][L] == rank && !numbered(ref) {
					number(ref)
				}
			}
			if c.Subdomain == rank {
				number(EntityRef{Cell, cr.Level, cr.Index})
			}
		}
		h.offsets[rank+1] = next
	}
	h.nDofs = next
	h.numbered = true
	if h.strict {
		h.verifyNumbering()
	}
	log.Printf("distributed %d dofs of %s on %d active cells over %d ranks\n",
		h.nDofs, element.Name(), len(active), nRanks)
}

// verifyNumbering checks that every active cell sees only valid indices and that each index is used
func (h *Handler) verifyNumbering() {
	var (
		seen = make([]bool, h.nDofs)
		buf  = make(utils.Index, h.fe.TotalDofs())
	)
	for _, cell := range h.ActiveCells() {
		cell.GetDofIndices(buf)
		if err := buf.CheckBounds(h.nDofs); err != nil {
			panic(fmt.Errorf("%w: cell %v: %v", ErrInvalidIndex, cell.Ref(), err))
		}
		for _, i := range buf {
			seen[i] = true
		}
	}
	for i, ok := range seen {
		if !ok {
			panic(fmt.Errorf("%w: dof %d is not used by any active cell", ErrInvalidIndex, i))
		}
	}
}

func (h *Handler) Cell(level, index int) Accessor {
	return Accessor{h: h, Kind: Cell, Level: level, Index: index}
}

func (h *Handler) ActiveCells() (cells []Accessor) {
	for _, cr := range h.tr.ActiveCells() {
		cells = append(cells, h.Cell(cr.Level, cr.Index))
	}
	return
}

// LocallyOwnedCells lists the active cells of rank, or all of them for AllRanks
func (h *Handler) LocallyOwnedCells(rank int) (cells []Accessor) {
	for _, cell := range h.ActiveCells() {
		if rank == AllRanks || cell.SubdomainID() == rank {
			cells = append(cells, cell)
		}
	}
	return
}

package distributed

import (
	"errors"
	"fmt"

	"github.com/notargets/godofs/dofs"
	"github.com/notargets/godofs/fe"
	"github.com/notargets/godofs/indexset"
	"github.com/notargets/godofs/utils"
)

var (
	ErrOwnershipInconsistent = errors.New("ownership is inconsistent")
	ErrNotLocal              = errors.New("entry is not stored on this rank")
	ErrLayoutMismatch        = errors.New("vector does not belong to this layout")
)

// Layout is the per-rank view of a numbering: the DOFs each rank owns and the DOFs it must be able to read
type Layout struct {
	NDofs    int
	Owned    []*indexset.IndexSet
	Relevant []*indexset.IndexSet
	owners   *utils.PartitionMap // nil unless the owned sets are contiguous and in rank order
}

func NewLayout(h *dofs.Handler) (l *Layout) {
	n := h.NRanks()
	l = &Layout{
		NDofs:    h.NDofs(),
		Owned:    make([]*indexset.IndexSet, n),
		Relevant: make([]*indexset.IndexSet, n),
	}
	for r := 0; r < n; r++ {
		l.Owned[r] = h.LocallyOwnedDofs(r)
		l.Relevant[r] = dofs.ExtractLocallyRelevantDofs(h, r)
	}
	l.owners = newOwnerMap(l.NDofs, l.Owned)
	return
}

// newOwnerMap returns the owned ranges as a partition map when each rank owns one block following the previous rank's
func newOwnerMap(nDofs int, owned []*indexset.IndexSet) *utils.PartitionMap {
	var (
		ranges = make([][2]int, len(owned))
		next   int
	)
	for r, is := range owned {
		rs := is.Ranges()
		switch {
		case len(rs) == 0:
			ranges[r] = [2]int{next, next}
		case len(rs) == 1 && rs[0].Begin == next:
			ranges[r] = [2]int{rs[0].Begin, rs[0].End}
		default:
			return nil
		}
		next = ranges[r][1]
	}
	if next != nDofs {
		return nil
	}
	return utils.NewPartitionMapFromRanges(nDofs, ranges)
}

func (l *Layout) NRanks() int { return len(l.Owned) }

// Ghosts are the relevant DOFs of rank that another rank owns
func (l *Layout) Ghosts(rank int) (is *indexset.IndexSet) {
	is = l.Relevant[rank].Clone()
	is.SubtractSet(l.Owned[rank])
	return
}

// OwnerOf returns the rank owning DOF i, or -1 if no rank owns it
func (l *Layout) OwnerOf(i int) int {
	if l.owners != nil {
		r, _, _ := l.owners.GetBucket(i)
		return r
	}
	for r, owned := range l.Owned {
		if owned.IsElement(i) {
			return r
		}
	}
	return -1
}

/*
CheckPartition verifies that the owned sets are pairwise disjoint and together cover every DOF, and that each
rank can read what it owns.
*/
func (l *Layout) CheckPartition() error {
	union := indexset.New(l.NDofs)
	for r, owned := range l.Owned {
		if overlap := owned.Intersect(union); !overlap.IsEmpty() {
			return fmt.Errorf("%w: rank %d owns %v which a lower rank also owns", ErrOwnershipInconsistent, r, overlap)
		}
		if !owned.IsSubsetOf(l.Relevant[r]) {
			return fmt.Errorf("%w: owned dofs of rank %d are not relevant to it", ErrOwnershipInconsistent, r)
		}
		union.AddSet(owned)
	}
	if n := union.NElements(); n != l.NDofs {
		missing := indexset.Complete(l.NDofs)
		missing.SubtractSet(union)
		return fmt.Errorf("%w: %d of %d dofs have no owner: %v", ErrOwnershipInconsistent, l.NDofs-n, l.NDofs, missing)
	}
	return nil
}

// CheckBoundarySubset verifies that every rank can read the boundary DOFs of its own cells
func CheckBoundarySubset(h *dofs.Handler, mask fe.ComponentMask, l *Layout) error {
	for r := 0; r < l.NRanks(); r++ {
		boundary := dofs.ExtractBoundaryDofs(h, mask, r)
		if !boundary.IsSubsetOf(l.Relevant[r]) {
			boundary.SubtractSet(l.Relevant[r])
			return fmt.Errorf("%w: boundary dofs %v of rank %d are not relevant", ErrOwnershipInconsistent, boundary, r)
		}
	}
	return nil
}

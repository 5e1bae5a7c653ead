package partition

import (
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/notargets/godofs/mesh"
	"github.com/notargets/godofs/utils"
)

var ErrNParts = errors.New("invalid number of partitions")

// Partitioner assigns a subdomain id in [0,nParts) to every active cell of the mesh
type Partitioner interface {
	Name() string
	Partition(tr *mesh.Triangulation, nParts int) error
}

func CheckNParts(tr *mesh.Triangulation, nParts int) error {
	if nParts < 1 || nParts > tr.NActiveCells() {
		return fmt.Errorf("%w: %d parts for %d active cells", ErrNParts, nParts, tr.NActiveCells())
	}
	return nil
}

// Contiguous splits the active cell list into nParts runs that differ in length by at most one cell
type Contiguous struct{}

func (Contiguous) Name() string { return "contiguous" }

func (Contiguous) Partition(tr *mesh.Triangulation, nParts int) (err error) {
	if err = CheckNParts(tr, nParts); err != nil {
		return
	}
	var (
		active = tr.ActiveCells()
		pm     = utils.NewPartitionMap(nParts, len(active))
	)
	for rank, bucket := range pm.Partitions {
		for k := bucket[0]; k < bucket[1]; k++ {
			tr.SetSubdomainID(active[k].Level, active[k].Index, rank)
		}
	}
	log.Printf("Partitioned %d active cells into %d contiguous parts", len(active), nParts)
	return
}

// Stats holds partition quality metrics
type Stats struct {
	NParts    int
	Cells     []int         // Active cells per part
	CutFaces  int           // Faces between cells of different parts
	Neighbors []map[int]int // Per part: neighbor part -> shared faces
	Imbalance float64       // Largest part over the mean, minus one
}

// Analyze computes the partition quality of the current subdomain ids. Faces with a coarser neighbor are counted
// from the finer side only.
func Analyze(tr *mesh.Triangulation) (st Stats) {
	st.NParts = tr.NSubdomains()
	st.Cells = make([]int, st.NParts)
	st.Neighbors = make([]map[int]int, st.NParts)
	for i := range st.Neighbors {
		st.Neighbors[i] = make(map[int]int)
	}
	geo := tr.Geometry()
	for _, cr := range tr.ActiveCells() {
		c := tr.Cell(cr.Level, cr.Index)
		st.Cells[c.Subdomain]++
		for f := 0; f < geo.FacesPerCell; f++ {
			nb, ok := tr.Neighbor(cr.Level, cr.Index, f)
			if !ok {
				continue
			}
			n := tr.Cell(nb.Level, nb.Index)
			if !n.Active() {
				// Seen from the finer cells on the other side
				continue
			}
			if nb.Level == cr.Level && nb.Index < cr.Index {
				// Count each same level face once
				continue
			}
			if n.Subdomain != c.Subdomain {
				st.CutFaces++
				st.Neighbors[c.Subdomain][n.Subdomain]++
				st.Neighbors[n.Subdomain][c.Subdomain]++
			}
		}
	}
	avg := float64(tr.NActiveCells()) / float64(st.NParts)
	st.Imbalance = float64(slices.Max(st.Cells))/avg - 1
	return
}

func (st Stats) Log() {
	log.Printf("Partition Analysis:")
	log.Printf("  Cut faces: %d", st.CutFaces)
	log.Printf("  Load imbalance: %.2f%%", st.Imbalance*100)
	log.Printf("  Cells per part: [%d, %d]", slices.Min(st.Cells), slices.Max(st.Cells))
	for p, nbs := range st.Neighbors {
		log.Printf("  Partition %d: %d cells, %d neighbors", p, st.Cells[p], len(nbs))
	}
}

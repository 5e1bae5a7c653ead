package distributed

import (
	"fmt"
	"sync"

	"github.com/notargets/godofs/utils"
)

type entry struct {
	Index int
	Value float64
}

/*
Exchanger moves values between the ranks of a layout, one goroutine per rank. Ranks talk only through the
mailbox; a barrier separates posting from receiving so every message of a round is delivered before it is read.
*/
type Exchanger struct {
	layout     *Layout
	mb         *utils.MailBox[entry]
	sends      []map[int][]int // [owner][reader]: owned indices the reader holds as ghosts
	ghostOwner [][]int         // [rank]: owner of each ghost, in ghost order
}

func NewExchanger(l *Layout) (ex *Exchanger) {
	np := l.NRanks()
	ex = &Exchanger{
		layout:     l,
		mb:         utils.NewMailBox[entry](np),
		sends:      make([]map[int][]int, np),
		ghostOwner: make([][]int, np),
	}
	for r := range ex.sends {
		ex.sends[r] = make(map[int][]int)
	}
	for r := 0; r < np; r++ {
		for _, g := range l.Ghosts(r).Elements() {
			owner := l.OwnerOf(g)
			ex.sends[owner][r] = append(ex.sends[owner][r], g)
			ex.ghostOwner[r] = append(ex.ghostOwner[r], owner)
		}
	}
	return
}

func (ex *Exchanger) check(vectors []*Vector, ghosted bool) error {
	if len(vectors) != ex.layout.NRanks() {
		return fmt.Errorf("%w: %d vectors for %d ranks", ErrLayoutMismatch, len(vectors), ex.layout.NRanks())
	}
	for r, v := range vectors {
		if v.rank != r || v.size != ex.layout.NDofs || !v.owned.Equal(ex.layout.Owned[r]) {
			return fmt.Errorf("%w: vector %d holds rank %d", ErrLayoutMismatch, r, v.rank)
		}
		if ghosted && !v.ghosted {
			return fmt.Errorf("%w: vector of rank %d has no ghost entries", ErrLayoutMismatch, r)
		}
	}
	return nil
}

// round runs post on every rank, waits for all deliveries, then runs receive on every rank
func (ex *Exchanger) round(post func(rank int), receive func(rank int, msgs []entry)) {
	var (
		np = ex.layout.NRanks()
		wg sync.WaitGroup
	)
	wg.Add(np)
	for r := 0; r < np; r++ {
		go func(rank int) {
			defer wg.Done()
			post(rank)
			ex.mb.DeliverMyMessages(rank)
		}(r)
	}
	wg.Wait()
	wg.Add(np)
	for r := 0; r < np; r++ {
		go func(rank int) {
			defer wg.Done()
			ex.mb.ReceiveMyMessages(rank)
			receive(rank, ex.mb.ReceiveMsgQs[rank].Cells())
			ex.mb.ClearMyMessages(rank)
		}(r)
	}
	wg.Wait()
}

// UpdateGhosts copies every owner's values into the ghost entries of the other ranks
func (ex *Exchanger) UpdateGhosts(vectors []*Vector) (err error) {
	if err = ex.check(vectors, true); err != nil {
		return
	}
	ex.round(
		func(rank int) {
			v := vectors[rank]
			for reader, indices := range ex.sends[rank] {
				for _, i := range indices {
					ex.mb.PostMessage(rank, reader, entry{i, v.AtVec(i)})
				}
			}
		},
		func(rank int, msgs []entry) {
			v := vectors[rank]
			for _, m := range msgs {
				v.SetVec(m.Index, m.Value)
			}
		})
	return
}

/*
CompressAdd adds every rank's ghost entries into the owners' entries and clears the ghosts. Assembly scatters
cell contributions into ghosted vectors and calls CompressAdd once to complete the sums.
*/
func (ex *Exchanger) CompressAdd(vectors []*Vector) (err error) {
	if err = ex.check(vectors, true); err != nil {
		return
	}
	ex.round(
		func(rank int) {
			var (
				v     = vectors[rank]
				ghost = v.GhostValues()
			)
			for k, i := range v.ghosts.Elements() {
				if val := ghost[k]; val != 0 {
					ex.mb.PostMessage(rank, ex.ghostOwner[rank][k], entry{i, val})
				}
			}
			v.ZeroGhosts()
		},
		func(rank int, msgs []entry) {
			v := vectors[rank]
			for _, m := range msgs {
				v.AddAt(m.Index, m.Value)
			}
		})
	return
}

package indexset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/DataDog/zstd"
	"github.com/ghodss/yaml"
)

var ErrCorrupt = errors.New("corrupt index set encoding")

// MaxEncodedLength bounds the length prefix accepted by Read
const MaxEncodedLength = 1 << 30

type yamlIndexSet struct {
	Size   int      `json:"size"`
	Ranges [][2]int `json:"ranges"`
}

func (is *IndexSet) ToYAML() ([]byte, error) {
	ys := yamlIndexSet{Size: is.size, Ranges: make([][2]int, len(is.ranges))}
	for k, r := range is.ranges {
		ys.Ranges[k] = [2]int{r.Begin, r.End}
	}
	return yaml.Marshal(ys)
}

func FromYAML(data []byte) (is *IndexSet, err error) {
	var ys yamlIndexSet
	if err = yaml.Unmarshal(data, &ys); err != nil {
		return
	}
	if ys.Size < 0 {
		err = fmt.Errorf("%w: negative size %d", ErrCorrupt, ys.Size)
		return
	}
	is = New(ys.Size)
	for _, r := range ys.Ranges {
		if r[0] < 0 || r[1] > ys.Size || r[0] > r[1] {
			err = fmt.Errorf("%w: range [%d,%d) outside of [0,%d)", ErrCorrupt, r[0], r[1], ys.Size)
			return nil, err
		}
		is.AddRange(r[0], r[1])
	}
	return
}

/*
MarshalBinary encodes the set as unsigned varints compressed with zstd:

	size, number of ranges, then per range: gap from the previous range end, range length

Owned sets are mostly a single range and relevant sets are runs of short gaps, so the deltas compress well.
*/
func (is *IndexSet) MarshalBinary() (data []byte, err error) {
	var (
		buf  = make([]byte, 0, 2*binary.MaxVarintLen64*(len(is.ranges)+1))
		prev int
	)
	buf = binary.AppendUvarint(buf, uint64(is.size))
	buf = binary.AppendUvarint(buf, uint64(len(is.ranges)))
	for _, r := range is.ranges {
		buf = binary.AppendUvarint(buf, uint64(r.Begin-prev))
		buf = binary.AppendUvarint(buf, uint64(r.Len()))
		prev = r.End
	}
	return zstd.CompressLevel(nil, buf, zstd.DefaultCompression)
}

func (is *IndexSet) UnmarshalBinary(data []byte) (err error) {
	var buf []byte
	if buf, err = zstd.Decompress(nil, data); err != nil {
		return
	}
	next := func() (v int, err error) {
		u, n := binary.Uvarint(buf)
		if n <= 0 {
			err = fmt.Errorf("%w: truncated varint", ErrCorrupt)
			return
		}
		if u > math.MaxInt {
			err = fmt.Errorf("%w: varint %d overflows int", ErrCorrupt, u)
			return
		}
		buf = buf[n:]
		v = int(u)
		return
	}
	var size, nRanges int
	if size, err = next(); err != nil {
		return
	}
	if nRanges, err = next(); err != nil {
		return
	}
	var (
		res    = New(size)
		ranges []Range
	)
	for k, prev := 0, 0; k < nRanges; k++ {
		var gap, length int
		if gap, err = next(); err != nil {
			return
		}
		if length, err = next(); err != nil {
			return
		}
		if gap > size-prev {
			return fmt.Errorf("%w: range %d starts past the end of a set of size %d", ErrCorrupt, k, size)
		}
		begin := prev + gap
		if length == 0 || (k != 0 && gap == 0) || length > size-begin {
			return fmt.Errorf("%w: range %d of length %d at %d in a set of size %d", ErrCorrupt, k, length, begin, size)
		}
		ranges = append(ranges, Range{begin, begin + length})
		prev = begin + length
	}
	if len(buf) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(buf))
	}
	res.setRanges(ranges)
	*is = *res
	return
}

// Write stores the binary encoding prefixed with its length
func (is *IndexSet) Write(wr io.Writer) (err error) {
	var data []byte
	if data, err = is.MarshalBinary(); err != nil {
		return
	}
	if err = binary.Write(wr, binary.LittleEndian, int64(len(data))); err != nil {
		return
	}
	_, err = wr.Write(data)
	return
}

func Read(rd io.Reader) (is *IndexSet, err error) {
	var n int64
	if err = binary.Read(rd, binary.LittleEndian, &n); err != nil {
		return
	}
	if n < 0 || n > MaxEncodedLength {
		return nil, fmt.Errorf("%w: length %d", ErrCorrupt, n)
	}
	data := make([]byte, n)
	if _, err = io.ReadFull(rd, data); err != nil {
		return
	}
	is = &IndexSet{}
	if err = is.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return
}

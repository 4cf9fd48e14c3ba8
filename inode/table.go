package inode

import (
	"fmt"
	"time"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-inodefs/common"
)

// Table maps inode numbers to records; a nil slot is unallocated. It does no
// bounds checking beyond what Go's slices do: callers validate numbers.
type Table struct {
	slots []*Inode
}

func MkTable(n uint64) *Table {
	return &Table{slots: make([]*Inode, n)}
}

func (t *Table) Len() uint64 {
	return uint64(len(t.slots))
}

func (t *Table) Get(inum common.Inum) *Inode {
	return t.slots[inum]
}

func (t *Table) Set(inum common.Inum, ip *Inode) {
	t.slots[inum] = ip
}

// Live calls f on every allocated record in inode order.
func (t *Table) Live(f func(ip *Inode)) {
	for _, ip := range t.slots {
		if ip != nil {
			f(ip)
		}
	}
}

// Encoded form:
//   nrecords, then per record:
//   inum kind mode size ctime mtime atime ownerlen owner nblocks blocks...
// All integers are 8 bytes; times are unix nanoseconds.
const recHdr uint64 = 9 * 8

func recordLen(ip *Inode) uint64 {
	return recHdr + uint64(len(ip.Owner)) + 8*ip.NBlocks()
}

// EncodedLen is the number of bytes Encode would produce.
func (t *Table) EncodedLen() uint64 {
	n := uint64(8)
	t.Live(func(ip *Inode) {
		n += recordLen(ip)
	})
	return n
}

// Encode serializes the table into a buffer of exactly sz bytes, zero
// padded. The caller checks EncodedLen() <= sz first.
func (t *Table) Encode(sz uint64) []byte {
	var nrec uint64
	t.Live(func(ip *Inode) { nrec++ })
	enc := marshal.NewEnc(sz)
	enc.PutInt(nrec)
	t.Live(func(ip *Inode) {
		enc.PutInt(uint64(ip.Inum))
		enc.PutInt(uint64(ip.Kind))
		enc.PutInt(ip.Mode)
		enc.PutInt(ip.Size)
		enc.PutInt(uint64(ip.Ctime.UnixNano()))
		enc.PutInt(uint64(ip.Mtime.UnixNano()))
		enc.PutInt(uint64(ip.Atime.UnixNano()))
		enc.PutInt(uint64(len(ip.Owner)))
		enc.PutBytes([]byte(ip.Owner))
		enc.PutInt(ip.NBlocks())
		enc.PutInts(ip.Blocks)
	})
	return enc.Finish()
}

type reader struct {
	dec  marshal.Dec
	left uint64
}

func (r *reader) need(n uint64) error {
	if n > r.left {
		return fmt.Errorf("truncated inode table: %w", common.ErrLoad)
	}
	r.left -= n
	return nil
}

func (r *reader) int() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	return r.dec.GetInt(), nil
}

// DecodeTable parses the first n bytes of data as a table with ninodes slots.
// Records must be in range, unique and of a known kind; each block number
// must be below nblocks. All failures wrap ErrLoad.
func DecodeTable(data []byte, n uint64, ninodes uint64, nblocks uint64) (*Table, error) {
	if n > uint64(len(data)) || n < 8 {
		return nil, fmt.Errorf("table length %d: %w", n, common.ErrLoad)
	}
	r := &reader{dec: marshal.NewDec(data[:n]), left: n}
	t := MkTable(ninodes)
	nrec, _ := r.int()
	if nrec > ninodes {
		return nil, fmt.Errorf("%d records: %w", nrec, common.ErrLoad)
	}
	for i := uint64(0); i < nrec; i++ {
		var h [8]uint64
		for j := range h {
			v, err := r.int()
			if err != nil {
				return nil, err
			}
			h[j] = v
		}
		inum, kind, ownerLen := common.Inum(h[0]), Kind(h[1]), h[7]
		if uint64(inum) >= ninodes || t.slots[inum] != nil {
			return nil, fmt.Errorf("record %d has inode %d: %w", i, inum, common.ErrLoad)
		}
		if kind != KindFile && kind != KindDir {
			return nil, fmt.Errorf("inode %d kind %d: %w", inum, kind, common.ErrLoad)
		}
		if err := r.need(ownerLen); err != nil {
			return nil, err
		}
		owner := string(r.dec.GetBytes(ownerLen))
		nblks, err := r.int()
		if err != nil {
			return nil, err
		}
		if nblks > nblocks {
			return nil, fmt.Errorf("inode %d has %d blocks: %w", inum, nblks, common.ErrLoad)
		}
		if err := r.need(8 * nblks); err != nil {
			return nil, err
		}
		blocks := r.dec.GetInts(nblks)
		if blocks == nil {
			blocks = []common.Bnum{}
		}
		for _, bn := range blocks {
			if bn >= nblocks {
				return nil, fmt.Errorf("inode %d block %d: %w", inum, bn, common.ErrLoad)
			}
		}
		size := h[3]
		if size > nblks*common.BlockSize {
			return nil, fmt.Errorf("inode %d size %d over %d blocks: %w",
				inum, size, nblks, common.ErrLoad)
		}
		t.slots[inum] = &Inode{
			Inum:   inum,
			Kind:   kind,
			Mode:   h[2],
			Owner:  owner,
			Size:   size,
			Blocks: blocks,
			Ctime:  time.Unix(0, int64(h[4])),
			Mtime:  time.Unix(0, int64(h[5])),
			Atime:  time.Unix(0, int64(h[6])),
		}
	}
	return t, nil
}

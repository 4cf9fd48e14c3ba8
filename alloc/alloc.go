package alloc

import (
	"fmt"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/util"
)

// Alloc allocates and frees numbers in [0, max). A bitmap records which
// numbers are in use (bit n set = n allocated) and is what gets persisted; a
// stack of free numbers makes allocation and free O(1). Which free number
// AllocNum returns is unspecified.
type Alloc struct {
	max    uint64
	bitmap []byte
	free   []uint64
	nfree  uint64
}

func popCnt(b byte) uint64 {
	var count uint64
	var x = b
	for i := uint64(0); i < 8; i++ {
		count += uint64(x & 1)
		x = x >> 1
	}
	return count
}

// MkAlloc builds an allocator from a persisted bitmap. Bits at or beyond max
// must be clear.
func MkAlloc(bitmap []byte, max uint64) (*Alloc, error) {
	if uint64(len(bitmap)) != BitmapLen(max) {
		return nil, fmt.Errorf("bitmap of %d bytes for %d numbers: %w",
			len(bitmap), max, common.ErrInvalidIndex)
	}
	a := &Alloc{
		max:    max,
		bitmap: util.CloneByteSlice(bitmap),
	}
	for n := max; n < uint64(len(bitmap))*8; n++ {
		if a.isSet(n) {
			return nil, fmt.Errorf("bit %d set beyond %d: %w",
				n, max, common.ErrInvalidIndex)
		}
	}
	var used uint64
	for _, b := range a.bitmap {
		used += popCnt(b)
	}
	a.nfree = max - used
	// push in reverse so low numbers come out first on a fresh allocator
	for n := max; n > 0; n-- {
		if !a.isSet(n - 1) {
			a.free = append(a.free, n-1)
		}
	}
	return a, nil
}

// MkMaxAlloc returns an allocator with everything in [0, max) free.
func MkMaxAlloc(max uint64) *Alloc {
	a, err := MkAlloc(make([]byte, BitmapLen(max)), max)
	if err != nil {
		panic(err)
	}
	return a
}

func BitmapLen(max uint64) uint64 {
	return util.RoundUp(max, 8)
}

func (a *Alloc) isSet(n uint64) bool {
	return a.bitmap[n/8]&(1<<(n%8)) != 0
}

func (a *Alloc) set(n uint64) {
	a.bitmap[n/8] = a.bitmap[n/8] | (1 << (n % 8))
}

func (a *Alloc) clear(n uint64) {
	a.bitmap[n/8] = a.bitmap[n/8] & ^(1 << (n % 8))
}

// AllocNum removes some free number from the free set and returns it.
func (a *Alloc) AllocNum() (uint64, error) {
	// the stack may hold numbers that MarkUsed took since they were pushed
	for len(a.free) > 0 {
		last := len(a.free) - 1
		num := a.free[last]
		a.free = a.free[:last]
		if !a.isSet(num) {
			a.set(num)
			a.nfree--
			util.DPrintf(15, "AllocNum: %d\n", num)
			return num, nil
		}
	}
	return 0, common.ErrNoSpace
}

// FreeNum returns num to the free set. Freeing a number that is already free
// is a no-op.
func (a *Alloc) FreeNum(num uint64) error {
	if num >= a.max {
		return fmt.Errorf("free %d of %d: %w", num, a.max, common.ErrInvalidIndex)
	}
	if a.isSet(num) {
		a.clear(num)
		a.nfree++
		a.free = append(a.free, num)
	}
	util.DPrintf(15, "FreeNum: %d\n", num)
	return nil
}

// MarkUsed takes num out of the free set without going through AllocNum.
func (a *Alloc) MarkUsed(num uint64) error {
	if num >= a.max {
		return fmt.Errorf("mark %d of %d: %w", num, a.max, common.ErrInvalidIndex)
	}
	if !a.isSet(num) {
		a.set(num)
		a.nfree--
	}
	return nil
}

// IsFree reports whether num is in the free set.
func (a *Alloc) IsFree(num uint64) bool {
	return num < a.max && !a.isSet(num)
}

func (a *Alloc) NumFree() uint64 {
	return a.nfree
}

// Bitmap returns a copy of the allocation bitmap, for persisting.
func (a *Alloc) Bitmap() []byte {
	return util.CloneByteSlice(a.bitmap)
}

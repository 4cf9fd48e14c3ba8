package disk

import (
	"errors"
	"sync"
)

var ErrInjected = errors.New("injected disk fault")

// FaultDisk wraps a Disk and fails selected operations, for exercising
// error paths of layers above.
type FaultDisk struct {
	Disk

	mu         sync.Mutex
	writesLeft int64 // < 0: never fail
	readsLeft  int64
	nwrites    uint64
	nreads     uint64
}

func NewFaultDisk(d Disk) *FaultDisk {
	return &FaultDisk{Disk: d, writesLeft: -1, readsLeft: -1}
}

// FailWritesAfter lets n more writes succeed; every later write fails.
// A negative n disables write faults.
func (d *FaultDisk) FailWritesAfter(n int64) {
	d.mu.Lock()
	d.writesLeft = n
	d.mu.Unlock()
}

// FailReadsAfter is FailWritesAfter for reads.
func (d *FaultDisk) FailReadsAfter(n int64) {
	d.mu.Lock()
	d.readsLeft = n
	d.mu.Unlock()
}

// Counts returns the number of reads and writes that reached the disk.
func (d *FaultDisk) Counts() (reads uint64, writes uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nreads, d.nwrites
}

func consume(left *int64) bool {
	if *left < 0 {
		return true
	}
	if *left == 0 {
		return false
	}
	*left--
	return true
}

func (d *FaultDisk) ReadTo(a uint64, b Block) error {
	d.mu.Lock()
	ok := consume(&d.readsLeft)
	if ok {
		d.nreads++
	}
	d.mu.Unlock()
	if !ok {
		return ErrInjected
	}
	return d.Disk.ReadTo(a, b)
}

func (d *FaultDisk) Read(a uint64) (Block, error) {
	buf := make(Block, BlockSize)
	err := d.ReadTo(a, buf)
	return buf, err
}

func (d *FaultDisk) Write(a uint64, v Block) error {
	d.mu.Lock()
	ok := consume(&d.writesLeft)
	if ok {
		d.nwrites++
	}
	d.mu.Unlock()
	if !ok {
		return ErrInjected
	}
	return d.Disk.Write(a, v)
}

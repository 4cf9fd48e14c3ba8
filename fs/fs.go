// Package fs is the storage engine: it keeps a superblock and an inode table
// in memory, backed by the fixed regions of a single disk image, and stores
// file contents in the image's block-data region.
//
// The image is laid out as
//
//   block 0              superblock
//   blocks 1..32         inode table (MAXINODES*INODESZ bytes)
//   blocks 33..          data blocks, data block b at disk block 33+b
//
// Every operation that changes metadata (including ReadFile, which updates
// the access time) rewrites the superblock and the whole inode table before
// returning. There is no journal: a crash between data writes and the
// metadata write leaves the old metadata in place.
package fs

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/sha256-simd"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/inode"
	"github.com/mit-pdos/go-inodefs/super"
	"github.com/mit-pdos/go-inodefs/util"
)

type FS struct {
	mu     *sync.Mutex
	d      disk.Disk
	sb     *super.Superblock
	inodes *inode.Table
	clock  func() time.Time
}

type config struct {
	nblocks uint64
	clock   func() time.Time
}

type Option func(*config)

// WithBlocks sets the number of data blocks of a new file system. It has no
// effect when loading an existing one.
func WithBlocks(n uint64) Option {
	return func(c *config) { c.nblocks = n }
}

// WithClock replaces time.Now as the source of inode timestamps.
func WithClock(f func() time.Time) Option {
	return func(c *config) { c.clock = f }
}

func mkConfig(opts []Option) *config {
	c := &config{
		nblocks: common.DefaultBlocks,
		clock:   time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open loads the file system in the image at path, or creates a new image
// there if path does not exist.
func Open(path string, opts ...Option) (*FS, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		c := mkConfig(opts)
		if err := checkBlocks(c.nblocks); err != nil {
			return nil, err
		}
		d, err := disk.CreateFileDisk(path, common.DATASTART+c.nblocks)
		if err != nil {
			return nil, err
		}
		fs, err := mk(d, c)
		if err != nil {
			d.Close()
			os.Remove(path)
			return nil, err
		}
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrLoad)
	}
	d, err := disk.OpenFileDisk(path)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrLoad)
	}
	fs, err := load(d, mkConfig(opts))
	if err != nil {
		d.Close()
		return nil, err
	}
	return fs, nil
}

// Mk formats d with a new file system. d must hold at least DATASTART plus
// the configured number of data blocks.
func Mk(d disk.Disk, opts ...Option) (*FS, error) {
	return mk(d, mkConfig(opts))
}

// Load reads back a file system previously written to d.
func Load(d disk.Disk, opts ...Option) (*FS, error) {
	return load(d, mkConfig(opts))
}

// checkBlocks rejects data block counts the superblock cannot describe.
func checkBlocks(nblocks uint64) error {
	if nblocks > super.MaxBlocks || util.SumOverflows(common.DATASTART, nblocks) {
		return fmt.Errorf("%d blocks exceeds %d: %w",
			nblocks, super.MaxBlocks, common.ErrConfig)
	}
	return nil
}

func mk(d disk.Disk, c *config) (*FS, error) {
	if err := checkBlocks(c.nblocks); err != nil {
		return nil, err
	}
	sz, err := d.Size()
	if err != nil {
		return nil, err
	}
	if sz < common.DATASTART+c.nblocks {
		return nil, fmt.Errorf("disk of %d blocks cannot hold %d data blocks: %w",
			sz, c.nblocks, common.ErrConfig)
	}
	sb, err := super.MkSuper(common.MAXINODES, c.nblocks)
	if err != nil {
		return nil, err
	}
	fs := &FS{
		mu:     new(sync.Mutex),
		d:      d,
		sb:     sb,
		inodes: inode.MkTable(common.MAXINODES),
		clock:  c.clock,
	}
	if err := sb.MarkInodeUsed(common.ROOTINUM); err != nil {
		return nil, err
	}
	fs.inodes.Set(common.ROOTINUM,
		inode.MkInode(common.ROOTINUM, inode.KindDir, "root", fs.clock()))

	table := fs.encodeTable()
	if err := fs.writeSuper(); err != nil {
		return nil, err
	}
	if err := d.Barrier(); err != nil {
		return nil, err
	}
	if err := fs.writeTable(table); err != nil {
		return nil, err
	}
	if err := d.Barrier(); err != nil {
		return nil, err
	}
	zero := make(disk.Block, common.BlockSize)
	for bn := uint64(0); bn < c.nblocks; bn++ {
		if err := d.Write(common.DataBlkno(bn), zero); err != nil {
			return nil, &BlockError{Kind: common.ErrWrite, Bnum: bn, Err: err}
		}
	}
	if err := d.Barrier(); err != nil {
		return nil, err
	}
	util.DPrintf(1, "mk: %d data blocks uuid %v\n", c.nblocks, sb.UUID)
	return fs, nil
}

func load(d disk.Disk, c *config) (*FS, error) {
	sz, err := d.Size()
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrLoad)
	}
	if sz < common.DATASTART {
		return nil, fmt.Errorf("image of %d blocks is too small for the inode table: %w",
			sz, common.ErrLoad)
	}
	blk, err := d.Read(common.SUPERBLK)
	if err != nil {
		return nil, fmt.Errorf("read superblock: %v: %w", err, common.ErrLoad)
	}
	sb, err := super.Decode(blk)
	if err != nil {
		return nil, err
	}
	if sb.TableLen > common.InodesLen {
		return nil, fmt.Errorf("inode table length %d: %w", sb.TableLen, common.ErrLoad)
	}
	data := make([]byte, 0, common.InodesLen)
	for i := uint64(0); i < common.NINODEBLKS; i++ {
		blk, err := d.Read(common.INODESTART + i)
		if err != nil {
			return nil, fmt.Errorf("read inode table: %v: %w", err, common.ErrLoad)
		}
		data = append(data, blk...)
	}
	if sha256.Sum256(data[:sb.TableLen]) != sb.TableSum {
		return nil, fmt.Errorf("inode table checksum mismatch: %w", common.ErrLoad)
	}
	inodes, err := inode.DecodeTable(data, sb.TableLen, sb.TotalInodes, sb.TotalBlocks)
	if err != nil {
		return nil, err
	}
	fs := &FS{
		mu:     new(sync.Mutex),
		d:      d,
		sb:     sb,
		inodes: inodes,
		clock:  c.clock,
	}
	if err := fs.check(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrLoad)
	}
	util.DPrintf(1, "load: %d data blocks uuid %v\n", sb.TotalBlocks, sb.UUID)
	return fs, nil
}

func (fs *FS) encodeTable() []byte {
	data := fs.inodes.Encode(common.InodesLen)
	fs.sb.TableLen = fs.inodes.EncodedLen()
	fs.sb.TableSum = sha256.Sum256(data[:fs.sb.TableLen])
	return data
}

func (fs *FS) writeSuper() error {
	if err := fs.d.Write(common.SUPERBLK, fs.sb.Encode()); err != nil {
		return fmt.Errorf("write superblock: %v: %w", err, common.ErrWrite)
	}
	return nil
}

func (fs *FS) writeTable(data []byte) error {
	for i := uint64(0); i < common.NINODEBLKS; i++ {
		blk := data[i*common.BlockSize : (i+1)*common.BlockSize]
		if err := fs.d.Write(common.INODESTART+i, blk); err != nil {
			return fmt.Errorf("write inode table: %v: %w", err, common.ErrWrite)
		}
	}
	return nil
}

// tableFits reports whether the inode table as it stands can be persisted.
func (fs *FS) tableFits() bool {
	return fs.inodes.EncodedLen() <= common.InodesLen
}

// persist rewrites the superblock and inode-table regions. Assumes caller
// holds fs.mu.
func (fs *FS) persist() error {
	if !fs.tableFits() {
		return fmt.Errorf("inode table of %d bytes: %w",
			fs.inodes.EncodedLen(), common.ErrNoSpace)
	}
	data := fs.encodeTable()
	if err := fs.writeSuper(); err != nil {
		return err
	}
	if err := fs.writeTable(data); err != nil {
		return err
	}
	if err := fs.d.Barrier(); err != nil {
		return fmt.Errorf("%v: %w", err, common.ErrWrite)
	}
	util.DPrintf(3, "persist: table %d bytes, %d inodes %d blocks free\n",
		fs.sb.TableLen, fs.sb.NumFreeInodes(), fs.sb.NumFreeBlocks())
	return nil
}

// Sync persists all metadata.
func (fs *FS) Sync() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.persist()
}

// Close syncs and releases the disk. The FS is unusable afterwards.
func (fs *FS) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	err := fs.persist()
	if cerr := fs.d.Close(); err == nil {
		err = cerr
	}
	return err
}

func (fs *FS) UUID() uuid.UUID {
	return fs.sb.UUID
}

func (fs *FS) TotalBlocks() uint64 {
	return fs.sb.TotalBlocks
}

func (fs *FS) NumFreeInodes() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.sb.NumFreeInodes()
}

func (fs *FS) NumFreeBlocks() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.sb.NumFreeBlocks()
}

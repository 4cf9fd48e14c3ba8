package fs

import (
	"fmt"
	"time"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/inode"
	"github.com/mit-pdos/go-inodefs/util"
)

// getInode returns the record for inum, or ErrInvalidInode if inum is out
// of range or unallocated. Assumes caller holds fs.mu.
func (fs *FS) getInode(inum common.Inum) (*inode.Inode, error) {
	if uint64(inum) >= fs.inodes.Len() {
		return nil, fmt.Errorf("inode %d out of range: %w", inum, common.ErrInvalidInode)
	}
	ip := fs.inodes.Get(inum)
	if ip == nil {
		return nil, fmt.Errorf("inode %d not allocated: %w", inum, common.ErrInvalidInode)
	}
	return ip, nil
}

func (fs *FS) getFile(inum common.Inum) (*inode.Inode, error) {
	ip, err := fs.getInode(inum)
	if err != nil {
		return nil, err
	}
	if !ip.IsFile() {
		return nil, fmt.Errorf("inode %d is a %v: %w", inum, ip.Kind, common.ErrNotFile)
	}
	return ip, nil
}

// releaseBlocks truncates ip and returns its blocks to the free set.
func (fs *FS) releaseBlocks(ip *inode.Inode) error {
	for _, bn := range ip.Truncate() {
		if err := fs.sb.FreeBlock(bn); err != nil {
			return err
		}
	}
	return nil
}

// CreateFile allocates a new, empty regular file and returns its inode
// number.
func (fs *FS) CreateFile(owner string) (common.Inum, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	inum, err := fs.sb.AllocInode()
	if err != nil {
		return 0, err
	}
	fs.inodes.Set(inum, inode.MkInode(inum, inode.KindFile, owner, fs.clock()))
	if err := fs.persist(); err != nil {
		fs.inodes.Set(inum, nil)
		fs.sb.FreeInode(inum)
		return 0, err
	}
	util.DPrintf(1, "CreateFile: %d owner %s\n", inum, owner)
	return inum, nil
}

// WriteFile replaces the contents of file inum with data.
//
// The file's old blocks are released before new ones are allocated, so if
// the write fails the file is left empty rather than with its old contents.
// On failure every block allocated by this call is returned to the free set.
func (fs *FS) WriteFile(inum common.Inum, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ip, err := fs.getFile(inum)
	if err != nil {
		return err
	}
	sz := uint64(len(data))
	need := util.RoundUp(sz, common.BlockSize)

	if err := fs.releaseBlocks(ip); err != nil {
		return err
	}

	for i := uint64(0); i < need; i++ {
		bn, err := fs.sb.AllocBlock()
		if err != nil {
			util.DPrintf(3, "WriteFile: %d: out of blocks after %d of %d\n", inum, i, need)
			fs.releaseBlocks(ip)
			return fmt.Errorf("write inode %d: %w", inum, err)
		}
		ip.Blocks = append(ip.Blocks, bn)
	}
	if !fs.tableFits() {
		util.DPrintf(3, "WriteFile: %d: inode table full\n", inum)
		fs.releaseBlocks(ip)
		return fmt.Errorf("write inode %d: inode table full: %w", inum, common.ErrNoSpace)
	}

	for i, bn := range ip.Blocks {
		off := uint64(i) * common.BlockSize
		blk := make(disk.Block, common.BlockSize)
		copy(blk, data[off:util.Min(off+common.BlockSize, sz)])
		err := fs.d.Write(common.DataBlkno(bn), blk)
		if err == nil {
			err = fs.d.Barrier()
		}
		if err != nil {
			util.DPrintf(3, "WriteFile: %d: block %d: %v\n", inum, bn, err)
			fs.releaseBlocks(ip)
			return &BlockError{Kind: common.ErrWrite, Inum: inum, Bnum: bn, Err: err}
		}
		util.DPrintf(5, "WriteFile: %d: block %d <- [%d, %d)\n", inum, bn, off,
			util.Min(off+common.BlockSize, sz))
	}

	now := fs.clock()
	ip.Size = sz
	ip.Mtime = now
	ip.Atime = now
	return fs.persist()
}

// ReadFile returns the contents of file inum and updates its access time.
func (fs *FS) ReadFile(inum common.Inum) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ip, err := fs.getFile(inum)
	if err != nil {
		return nil, err
	}
	if ip.Size == 0 {
		return []byte{}, nil
	}

	data := make([]byte, 0, ip.NBlocks()*common.BlockSize)
	for _, bn := range ip.Blocks {
		blk, err := fs.d.Read(common.DataBlkno(bn))
		if err != nil {
			return nil, &BlockError{Kind: common.ErrRead, Inum: inum, Bnum: bn, Err: err}
		}
		util.DPrintf(5, "ReadFile: %d: block %d\n", inum, bn)
		data = append(data, blk...)
	}
	data = data[:ip.Size]

	ip.Atime = fs.clock()
	if err := fs.persist(); err != nil {
		return nil, err
	}
	return data, nil
}

// RemoveFile frees file inum: its blocks return to the free set along with
// the inode number itself. The root and other directories cannot be removed.
func (fs *FS) RemoveFile(inum common.Inum) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ip, err := fs.getFile(inum)
	if err != nil {
		return err
	}
	if err := fs.releaseBlocks(ip); err != nil {
		return err
	}
	fs.inodes.Set(inum, nil)
	if err := fs.sb.FreeInode(inum); err != nil {
		return err
	}
	util.DPrintf(1, "RemoveFile: %d\n", inum)
	return fs.persist()
}

// Attr is a snapshot of an inode's metadata.
type Attr struct {
	Inum    common.Inum
	Kind    inode.Kind
	Mode    uint64
	Owner   string
	Size    uint64
	NBlocks uint64
	Ctime   time.Time
	Mtime   time.Time
	Atime   time.Time
}

func (fs *FS) Stat(inum common.Inum) (Attr, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ip, err := fs.getInode(inum)
	if err != nil {
		return Attr{}, err
	}
	return Attr{
		Inum:    ip.Inum,
		Kind:    ip.Kind,
		Mode:    ip.Mode,
		Owner:   ip.Owner,
		Size:    ip.Size,
		NBlocks: ip.NBlocks(),
		Ctime:   ip.Ctime,
		Mtime:   ip.Mtime,
		Atime:   ip.Atime,
	}, nil
}

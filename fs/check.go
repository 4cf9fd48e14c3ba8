package fs

import (
	"fmt"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/inode"
)

// Check verifies that the free sets and the inode table partition the inode
// and block numbers: every number is either free or owned by exactly one
// live inode.
func (fs *FS) Check() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.check()
}

func (fs *FS) check() error {
	root := fs.inodes.Get(common.ROOTINUM)
	if root == nil || !root.IsDir() {
		return fmt.Errorf("missing root directory: %w", ErrInconsistent)
	}
	for i := uint64(0); i < fs.sb.TotalInodes; i++ {
		inum := common.Inum(i)
		live := fs.inodes.Get(inum) != nil
		if live == fs.sb.InodeFree(inum) {
			return fmt.Errorf("inode %d live %v free %v: %w",
				inum, live, fs.sb.InodeFree(inum), ErrInconsistent)
		}
	}

	owner := make(map[common.Bnum]common.Inum)
	var err error
	fs.inodes.Live(func(ip *inode.Inode) {
		if err != nil {
			return
		}
		if ip.Size > ip.NBlocks()*common.BlockSize {
			err = fmt.Errorf("inode %d size %d exceeds %d blocks: %w",
				ip.Inum, ip.Size, ip.NBlocks(), ErrInconsistent)
			return
		}
		for _, bn := range ip.Blocks {
			if fs.sb.BlockFree(bn) {
				err = fmt.Errorf("inode %d uses free block %d: %w",
					ip.Inum, bn, ErrInconsistent)
				return
			}
			if other, ok := owner[bn]; ok {
				err = fmt.Errorf("block %d owned by inodes %d and %d: %w",
					bn, other, ip.Inum, ErrInconsistent)
				return
			}
			owner[bn] = ip.Inum
		}
	})
	if err != nil {
		return err
	}
	if used := fs.sb.TotalBlocks - fs.sb.NumFreeBlocks(); used != uint64(len(owner)) {
		return fmt.Errorf("%d blocks allocated but %d owned: %w",
			used, len(owner), ErrInconsistent)
	}
	return nil
}

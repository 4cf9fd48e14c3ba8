package common

import (
	"github.com/tchajed/goose/machine/disk"
)

const (
	BlockSize uint64 = disk.BlockSize
	NBITBLOCK uint64 = BlockSize * 8

	INODESZ   uint64 = 128 // nominal on-disk budget per inode
	MAXINODES uint64 = 1024
	INODEBLK  uint64 = BlockSize / INODESZ

	DefaultBlocks uint64 = 1024
)

// Layout of the backing file, in disk blocks. Every region boundary is a
// multiple of BlockSize, so the image is addressed as a block device.
const (
	SUPERBLK   uint64 = 0
	INODESTART uint64 = SUPERBLK + 1
	NINODEBLKS uint64 = MAXINODES / INODEBLK
	DATASTART  uint64 = INODESTART + NINODEBLKS
)

// Byte offsets of the regions.
const (
	SuperOffset  = SUPERBLK * BlockSize
	InodesOffset = INODESTART * BlockSize
	InodesLen    = MAXINODES * INODESZ
	BlocksOffset = DATASTART * BlockSize
)

type Inum uint64
type Bnum = uint64

const (
	ROOTINUM Inum = 0
)

// DataBlkno maps a data block number to its disk block.
func DataBlkno(bn Bnum) uint64 {
	return DATASTART + bn
}

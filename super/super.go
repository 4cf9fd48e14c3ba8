// Package super holds the superblock: the file system's fixed capacities and
// the free sets of inode and block numbers.
package super

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-inodefs/alloc"
	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/util"
)

const (
	MAGIC   uint64 = 0x696e6f6465667331 // "inodefs1"
	VERSION uint64 = 1

	SUMSZ uint64 = 32

	// magic, version, block size, two totals, two free counts, uuid,
	// table length, table checksum
	HDRSZ uint64 = 7*8 + 16 + 8 + SUMSZ
)

// MaxBlocks is the largest block count whose bitmap fits in the superblock
// next to the inode bitmap.
const MaxBlocks uint64 = (common.BlockSize - HDRSZ - common.MAXINODES/8) * 8

type Superblock struct {
	TotalInodes uint64
	TotalBlocks uint64
	BlockSize   uint64
	UUID        uuid.UUID

	// length and SHA-256 of the encoded inode table last written
	TableLen uint64
	TableSum [SUMSZ]byte

	inodes *alloc.Alloc
	blocks *alloc.Alloc
}

// MkSuper returns a superblock with every inode and block free.
func MkSuper(ninodes uint64, nblocks uint64) (*Superblock, error) {
	if ninodes == 0 || ninodes > common.MAXINODES {
		return nil, fmt.Errorf("%d inodes: %w", ninodes, common.ErrConfig)
	}
	if nblocks > MaxBlocks {
		return nil, fmt.Errorf("%d blocks exceeds %d: %w",
			nblocks, MaxBlocks, common.ErrConfig)
	}
	sb := &Superblock{
		TotalInodes: ninodes,
		TotalBlocks: nblocks,
		BlockSize:   common.BlockSize,
		UUID:        uuid.New(),
		inodes:      alloc.MkMaxAlloc(ninodes),
		blocks:      alloc.MkMaxAlloc(nblocks),
	}
	util.DPrintf(1, "MkSuper: %d inodes %d blocks uuid %v\n", ninodes, nblocks, sb.UUID)
	return sb, nil
}

func (sb *Superblock) AllocInode() (common.Inum, error) {
	n, err := sb.inodes.AllocNum()
	if err != nil {
		return 0, fmt.Errorf("allocate inode: %w", err)
	}
	return common.Inum(n), nil
}

func (sb *Superblock) FreeInode(inum common.Inum) error {
	return sb.inodes.FreeNum(uint64(inum))
}

// MarkInodeUsed reserves a specific inode, such as the root.
func (sb *Superblock) MarkInodeUsed(inum common.Inum) error {
	return sb.inodes.MarkUsed(uint64(inum))
}

func (sb *Superblock) AllocBlock() (common.Bnum, error) {
	n, err := sb.blocks.AllocNum()
	if err != nil {
		return 0, fmt.Errorf("allocate block: %w", err)
	}
	return n, nil
}

func (sb *Superblock) FreeBlock(bn common.Bnum) error {
	return sb.blocks.FreeNum(bn)
}

func (sb *Superblock) InodeFree(inum common.Inum) bool {
	return sb.inodes.IsFree(uint64(inum))
}

func (sb *Superblock) BlockFree(bn common.Bnum) bool {
	return sb.blocks.IsFree(bn)
}

func (sb *Superblock) NumFreeInodes() uint64 {
	return sb.inodes.NumFree()
}

func (sb *Superblock) NumFreeBlocks() uint64 {
	return sb.blocks.NumFree()
}

// Encode lays the superblock out in one disk block.
func (sb *Superblock) Encode() disk.Block {
	enc := marshal.NewEnc(common.BlockSize)
	enc.PutInt(MAGIC)
	enc.PutInt(VERSION)
	enc.PutInt(sb.BlockSize)
	enc.PutInt(sb.TotalInodes)
	enc.PutInt(sb.TotalBlocks)
	enc.PutInt(sb.inodes.NumFree())
	enc.PutInt(sb.blocks.NumFree())
	enc.PutBytes(sb.UUID[:])
	enc.PutInt(sb.TableLen)
	enc.PutBytes(sb.TableSum[:])
	enc.PutBytes(sb.inodes.Bitmap())
	enc.PutBytes(sb.blocks.Bitmap())
	return enc.Finish()
}

// Decode parses and validates a superblock. All failures wrap ErrLoad.
func Decode(blk disk.Block) (*Superblock, error) {
	if uint64(len(blk)) != common.BlockSize {
		return nil, fmt.Errorf("superblock of %d bytes: %w", len(blk), common.ErrLoad)
	}
	dec := marshal.NewDec(blk)
	if m := dec.GetInt(); m != MAGIC {
		return nil, fmt.Errorf("bad magic 0x%x: %w", m, common.ErrLoad)
	}
	if v := dec.GetInt(); v != VERSION {
		return nil, fmt.Errorf("unsupported version %d: %w", v, common.ErrLoad)
	}
	sb := &Superblock{}
	sb.BlockSize = dec.GetInt()
	sb.TotalInodes = dec.GetInt()
	sb.TotalBlocks = dec.GetInt()
	nfreeInodes := dec.GetInt()
	nfreeBlocks := dec.GetInt()
	if sb.BlockSize != common.BlockSize {
		return nil, fmt.Errorf("block size %d: %w", sb.BlockSize, common.ErrLoad)
	}
	if sb.TotalInodes != common.MAXINODES {
		return nil, fmt.Errorf("%d inodes: %w", sb.TotalInodes, common.ErrLoad)
	}
	if sb.TotalBlocks > MaxBlocks {
		return nil, fmt.Errorf("%d blocks: %w", sb.TotalBlocks, common.ErrLoad)
	}
	copy(sb.UUID[:], dec.GetBytes(16))
	sb.TableLen = dec.GetInt()
	copy(sb.TableSum[:], dec.GetBytes(SUMSZ))

	var err error
	sb.inodes, err = alloc.MkAlloc(dec.GetBytes(alloc.BitmapLen(sb.TotalInodes)), sb.TotalInodes)
	if err != nil {
		return nil, fmt.Errorf("inode bitmap: %v: %w", err, common.ErrLoad)
	}
	sb.blocks, err = alloc.MkAlloc(dec.GetBytes(alloc.BitmapLen(sb.TotalBlocks)), sb.TotalBlocks)
	if err != nil {
		return nil, fmt.Errorf("block bitmap: %v: %w", err, common.ErrLoad)
	}
	if sb.inodes.NumFree() != nfreeInodes || sb.blocks.NumFree() != nfreeBlocks {
		return nil, fmt.Errorf("free counts %d/%d disagree with bitmaps: %w",
			nfreeInodes, nfreeBlocks, common.ErrLoad)
	}
	util.DPrintf(1, "Decode: %d inodes (%d free) %d blocks (%d free)\n",
		sb.TotalInodes, nfreeInodes, sb.TotalBlocks, nfreeBlocks)
	return sb, nil
}

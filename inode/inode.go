package inode

import (
	"time"

	"github.com/mit-pdos/go-inodefs/common"
)

type Kind uint64

const (
	KindFile Kind = 1
	KindDir  Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	}
	return "unknown"
}

// Default permission bits per kind; the engine records but does not enforce
// them.
const (
	FileMode uint64 = 0644
	DirMode  uint64 = 0755
)

// Inode describes one file system object. Blocks is ordered: Blocks[i] holds
// bytes [i*BlockSize, (i+1)*BlockSize) of the contents, truncated to Size.
type Inode struct {
	Inum   common.Inum
	Kind   Kind
	Mode   uint64
	Owner  string
	Size   uint64
	Blocks []common.Bnum
	Ctime  time.Time
	Mtime  time.Time
	Atime  time.Time
}

func MkInode(inum common.Inum, kind Kind, owner string, now time.Time) *Inode {
	mode := FileMode
	if kind == KindDir {
		mode = DirMode
	}
	return &Inode{
		Inum:   inum,
		Kind:   kind,
		Mode:   mode,
		Owner:  owner,
		Size:   0,
		Blocks: []common.Bnum{},
		Ctime:  now,
		Mtime:  now,
		Atime:  now,
	}
}

func (ip *Inode) IsFile() bool {
	return ip.Kind == KindFile
}

func (ip *Inode) IsDir() bool {
	return ip.Kind == KindDir
}

func (ip *Inode) NBlocks() uint64 {
	return uint64(len(ip.Blocks))
}

// Truncate drops the block list and size, returning the blocks it held.
func (ip *Inode) Truncate() []common.Bnum {
	blocks := ip.Blocks
	ip.Blocks = []common.Bnum{}
	ip.Size = 0
	return blocks
}

package fs

import (
	"errors"
	"fmt"

	"github.com/mit-pdos/go-inodefs/common"
)

var (
	ErrNoSpace      = common.ErrNoSpace
	ErrInvalidInode = common.ErrInvalidInode
	ErrNotFile      = common.ErrNotFile
	ErrLoad         = common.ErrLoad
	ErrWrite        = common.ErrWrite
	ErrRead         = common.ErrRead
	ErrConfig       = common.ErrConfig

	ErrInconsistent = errors.New("inconsistent file system")
)

// BlockError reports an I/O fault on a data block. It matches Kind
// (ErrRead or ErrWrite) under errors.Is and unwraps to the disk's error.
type BlockError struct {
	Kind error
	Inum common.Inum
	Bnum common.Bnum
	Err  error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("inode %d block %d: %v: %v", e.Inum, e.Bnum, e.Kind, e.Err)
}

func (e *BlockError) Is(target error) bool {
	return target == e.Kind
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

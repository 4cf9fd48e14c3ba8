package common

import "errors"

// Error kinds reported by the engine. Callers match them with errors.Is;
// operations wrap them with context.
var (
	ErrNoSpace      = errors.New("no space left")
	ErrInvalidIndex = errors.New("index out of range")
	ErrInvalidInode = errors.New("invalid inode")
	ErrNotFile      = errors.New("not a regular file")
	ErrLoad         = errors.New("cannot load file system")
	ErrWrite        = errors.New("block write failed")
	ErrRead         = errors.New("block read failed")
	ErrConfig       = errors.New("bad configuration")
)

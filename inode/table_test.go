package inode

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-inodefs/common"
)

func TestMkInode(t *testing.T) {
	assert := assert.New(t)
	now := time.Unix(1000, 5)
	ip := MkInode(3, KindFile, "alice", now)
	assert.True(ip.IsFile())
	assert.Equal(FileMode, ip.Mode)
	assert.Equal(uint64(0), ip.Size)
	assert.Equal(uint64(0), ip.NBlocks())
	assert.Equal(now, ip.Atime)

	d := MkInode(0, KindDir, "root", now)
	assert.True(d.IsDir())
	assert.Equal(DirMode, d.Mode)
	assert.Equal("directory", d.Kind.String())
}

func TestTruncate(t *testing.T) {
	assert := assert.New(t)
	ip := MkInode(1, KindFile, "root", time.Now())
	ip.Blocks = []common.Bnum{4, 9}
	ip.Size = 5000

	old := ip.Truncate()
	assert.Equal([]common.Bnum{4, 9}, old)
	assert.Equal(uint64(0), ip.Size)
	assert.Equal(uint64(0), ip.NBlocks())
	assert.Equal([]common.Bnum{}, ip.Blocks)
}

func TestTableEncodeDecode(t *testing.T) {
	assert := assert.New(t)
	tbl := MkTable(common.MAXINODES)
	now := time.Unix(1600000000, 123456789)
	tbl.Set(0, MkInode(0, KindDir, "root", now))
	f := MkInode(17, KindFile, "bob", now)
	f.Blocks = []common.Bnum{2, 0, 5}
	f.Size = 2*common.BlockSize + 100
	f.Mtime = now.Add(time.Second)
	tbl.Set(17, f)

	n := tbl.EncodedLen()
	assert.Equal(uint64(8+9*8+4+9*8+3+3*8), n)
	data := tbl.Encode(common.InodesLen)
	assert.Equal(common.InodesLen, uint64(len(data)))

	tbl2, err := DecodeTable(data, n, common.MAXINODES, 8)
	require.NoError(t, err)
	assert.Nil(tbl2.Get(1))
	root := tbl2.Get(0)
	require.NotNil(t, root)
	assert.True(root.IsDir())
	assert.Equal("root", root.Owner)
	assert.Equal([]common.Bnum{}, root.Blocks)

	f2 := tbl2.Get(17)
	require.NotNil(t, f2)
	assert.Equal(f.Blocks, f2.Blocks)
	assert.Equal(f.Size, f2.Size)
	assert.Equal("bob", f2.Owner)
	assert.True(f.Ctime.Equal(f2.Ctime))
	assert.True(f.Mtime.Equal(f2.Mtime))

	var live []common.Inum
	tbl2.Live(func(ip *Inode) { live = append(live, ip.Inum) })
	assert.Equal([]common.Inum{0, 17}, live)
}

func TestDecodeTableCorrupt(t *testing.T) {
	tbl := MkTable(common.MAXINODES)
	f := MkInode(5, KindFile, "root", time.Now())
	f.Blocks = []common.Bnum{7}
	f.Size = 10
	tbl.Set(5, f)
	n := tbl.EncodedLen()
	data := tbl.Encode(common.InodesLen)

	_, err := DecodeTable(data, n-1, common.MAXINODES, 8)
	assert.True(t, errors.Is(err, common.ErrLoad), "truncated")

	_, err = DecodeTable(data, n, common.MAXINODES, 7)
	assert.True(t, errors.Is(err, common.ErrLoad), "block out of range")

	_, err = DecodeTable(data, n, 4, 8)
	assert.True(t, errors.Is(err, common.ErrLoad), "inode out of range")

	bad := append([]byte{}, data...)
	bad[8+8] = 9 // kind
	_, err = DecodeTable(bad, n, common.MAXINODES, 8)
	assert.True(t, errors.Is(err, common.ErrLoad), "unknown kind")

	_, err = DecodeTable(data, common.InodesLen+1, common.MAXINODES, 8)
	assert.True(t, errors.Is(err, common.ErrLoad), "length beyond region")
}

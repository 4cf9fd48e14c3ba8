package disk

import (
	"errors"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func data(sz int) []byte {
	d := make([]byte, sz)
	rand.Read(d)
	return d
}

func checkReadWrite(t *testing.T, d Disk) {
	assert := assert.New(t)
	sz, err := d.Size()
	assert.NoError(err)
	assert.Equal(uint64(8), sz)

	b := data(int(BlockSize))
	assert.NoError(d.Write(3, b))
	r, err := d.Read(3)
	assert.NoError(err)
	assert.Equal(b, r)

	r, err = d.Read(4)
	assert.NoError(err)
	assert.Equal(make([]byte, BlockSize), r, "unwritten block should be zero")

	_, err = d.Read(8)
	assert.True(errors.Is(err, ErrBounds))
	assert.True(errors.Is(d.Write(8, b), ErrBounds))
	assert.NoError(d.Barrier())
}

func TestMemDisk(t *testing.T) {
	checkReadWrite(t, NewMemDisk(8))
}

func TestFileDisk(t *testing.T) {
	dir, err := ioutil.TempDir("", "disk")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "img")

	d, err := CreateFileDisk(path, 8)
	require.NoError(t, err)
	checkReadWrite(t, d)
	b, _ := d.Read(3)
	require.NoError(t, d.Close())

	_, err = CreateFileDisk(path, 8)
	assert.Error(t, err, "create should not clobber an existing image")

	d, err = OpenFileDisk(path)
	require.NoError(t, err)
	defer d.Close()
	sz, _ := d.Size()
	assert.Equal(t, uint64(8), sz)
	r, err := d.Read(3)
	assert.NoError(t, err)
	assert.Equal(t, b, r, "contents should survive reopen")
}

func TestCreateFileDiskFailure(t *testing.T) {
	dir, err := ioutil.TempDir("", "disk")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "img")

	// 1<<51 blocks is 1<<63 bytes, which does not fit a file offset
	_, err = CreateFileDisk(path, 1<<51)
	assert.Error(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "failed create should not leave a file")
}

func TestFaultDisk(t *testing.T) {
	assert := assert.New(t)
	d := NewFaultDisk(NewMemDisk(4))
	b := data(int(BlockSize))

	d.FailWritesAfter(1)
	assert.NoError(d.Write(0, b))
	assert.True(errors.Is(d.Write(1, b), ErrInjected))
	d.FailWritesAfter(-1)
	assert.NoError(d.Write(1, b))

	d.FailReadsAfter(0)
	_, err := d.Read(0)
	assert.True(errors.Is(err, ErrInjected))
	d.FailReadsAfter(-1)
	r, err := d.Read(0)
	assert.NoError(err)
	assert.Equal(b, r)

	reads, writes := d.Counts()
	assert.Equal(uint64(1), reads)
	assert.Equal(uint64(2), writes)
}

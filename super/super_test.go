package super

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-inodefs/common"
)

func TestAllocFree(t *testing.T) {
	assert := assert.New(t)
	sb, err := MkSuper(common.MAXINODES, 16)
	require.NoError(t, err)
	assert.Equal(common.MAXINODES, sb.NumFreeInodes())
	assert.Equal(uint64(16), sb.NumFreeBlocks())

	inum, err := sb.AllocInode()
	assert.NoError(err)
	assert.True(uint64(inum) < common.MAXINODES)
	assert.False(sb.InodeFree(inum))
	assert.NoError(sb.FreeInode(inum))
	assert.True(sb.InodeFree(inum))

	bn, err := sb.AllocBlock()
	assert.NoError(err)
	assert.False(sb.BlockFree(bn))
	assert.Equal(uint64(15), sb.NumFreeBlocks())

	assert.True(errors.Is(sb.FreeInode(common.Inum(common.MAXINODES)), common.ErrInvalidIndex))
	assert.True(errors.Is(sb.FreeBlock(16), common.ErrInvalidIndex))
}

func TestExhaustion(t *testing.T) {
	assert := assert.New(t)
	sb, err := MkSuper(4, 3)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := sb.AllocBlock()
		assert.NoError(err)
	}
	_, err = sb.AllocBlock()
	assert.True(errors.Is(err, common.ErrNoSpace))
	assert.Equal(uint64(0), sb.NumFreeBlocks())

	for i := 0; i < 4; i++ {
		_, err := sb.AllocInode()
		assert.NoError(err)
	}
	_, err = sb.AllocInode()
	assert.True(errors.Is(err, common.ErrNoSpace))
	assert.Equal(uint64(0), sb.NumFreeInodes())
}

func TestConfig(t *testing.T) {
	_, err := MkSuper(common.MAXINODES, MaxBlocks+1)
	assert.True(t, errors.Is(err, common.ErrConfig))
	_, err = MkSuper(common.MAXINODES+1, 8)
	assert.True(t, errors.Is(err, common.ErrConfig))
	_, err = MkSuper(common.MAXINODES, MaxBlocks)
	assert.NoError(t, err)
}

func TestEncodeDecode(t *testing.T) {
	assert := assert.New(t)
	sb, err := MkSuper(common.MAXINODES, MaxBlocks)
	require.NoError(t, err)
	require.NoError(t, sb.MarkInodeUsed(common.ROOTINUM))
	var used []common.Bnum
	for i := 0; i < 100; i++ {
		bn, err := sb.AllocBlock()
		require.NoError(t, err)
		used = append(used, bn)
	}
	sb.TableLen = 77
	sb.TableSum[0] = 0xab

	blk := sb.Encode()
	assert.Equal(common.BlockSize, uint64(len(blk)))

	sb2, err := Decode(blk)
	require.NoError(t, err)
	assert.Equal(sb.UUID, sb2.UUID)
	assert.Equal(sb.TotalBlocks, sb2.TotalBlocks)
	assert.Equal(uint64(77), sb2.TableLen)
	assert.Equal(sb.TableSum, sb2.TableSum)
	assert.Equal(sb.NumFreeInodes(), sb2.NumFreeInodes())
	assert.Equal(sb.NumFreeBlocks(), sb2.NumFreeBlocks())
	assert.False(sb2.InodeFree(common.ROOTINUM))
	for _, bn := range used {
		assert.False(sb2.BlockFree(bn))
	}
}

func TestDecodeCorrupt(t *testing.T) {
	sb, err := MkSuper(common.MAXINODES, 64)
	require.NoError(t, err)

	blk := sb.Encode()
	blk[0] ^= 0xff
	_, err = Decode(blk)
	assert.True(t, errors.Is(err, common.ErrLoad), "bad magic")

	blk = sb.Encode()
	blk[5*8] = 1 // free inode count
	_, err = Decode(blk)
	assert.True(t, errors.Is(err, common.ErrLoad), "free count mismatch")

	_, err = Decode(make([]byte, common.BlockSize))
	assert.True(t, errors.Is(err, common.ErrLoad), "zero block")

	_, err = Decode(make([]byte, 10))
	assert.True(t, errors.Is(err, common.ErrLoad), "short block")
}

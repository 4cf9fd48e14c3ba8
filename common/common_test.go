package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayout(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(4096), BlockSize)
	assert.Equal(uint64(32), NINODEBLKS)
	assert.Equal(uint64(33), DATASTART)
	assert.Equal(uint64(4096), InodesOffset)
	assert.Equal(InodesOffset+InodesLen, BlocksOffset, "data follows the inode table")
	assert.Equal(uint64(135168), BlocksOffset)
	assert.Equal(BlocksOffset+7*BlockSize, DataBlkno(7)*BlockSize)
}

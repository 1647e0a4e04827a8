package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrame_NewIsReset(t *testing.T) {
	f := New(3)
	assert.Equal(t, ID(3), f.ID)
	assert.Equal(t, InvalidPageID, f.PageID)
	assert.Equal(t, int64(0), f.PinCount.Load())
	assert.False(t, f.Dirty)
	assert.Len(t, f.Data, PageSize)
}

func TestFrame_ResetClearsData(t *testing.T) {
	f := New(0)
	copy(f.GetDataMut(), []byte("hello"))
	f.PageID = 7
	f.Dirty = true
	f.PinCount.Store(3)

	f.Reset()

	assert.Equal(t, InvalidPageID, f.PageID)
	assert.False(t, f.Dirty)
	assert.Equal(t, int64(0), f.PinCount.Load())
	for _, b := range f.GetData() {
		assert.Equal(t, byte(0), b)
	}
}

package buffer

import (
	"sync/atomic"

	"github.com/loamdb/loam/storage/disk"
)

func (f *frame) pin() {
	f.pins.Add(1)
}

func (f *frame) unpin() int32 {
	return f.pins.Add(-1)
}

func (f *frame) reset() {
	f.dirty = false
	f.pins.Store(0)
	f.pageId = disk.INVALID_PAGE_ID
	clear(f.data)
}

type frame struct {
	id     int
	data   []byte
	pins   atomic.Int32
	dirty  bool
	pageId disk.PageID
}

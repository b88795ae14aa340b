package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/loamdb/loam/storage/disk"
	"github.com/loamdb/loam/util"
)

// Page is a pinned handle over a buffer frame. The handle and its data stay
// valid until the matching UnpinPage call.
type Page struct {
	id    disk.PageID
	frame *frame
}

func (p *Page) PageId() disk.PageID { return p.id }
func (p *Page) Data() []byte        { return p.frame.data }

func NewBufferpoolManager(size int, replacer *lrukReplacer, diskScheduler *disk.DiskScheduler) *BufferpoolManager {
	frames := make([]*frame, size)
	freeFrames := make([]int, size)

	for i := 0; i < size; i++ {
		frames[i] = &frame{
			id:     i,
			data:   make([]byte, disk.PAGE_SIZE),
			pageId: disk.INVALID_PAGE_ID,
		}
		freeFrames[i] = i
	}

	return &BufferpoolManager{
		frames:        frames,
		pageTable:     make(map[disk.PageID]int),
		replacer:      replacer,
		diskScheduler: diskScheduler,
		freeFrames:    freeFrames,
	}
}

// NewPage allocates a fresh page id and returns a pinned handle over a
// zeroed frame. Page id 0 is never handed out; it is reserved for the
// header page.
func (b *BufferpoolManager) NewPage() (*Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pageId := disk.PageID(b.nextPageId.Add(1))
	frame, err := b.acquireFrame(pageId)
	if err != nil {
		return nil, err
	}

	return &Page{id: pageId, frame: frame}, nil
}

// FetchPage returns a pinned handle over the page, loading it from disk if
// it is not resident.
func (b *BufferpoolManager) FetchPage(pageId disk.PageID) (*Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if id, ok := b.pageTable[pageId]; ok {
		frame := b.frames[id]
		frame.pin()
		b.replacer.recordAccess(id)
		b.replacer.setEvictable(id, false)

		return &Page{id: pageId, frame: frame}, nil
	}

	frame, err := b.acquireFrame(pageId)
	if err != nil {
		return nil, err
	}

	resp := <-b.diskScheduler.Schedule(disk.NewReadRequest(pageId))
	if !resp.Success {
		b.releaseFrame(frame)
		return nil, errors.Errorf("reading page %d from disk failed", pageId)
	}
	copy(frame.data, resp.Data)

	return &Page{id: pageId, frame: frame}, nil
}

// UnpinPage releases one pin. Exactly one call per pin; dirty pages are
// flushed when their frame is evicted.
func (b *BufferpoolManager) UnpinPage(pageId disk.PageID, dirty bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.pageTable[pageId]
	if !ok {
		return errors.Errorf("unpinning page %d which is not resident", pageId)
	}

	frame := b.frames[id]
	if frame.pins.Load() <= 0 {
		return errors.Errorf("unpinning page %d which is not pinned", pageId)
	}

	frame.dirty = frame.dirty || dirty
	if frame.unpin() == 0 {
		b.replacer.setEvictable(frame.id, true)
	}

	return nil
}

// DeletePage drops an unpinned page from the pool and frees its disk slot.
func (b *BufferpoolManager) DeletePage(pageId disk.PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if id, ok := b.pageTable[pageId]; ok {
		frame := b.frames[id]
		if frame.pins.Load() > 0 {
			return errors.Errorf("deleting page %d which is still pinned", pageId)
		}

		if err := b.replacer.remove(frame.id); err != nil {
			return err
		}

		delete(b.pageTable, pageId)
		frame.reset()
		b.freeFrames = append(b.freeFrames, frame.id)
	}

	resp := <-b.diskScheduler.Schedule(disk.NewDeleteRequest(pageId))
	if !resp.Success {
		return errors.Errorf("deleting page %d from disk failed", pageId)
	}

	return nil
}

// FlushPage writes the page through to disk immediately.
func (b *BufferpoolManager) FlushPage(pageId disk.PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.pageTable[pageId]
	if !ok {
		return errors.Errorf("flushing page %d which is not resident", pageId)
	}

	frame := b.frames[id]
	frame.dirty = true
	b.flush(frame)

	return nil
}

// PinCount reports the pin count of a resident page, or 0 when the page is
// not in the pool.
func (b *BufferpoolManager) PinCount(pageId disk.PageID) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if id, ok := b.pageTable[pageId]; ok {
		return int(b.frames[id].pins.Load())
	}

	return 0
}

// PinnedFrames reports how many frames currently hold a pin.
func (b *BufferpoolManager) PinnedFrames() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	pinned := 0
	for _, frame := range b.frames {
		if frame.pins.Load() > 0 {
			pinned++
		}
	}

	return pinned
}

// acquireFrame claims a frame for pageId, evicting if the free list is
// empty. Fails with ErrBufferPoolFull when every frame is pinned; blocking
// here would deadlock a caller whose own pins exhausted the pool.
func (b *BufferpoolManager) acquireFrame(pageId disk.PageID) (*frame, error) {
	var frame *frame

	if len(b.freeFrames) > 0 {
		id := b.freeFrames[0]
		b.freeFrames = b.freeFrames[1:]
		frame = b.frames[id]
	} else {
		id, err := b.replacer.evict()
		if err != nil {
			return nil, err
		}
		if id == INVALID_FRAME_ID {
			logrus.WithField("pageId", pageId).Warn("bufferpool exhausted, all frames pinned")
			return nil, util.ErrBufferPoolFull
		}

		frame = b.frames[id]
		b.flush(frame)
		delete(b.pageTable, frame.pageId)
	}

	frame.reset()
	frame.pageId = pageId
	frame.pin()

	b.pageTable[pageId] = frame.id
	b.replacer.recordAccess(frame.id)
	b.replacer.setEvictable(frame.id, false)

	return frame, nil
}

func (b *BufferpoolManager) releaseFrame(frame *frame) {
	delete(b.pageTable, frame.pageId)
	b.replacer.setEvictable(frame.id, true)
	if err := b.replacer.remove(frame.id); err == nil {
		frame.reset()
		b.freeFrames = append(b.freeFrames, frame.id)
	}
}

func (b *BufferpoolManager) flush(frame *frame) {
	if frame.dirty {
		// block until the data is on disk
		<-b.diskScheduler.Schedule(disk.NewWriteRequest(frame.pageId, frame.data))
		frame.dirty = false
	}
}

type BufferpoolManager struct {
	mu            sync.Mutex
	frames        []*frame
	pageTable     map[disk.PageID]int
	nextPageId    atomic.Int64
	diskScheduler *disk.DiskScheduler
	replacer      *lrukReplacer
	freeFrames    []int
}

package disk

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

const PAGE_SIZE = 4096
const DEFAULT_PAGE_CAPACITY = 16

// PageID is the stable identifier of a page in the db file.
type PageID int32

const INVALID_PAGE_ID PageID = -1

func NewManager(file *os.File) *diskManager {
	return &diskManager{
		dbFile:       file,
		pageCapacity: DEFAULT_PAGE_CAPACITY,
		freeSlots:    []int64{},
		pages:        map[PageID]int64{},
	}
}

func (dm *diskManager) writePage(pageId PageID, data []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset, ok := dm.pages[pageId]
	if !ok {
		var err error
		offset, err = dm.allocatePage()
		if err != nil {
			return err
		}
		dm.pages[pageId] = offset
	}

	if _, err := dm.dbFile.WriteAt(data, offset); err != nil {
		return errors.Wrapf(err, "writing page %d at offset %d", pageId, offset)
	}

	return nil
}

func (dm *diskManager) readPage(pageId PageID) ([]byte, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset, ok := dm.pages[pageId]
	if !ok {
		var err error
		offset, err = dm.allocatePage()
		if err != nil {
			return nil, err
		}
		dm.pages[pageId] = offset
	}

	buf := make([]byte, PAGE_SIZE)
	if _, err := dm.dbFile.ReadAt(buf, offset); err != nil {
		return nil, errors.Wrapf(err, "reading page %d from offset %d", pageId, offset)
	}

	return buf, nil
}

func (dm *diskManager) deletePage(pageId PageID) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if offset, ok := dm.pages[pageId]; ok {
		dm.freeSlots = append(dm.freeSlots, offset)
		delete(dm.pages, pageId)
	}
}

// allocatePage hands out a free slot if one exists, otherwise the next
// unused offset, doubling the file when it runs out of room.
func (dm *diskManager) allocatePage() (int64, error) {
	if len(dm.freeSlots) > 0 {
		offset := dm.freeSlots[0]
		dm.freeSlots = dm.freeSlots[1:]

		return offset, nil
	}

	offset := dm.nextOffset
	if offset+PAGE_SIZE > int64(dm.pageCapacity)*PAGE_SIZE {
		dm.pageCapacity *= 2
		if err := os.Truncate(dm.dbFile.Name(), int64(dm.pageCapacity)*PAGE_SIZE); err != nil {
			return -1, errors.Wrap(err, "resizing db file")
		}
	}

	dm.nextOffset += PAGE_SIZE
	return offset, nil
}

type diskManager struct {
	mu           sync.Mutex
	dbFile       *os.File
	pages        map[PageID]int64
	freeSlots    []int64
	nextOffset   int64
	pageCapacity int
}

package index

import "github.com/loamdb/loam/storage/disk"

// pageHeader is the metadata common to both page kinds. It is embedded in
// the leaf and internal layouts and serialized inline with them.
type pageHeader struct {
	PageId   disk.PageID
	Parent   disk.PageID
	PageType PAGE_TYPE
	Size     int32
	MaxSize  int32
}

func (h *pageHeader) getSize() int {
	return int(h.Size)
}

func (h *pageHeader) getMaxSize() int {
	return int(h.MaxSize)
}

// getMinSize is the occupancy floor for non-root pages.
func (h *pageHeader) getMinSize() int {
	return (int(h.MaxSize) + 1) / 2
}

func (h *pageHeader) isLeafPage() bool {
	return h.PageType == LEAF_PAGE
}

func (h *pageHeader) isRootPage() bool {
	return h.Parent == disk.INVALID_PAGE_ID
}

package index

import (
	"github.com/loamdb/loam/storage/disk"
	"github.com/loamdb/loam/util"
)

// headerPage is the catalog page at HEADER_PAGE_ID. It maps index names to
// their root page ids so a tree can be reattached by name against a live
// pool.
type headerPage struct {
	Records map[string]disk.PageID
}

// loadHeaderPage materializes the catalog. A freshly formatted file decodes
// as garbage or with a nil record map; both mean an empty catalog.
func loadHeaderPage(data []byte) headerPage {
	header, err := util.ToStruct[headerPage](data)
	if err != nil || header.Records == nil {
		return headerPage{Records: map[string]disk.PageID{}}
	}

	return header
}

func (h *headerPage) getRecord(name string) (disk.PageID, bool) {
	pid, ok := h.Records[name]
	return pid, ok
}

// insertRecord adds a record for a name the catalog has not seen. Returns
// false when the name already has one.
func (h *headerPage) insertRecord(name string, pageId disk.PageID) bool {
	if _, ok := h.Records[name]; ok {
		return false
	}

	h.Records[name] = pageId
	return true
}

// updateRecord rewrites the record of a known name. Returns false when the
// name has no record yet.
func (h *headerPage) updateRecord(name string, pageId disk.PageID) bool {
	if _, ok := h.Records[name]; !ok {
		return false
	}

	h.Records[name] = pageId
	return true
}

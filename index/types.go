package index

import "github.com/loamdb/loam/storage/disk"

type PAGE_TYPE = int

const (
	INVALID_PAGE PAGE_TYPE = iota
	INTERNAL_PAGE
	LEAF_PAGE
)

// HEADER_PAGE_ID is the well-known catalog page holding (index name, root
// page id) records.
const HEADER_PAGE_ID disk.PageID = 0

// Comparator defines the total order over keys: negative when a < b, zero
// when equal, positive when a > b. It must be safe to call from multiple
// goroutines without coordination.
type Comparator[K any] func(a, b K) int

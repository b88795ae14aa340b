package index

import (
	"fmt"
	"strings"

	"github.com/loamdb/loam/storage/disk"
)

// String renders the tree page by page. Debugging aid only; it walks every
// page in the tree.
func (b *BplusTree[K, V]) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rootPageId == disk.INVALID_PAGE_ID {
		return "<empty tree>"
	}

	var sb strings.Builder
	b.dump(&sb, b.rootPageId, 0)
	return sb.String()
}

func (b *BplusTree[K, V]) dump(sb *strings.Builder, pageId disk.PageID, depth int) {
	indent := strings.Repeat("  ", depth)

	page, err := b.bpm.FetchPage(pageId)
	if err != nil {
		fmt.Fprintf(sb, "%s<unreadable page %d: %v>\n", indent, pageId, err)
		return
	}

	node, _, err := b.loadNode(page)
	if err != nil {
		fmt.Fprintf(sb, "%s<undecodable page %d: %v>\n", indent, pageId, err)
		_ = b.bpm.UnpinPage(pageId, false)
		return
	}

	switch n := node.(type) {
	case *leafPage[K, V]:
		fmt.Fprintf(sb, "%sleaf %d parent=%d next=%d keys=%v\n", indent, n.PageId, n.Parent, n.Next, n.Keys)
	case *internalPage[K]:
		fmt.Fprintf(sb, "%sinternal %d parent=%d keys=%v children=%v\n",
			indent, n.PageId, n.Parent, n.Keys[1:n.getSize()], n.Children[:n.getSize()])
	}

	_ = b.bpm.UnpinPage(pageId, false)

	if n, ok := node.(*internalPage[K]); ok {
		for _, child := range n.Children[:n.getSize()] {
			b.dump(sb, child, depth+1)
		}
	}
}

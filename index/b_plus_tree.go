package index

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/loamdb/loam/buffer"
	"github.com/loamdb/loam/storage/disk"
	"github.com/loamdb/loam/util"
)

var log = logrus.WithField("component", "index")

// BplusTree maps fixed-order keys to record identifiers through pages owned
// by the buffer pool. All public operations run under one tree-wide lock;
// the tree holds no page pins across public calls.
type BplusTree[K comparable, V any] struct {
	mu          sync.Mutex
	indexName   string
	bpm         *buffer.BufferpoolManager
	cmp         Comparator[K]
	rootPageId  disk.PageID
	leafMax     int
	internalMax int
}

func NewBplusTree[K comparable, V any](name string, bpm *buffer.BufferpoolManager, cmp Comparator[K], leafMax, internalMax int) (*BplusTree[K, V], error) {
	if leafMax < 3 || internalMax < 3 {
		return nil, errors.Errorf("max sizes must be at least 3, got leaf %d internal %d", leafMax, internalMax)
	}

	page, err := bpm.FetchPage(HEADER_PAGE_ID)
	if err != nil {
		return nil, errors.Wrap(err, "reading header page")
	}

	header := loadHeaderPage(page.Data())
	root := disk.INVALID_PAGE_ID
	if pid, ok := header.getRecord(name); ok {
		root = pid
	}

	if err := bpm.UnpinPage(HEADER_PAGE_ID, false); err != nil {
		return nil, err
	}

	return &BplusTree[K, V]{
		indexName:   name,
		bpm:         bpm,
		cmp:         cmp,
		rootPageId:  root,
		leafMax:     leafMax,
		internalMax: internalMax,
	}, nil
}

func (b *BplusTree[K, V]) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.rootPageId == disk.INVALID_PAGE_ID
}

// GetValue is a point query. The second result reports whether the key was
// present.
func (b *BplusTree[K, V]) GetValue(key K) (V, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var missing V
	if b.rootPageId == disk.INVALID_PAGE_ID {
		return missing, false, nil
	}

	page, leaf, err := b.findLeaf(key, false)
	if err != nil {
		return missing, false, err
	}

	value, found := leaf.lookup(key, b.cmp)
	if err := b.bpm.UnpinPage(page.PageId(), false); err != nil {
		return missing, false, err
	}

	return value, found, nil
}

// Insert adds the pair, splitting pages as needed. Returns false when the
// key is already present; the index holds unique keys only.
func (b *BplusTree[K, V]) Insert(key K, value V) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rootPageId == disk.INVALID_PAGE_ID {
		if err := b.startNewTree(key, value); err != nil {
			return false, err
		}
		return true, nil
	}

	return b.insertIntoLeaf(key, value)
}

// Remove deletes the pair for key, merging or redistributing pages as
// needed. Removing an absent key is a no-op.
func (b *BplusTree[K, V]) Remove(key K) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rootPageId == disk.INVALID_PAGE_ID {
		return nil
	}

	page, leaf, err := b.findLeaf(key, false)
	if err != nil {
		return err
	}

	if _, found := leaf.lookup(key, b.cmp); !found {
		return b.bpm.UnpinPage(page.PageId(), false)
	}

	return b.deleteEntry(page, leaf, key)
}

// findLeaf walks from the root to the leaf covering key, or the left-most
// leaf when leftMost is set. Interior pages are unpinned clean as soon as
// the next child is chosen; the returned leaf stays pinned for the caller.
func (b *BplusTree[K, V]) findLeaf(key K, leftMost bool) (*buffer.Page, *leafPage[K, V], error) {
	pageId := b.rootPageId

	for {
		page, err := b.bpm.FetchPage(pageId)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "fetching page %d", pageId)
		}

		// an internal decode of a leaf page still yields the header, which
		// is all we need to tell the kinds apart
		node, err := util.ToStruct[internalPage[K]](page.Data())
		if err != nil {
			_ = b.bpm.UnpinPage(pageId, false)
			return nil, nil, err
		}

		if node.isLeafPage() {
			leaf, err := util.ToStruct[leafPage[K, V]](page.Data())
			if err != nil {
				_ = b.bpm.UnpinPage(pageId, false)
				return nil, nil, err
			}
			return page, &leaf, nil
		}

		next := node.valueAt(0)
		if !leftMost {
			next = node.lookup(key, b.cmp)
		}

		if err := b.bpm.UnpinPage(pageId, false); err != nil {
			return nil, nil, err
		}
		pageId = next
	}
}

func (b *BplusTree[K, V]) startNewTree(key K, value V) error {
	page, err := b.bpm.NewPage()
	if err != nil {
		return errors.Wrap(err, "allocating root leaf")
	}

	leaf := &leafPage[K, V]{}
	leaf.init(page.PageId(), disk.INVALID_PAGE_ID, b.leafMax)
	leaf.insert(key, value, b.cmp)

	if err := b.syncPage(page, leaf); err != nil {
		b.discardPage(page.PageId())
		return err
	}
	if err := b.setRootPageId(page.PageId()); err != nil {
		b.discardPage(page.PageId())
		return err
	}

	return b.bpm.UnpinPage(page.PageId(), true)
}

func (b *BplusTree[K, V]) insertIntoLeaf(key K, value V) (bool, error) {
	page, leaf, err := b.findLeaf(key, false)
	if err != nil {
		return false, err
	}

	oldSize := leaf.getSize()
	if leaf.insert(key, value, b.cmp) == oldSize {
		log.WithField("index", b.indexName).Warn("rejected duplicate key")
		if err := b.bpm.UnpinPage(page.PageId(), false); err != nil {
			return false, err
		}
		return false, nil
	}

	if leaf.getSize() >= leaf.getMaxSize() {
		if err := b.split(page, leaf); err != nil {
			_ = b.bpm.UnpinPage(page.PageId(), true)
			return false, err
		}
		return true, b.bpm.UnpinPage(page.PageId(), true)
	}

	if err := b.syncPage(page, leaf); err != nil {
		_ = b.bpm.UnpinPage(page.PageId(), true)
		return false, err
	}

	return true, b.bpm.UnpinPage(page.PageId(), true)
}

// split carves the upper half of a full node into a fresh sibling and
// registers the separator with the parent. The caller keeps ownership of
// node's pin; split syncs node's bytes before returning.
func (b *BplusTree[K, V]) split(page *buffer.Page, node any) error {
	rightPage, err := b.bpm.NewPage()
	if err != nil {
		return errors.Wrap(err, "allocating split sibling")
	}

	var separator K
	var right any
	var oldHdr, rightHdr *pageHeader

	switch n := node.(type) {
	case *leafPage[K, V]:
		if n.getSize() != n.getMaxSize() {
			panic(fmt.Sprintf("splitting leaf %d at size %d of %d", n.PageId, n.getSize(), n.getMaxSize()))
		}

		sibling := &leafPage[K, V]{}
		sibling.init(rightPage.PageId(), n.Parent, int(n.MaxSize))
		n.moveHalfTo(sibling)
		separator = sibling.keyAt(0)
		right, oldHdr, rightHdr = sibling, &n.pageHeader, &sibling.pageHeader

	case *internalPage[K]:
		if n.getSize() != n.getMaxSize() {
			panic(fmt.Sprintf("splitting internal %d at size %d of %d", n.PageId, n.getSize(), n.getMaxSize()))
		}

		sibling := &internalPage[K]{}
		sibling.init(rightPage.PageId(), n.Parent, int(n.MaxSize))
		if err := n.moveHalfTo(sibling, b.reparent); err != nil {
			b.discardPage(rightPage.PageId())
			return err
		}
		// the pivot rode along in the sibling's slot 0; read it once as the
		// separator, undefined afterwards
		separator = sibling.keyAt(0)
		right, oldHdr, rightHdr = sibling, &n.pageHeader, &sibling.pageHeader

	default:
		panic("splitting an unknown page kind")
	}

	// a cascading parent split reparents children through their page bytes,
	// so both pages are written out before the link is made
	wasRoot := oldHdr.isRootPage()
	err = b.syncPage(page, node)
	if err == nil {
		err = b.syncPage(rightPage, right)
	}
	if err != nil {
		_ = b.bpm.UnpinPage(rightPage.PageId(), true)
		return err
	}

	if err := b.insertIntoParent(oldHdr, separator, rightHdr); err != nil {
		_ = b.bpm.UnpinPage(rightPage.PageId(), true)
		return err
	}

	// only a new root links the pair through the structs; otherwise the
	// page bytes hold the latest parent pointers
	if !wasRoot {
		return b.bpm.UnpinPage(rightPage.PageId(), true)
	}

	if err := b.syncPage(page, node); err != nil {
		_ = b.bpm.UnpinPage(rightPage.PageId(), true)
		return err
	}
	if err := b.syncPage(rightPage, right); err != nil {
		_ = b.bpm.UnpinPage(rightPage.PageId(), true)
		return err
	}

	return b.bpm.UnpinPage(rightPage.PageId(), true)
}

func (b *BplusTree[K, V]) insertIntoParent(old *pageHeader, separator K, right *pageHeader) error {
	if old.isRootPage() {
		rootPage, err := b.bpm.NewPage()
		if err != nil {
			return errors.Wrap(err, "allocating new root")
		}

		root := &internalPage[K]{}
		root.init(rootPage.PageId(), disk.INVALID_PAGE_ID, b.internalMax)
		root.populateNewRoot(old.PageId, separator, right.PageId)
		old.Parent = rootPage.PageId()
		right.Parent = rootPage.PageId()

		if err := b.syncPage(rootPage, root); err != nil {
			b.discardPage(rootPage.PageId())
			return err
		}
		if err := b.setRootPageId(rootPage.PageId()); err != nil {
			b.discardPage(rootPage.PageId())
			return err
		}

		return b.bpm.UnpinPage(rootPage.PageId(), true)
	}

	parentPage, err := b.bpm.FetchPage(old.Parent)
	if err != nil {
		return errors.Wrapf(err, "fetching parent %d", old.Parent)
	}

	parent, err := util.ToStruct[internalPage[K]](parentPage.Data())
	if err != nil {
		_ = b.bpm.UnpinPage(parentPage.PageId(), false)
		return err
	}

	parent.insertNodeAfter(old.PageId, separator, right.PageId)

	if parent.getSize() >= parent.getMaxSize() {
		if err := b.split(parentPage, &parent); err != nil {
			_ = b.bpm.UnpinPage(parentPage.PageId(), true)
			return err
		}
		return b.bpm.UnpinPage(parentPage.PageId(), true)
	}

	if err := b.syncPage(parentPage, &parent); err != nil {
		_ = b.bpm.UnpinPage(parentPage.PageId(), true)
		return err
	}

	return b.bpm.UnpinPage(parentPage.PageId(), true)
}

// deleteEntry removes key's slot from node and restores occupancy bottom-up.
// It consumes the caller's pin on page in every path.
func (b *BplusTree[K, V]) deleteEntry(page *buffer.Page, node any, key K) error {
	switch n := node.(type) {
	case *leafPage[K, V]:
		n.remove(key, b.cmp)
	case *internalPage[K]:
		child := n.lookup(key, b.cmp)
		n.remove(n.valueIndex(child))
	}
	hdr := b.headerOf(node)

	if hdr.isRootPage() {
		collapsed, err := b.adjustRoot(node)
		if err != nil {
			_ = b.syncPage(page, node)
			_ = b.bpm.UnpinPage(hdr.PageId, true)
			return err
		}

		if err := b.syncPage(page, node); err != nil {
			_ = b.bpm.UnpinPage(hdr.PageId, true)
			return err
		}
		if err := b.bpm.UnpinPage(hdr.PageId, true); err != nil {
			return err
		}

		if collapsed {
			return b.bpm.DeletePage(hdr.PageId)
		}
		return nil
	}

	if hdr.getSize() >= hdr.getMinSize() {
		if err := b.syncPage(page, node); err != nil {
			_ = b.bpm.UnpinPage(hdr.PageId, true)
			return err
		}
		return b.bpm.UnpinPage(hdr.PageId, true)
	}

	// underflow: pull the parent to pick a sibling, then merge or borrow
	parentPage, err := b.bpm.FetchPage(hdr.Parent)
	if err != nil {
		_ = b.syncPage(page, node)
		_ = b.bpm.UnpinPage(hdr.PageId, true)
		return errors.Wrapf(err, "fetching parent %d", hdr.Parent)
	}

	parent, err := util.ToStruct[internalPage[K]](parentPage.Data())
	if err != nil {
		_ = b.bpm.UnpinPage(parentPage.PageId(), false)
		_ = b.syncPage(page, node)
		_ = b.bpm.UnpinPage(hdr.PageId, true)
		return err
	}

	idx := parent.valueIndex(hdr.PageId)
	siblingIdx := idx - 1
	if idx == 0 {
		siblingIdx = 1
	}
	middleIdx := max(idx, siblingIdx)
	middleKey := parent.keyAt(middleIdx)

	siblingPage, err := b.bpm.FetchPage(parent.valueAt(siblingIdx))
	if err != nil {
		_ = b.bpm.UnpinPage(parentPage.PageId(), false)
		_ = b.syncPage(page, node)
		_ = b.bpm.UnpinPage(hdr.PageId, true)
		return errors.Wrapf(err, "fetching sibling %d", parent.valueAt(siblingIdx))
	}

	sibling, siblingHdr, err := b.loadNode(siblingPage)
	if err != nil {
		_ = b.bpm.UnpinPage(siblingPage.PageId(), false)
		_ = b.bpm.UnpinPage(parentPage.PageId(), false)
		_ = b.syncPage(page, node)
		_ = b.bpm.UnpinPage(hdr.PageId, true)
		return err
	}

	// a merged node must stay below max size so the next insertion into it
	// does not overflow; at exactly max the pair can only redistribute
	if hdr.getSize()+siblingHdr.getSize() < hdr.getMaxSize() {
		dstPage, dst, srcPage, src := page, node, siblingPage, sibling
		if idx > siblingIdx {
			dstPage, dst, srcPage, src = siblingPage, sibling, page, node
		}

		var moveErr error
		switch s := src.(type) {
		case *leafPage[K, V]:
			s.moveAllTo(dst.(*leafPage[K, V]))
		case *internalPage[K]:
			moveErr = s.moveAllTo(dst.(*internalPage[K]), middleKey, b.reparent)
		}
		if moveErr == nil {
			moveErr = b.syncPage(dstPage, dst)
		}
		if moveErr != nil {
			_ = b.bpm.UnpinPage(dstPage.PageId(), true)
			_ = b.bpm.UnpinPage(srcPage.PageId(), true)
			_ = b.bpm.UnpinPage(parentPage.PageId(), false)
			return moveErr
		}

		if err := b.bpm.UnpinPage(dstPage.PageId(), true); err != nil {
			return err
		}

		srcId := b.headerOf(src).PageId
		if err := b.bpm.UnpinPage(srcId, true); err != nil {
			return err
		}
		if err := b.bpm.DeletePage(srcId); err != nil {
			return err
		}

		// drop the separator that pointed at the emptied node
		return b.deleteEntry(parentPage, &parent, middleKey)
	}

	// borrow one pair across the separator and rewrite it
	var borrowErr error
	if siblingIdx < idx {
		switch s := sibling.(type) {
		case *leafPage[K, V]:
			dst := node.(*leafPage[K, V])
			s.moveLastToFrontOf(dst)
			parent.setKeyAt(middleIdx, dst.keyAt(0))
		case *internalPage[K]:
			var newSeparator K
			newSeparator, borrowErr = s.moveLastToFrontOf(node.(*internalPage[K]), middleKey, b.reparent)
			if borrowErr == nil {
				parent.setKeyAt(middleIdx, newSeparator)
			}
		}
	} else {
		switch s := sibling.(type) {
		case *leafPage[K, V]:
			s.moveFirstToEndOf(node.(*leafPage[K, V]))
			parent.setKeyAt(middleIdx, s.keyAt(0))
		case *internalPage[K]:
			var newSeparator K
			newSeparator, borrowErr = s.moveFirstToEndOf(node.(*internalPage[K]), middleKey, b.reparent)
			if borrowErr == nil {
				parent.setKeyAt(middleIdx, newSeparator)
			}
		}
	}

	if borrowErr == nil {
		borrowErr = b.syncPage(page, node)
	}
	if borrowErr == nil {
		borrowErr = b.syncPage(siblingPage, sibling)
	}
	if borrowErr == nil {
		borrowErr = b.syncPage(parentPage, &parent)
	}

	if err := b.bpm.UnpinPage(page.PageId(), true); err != nil && borrowErr == nil {
		borrowErr = err
	}
	if err := b.bpm.UnpinPage(siblingPage.PageId(), true); err != nil && borrowErr == nil {
		borrowErr = err
	}
	if err := b.bpm.UnpinPage(parentPage.PageId(), true); err != nil && borrowErr == nil {
		borrowErr = err
	}

	return borrowErr
}

// adjustRoot handles the two collapse cases: an internal root left with a
// single child promotes that child, and an empty leaf root empties the
// tree. Reports whether the old root page should be deleted.
func (b *BplusTree[K, V]) adjustRoot(node any) (bool, error) {
	switch n := node.(type) {
	case *internalPage[K]:
		if n.getSize() > 1 {
			return false, nil
		}

		childId := n.valueAt(0)
		childPage, err := b.bpm.FetchPage(childId)
		if err != nil {
			return false, err
		}

		child, childHdr, err := b.loadNode(childPage)
		if err != nil {
			_ = b.bpm.UnpinPage(childId, false)
			return false, err
		}

		childHdr.Parent = disk.INVALID_PAGE_ID
		if err := b.syncPage(childPage, child); err != nil {
			_ = b.bpm.UnpinPage(childId, true)
			return false, err
		}
		if err := b.setRootPageId(childId); err != nil {
			_ = b.bpm.UnpinPage(childId, true)
			return false, err
		}

		return true, b.bpm.UnpinPage(childId, true)

	case *leafPage[K, V]:
		if n.getSize() > 0 {
			return false, nil
		}

		if err := b.setRootPageId(disk.INVALID_PAGE_ID); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

// setRootPageId keeps the in-memory root and the catalog record in
// lockstep. The catalog write happens before any page that could be used
// to reach the new root is unpinned.
func (b *BplusTree[K, V]) setRootPageId(pageId disk.PageID) error {
	b.rootPageId = pageId

	page, err := b.bpm.FetchPage(HEADER_PAGE_ID)
	if err != nil {
		return errors.Wrap(err, "fetching header page")
	}

	header := loadHeaderPage(page.Data())
	if !header.updateRecord(b.indexName, pageId) {
		header.insertRecord(b.indexName, pageId)
	}

	if err := b.syncPage(page, &header); err != nil {
		_ = b.bpm.UnpinPage(HEADER_PAGE_ID, false)
		return err
	}

	log.WithFields(logrus.Fields{"index": b.indexName, "rootPageId": pageId}).Debug("published root page id")
	return b.bpm.UnpinPage(HEADER_PAGE_ID, true)
}

// reparent rewrites a child page's parent pointer; used when internal-page
// moves hand children to a new parent.
func (b *BplusTree[K, V]) reparent(childId, parentId disk.PageID) error {
	page, err := b.bpm.FetchPage(childId)
	if err != nil {
		return errors.Wrapf(err, "fetching child %d for reparenting", childId)
	}

	node, hdr, err := b.loadNode(page)
	if err != nil {
		_ = b.bpm.UnpinPage(childId, false)
		return err
	}

	hdr.Parent = parentId
	if err := b.syncPage(page, node); err != nil {
		_ = b.bpm.UnpinPage(childId, false)
		return err
	}

	return b.bpm.UnpinPage(childId, true)
}

// loadNode materializes whichever page kind lives in the frame.
func (b *BplusTree[K, V]) loadNode(page *buffer.Page) (any, *pageHeader, error) {
	node, err := util.ToStruct[internalPage[K]](page.Data())
	if err != nil {
		return nil, nil, err
	}

	if node.isLeafPage() {
		leaf, err := util.ToStruct[leafPage[K, V]](page.Data())
		if err != nil {
			return nil, nil, err
		}
		return &leaf, &leaf.pageHeader, nil
	}

	return &node, &node.pageHeader, nil
}

func (b *BplusTree[K, V]) headerOf(node any) *pageHeader {
	switch n := node.(type) {
	case *leafPage[K, V]:
		return &n.pageHeader
	case *internalPage[K]:
		return &n.pageHeader
	}

	panic("unknown page kind")
}

// syncPage writes the struct state back into the frame bytes.
func (b *BplusTree[K, V]) syncPage(page *buffer.Page, node any) error {
	data, err := util.ToByteSlice(node)
	if err != nil {
		return err
	}

	copy(page.Data(), data)
	return nil
}

// discardPage releases a page that was allocated but never linked into the
// tree.
func (b *BplusTree[K, V]) discardPage(pageId disk.PageID) {
	_ = b.bpm.UnpinPage(pageId, false)
	_ = b.bpm.DeletePage(pageId)
}

package index

import (
	"github.com/loamdb/loam/buffer"
	"github.com/loamdb/loam/storage/disk"
	"github.com/loamdb/loam/util"
)

// IndexIterator is a forward cursor over the leaf chain. It owns exactly
// one page pin at any time; advancing off a leaf hands the pin to the next
// one and reaching the end releases it.
type IndexIterator[K any, V any] struct {
	bpm  *buffer.BufferpoolManager
	page *buffer.Page
	leaf *leafPage[K, V]
	pos  int
}

func (it *IndexIterator[K, V]) IsEnd() bool {
	return it.page == nil
}

// Next returns the current pair and advances. Calling Next on an exhausted
// iterator keeps it at the end and reports ErrIteratorDone.
func (it *IndexIterator[K, V]) Next() (K, V, error) {
	var key K
	var value V

	if it.IsEnd() {
		return key, value, util.ErrIteratorDone
	}

	key = it.leaf.keyAt(it.pos)
	value = it.leaf.valueAt(it.pos)
	it.pos++

	if it.pos >= it.leaf.getSize() {
		if err := it.advance(); err != nil {
			return key, value, err
		}
	}

	return key, value, nil
}

// Close releases the iterator's pin early. Safe to call more than once and
// after exhaustion.
func (it *IndexIterator[K, V]) Close() error {
	if it.page == nil {
		return nil
	}

	pageId := it.page.PageId()
	it.page, it.leaf, it.pos = nil, nil, 0

	return it.bpm.UnpinPage(pageId, false)
}

// advance moves the pin to the next leaf, or drops it at the end of the
// chain.
func (it *IndexIterator[K, V]) advance() error {
	next := it.leaf.Next

	if err := it.bpm.UnpinPage(it.page.PageId(), false); err != nil {
		return err
	}
	it.page, it.leaf, it.pos = nil, nil, 0

	if next == disk.INVALID_PAGE_ID {
		return nil
	}

	page, err := it.bpm.FetchPage(next)
	if err != nil {
		return err
	}

	leaf, err := util.ToStruct[leafPage[K, V]](page.Data())
	if err != nil {
		_ = it.bpm.UnpinPage(next, false)
		return err
	}

	it.page, it.leaf = page, &leaf
	return nil
}

// Begin positions an iterator on the smallest key.
func (b *BplusTree[K, V]) Begin() (*IndexIterator[K, V], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rootPageId == disk.INVALID_PAGE_ID {
		return &IndexIterator[K, V]{bpm: b.bpm}, nil
	}

	var smallest K
	page, leaf, err := b.findLeaf(smallest, true)
	if err != nil {
		return nil, err
	}

	return &IndexIterator[K, V]{bpm: b.bpm, page: page, leaf: leaf}, nil
}

// BeginAt positions an iterator on the first key >= key.
func (b *BplusTree[K, V]) BeginAt(key K) (*IndexIterator[K, V], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rootPageId == disk.INVALID_PAGE_ID {
		return &IndexIterator[K, V]{bpm: b.bpm}, nil
	}

	page, leaf, err := b.findLeaf(key, false)
	if err != nil {
		return nil, err
	}

	it := &IndexIterator[K, V]{bpm: b.bpm, page: page, leaf: leaf, pos: leaf.keyIndex(key, b.cmp)}
	if it.pos >= leaf.getSize() {
		// key sorts past this leaf; the first qualifying pair is at the
		// head of the next one
		if err := it.advance(); err != nil {
			return nil, err
		}
	}

	return it, nil
}

// End is the exhausted sentinel. Two end iterators are interchangeable and
// Begin never equals End on a non-empty tree.
func (b *BplusTree[K, V]) End() *IndexIterator[K, V] {
	return &IndexIterator[K, V]{bpm: b.bpm}
}

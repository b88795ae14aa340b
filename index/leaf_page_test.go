package index

import (
	"cmp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loamdb/loam/storage/disk"
)

func newLeaf(pageId disk.PageID, keys ...int) *leafPage[int, int] {
	leaf := &leafPage[int, int]{}
	leaf.init(pageId, disk.INVALID_PAGE_ID, 4)
	for _, k := range keys {
		leaf.insert(k, k*10, cmp.Compare[int])
	}
	return leaf
}

func TestLeafPage(t *testing.T) {
	t.Run("keyIndex returns the first slot at or above the key", func(t *testing.T) {
		leaf := newLeaf(1, 10, 20, 30)

		assert.Equal(t, 0, leaf.keyIndex(5, cmp.Compare[int]))
		assert.Equal(t, 0, leaf.keyIndex(10, cmp.Compare[int]))
		assert.Equal(t, 1, leaf.keyIndex(15, cmp.Compare[int]))
		assert.Equal(t, 2, leaf.keyIndex(30, cmp.Compare[int]))
		assert.Equal(t, 3, leaf.keyIndex(31, cmp.Compare[int]))
	})

	t.Run("insert keeps pairs sorted regardless of arrival order", func(t *testing.T) {
		leaf := newLeaf(1, 30, 10, 20)

		assert.Equal(t, []int{10, 20, 30}, leaf.Keys)
		assert.Equal(t, []int{100, 200, 300}, leaf.Values)
		assert.Equal(t, 3, leaf.getSize())
	})

	t.Run("inserting a present key leaves the size unchanged", func(t *testing.T) {
		leaf := newLeaf(1, 10, 20)

		size := leaf.insert(10, 999, cmp.Compare[int])
		assert.Equal(t, 2, size)

		val, found := leaf.lookup(10, cmp.Compare[int])
		assert.True(t, found)
		assert.Equal(t, 100, val)
	})

	t.Run("lookup misses between and beyond keys", func(t *testing.T) {
		leaf := newLeaf(1, 10, 20)

		_, found := leaf.lookup(15, cmp.Compare[int])
		assert.False(t, found)
		_, found = leaf.lookup(25, cmp.Compare[int])
		assert.False(t, found)
	})

	t.Run("remove deletes its pair and ignores absent keys", func(t *testing.T) {
		leaf := newLeaf(1, 10, 20, 30)

		assert.True(t, leaf.remove(20, cmp.Compare[int]))
		assert.Equal(t, []int{10, 30}, leaf.Keys)
		assert.Equal(t, []int{100, 300}, leaf.Values)

		assert.False(t, leaf.remove(20, cmp.Compare[int]))
		assert.Equal(t, 2, leaf.getSize())
	})

	t.Run("moveHalfTo carries the upper half and links the sibling", func(t *testing.T) {
		leaf := newLeaf(1, 10, 20, 30, 40)
		leaf.Next = 7

		sibling := &leafPage[int, int]{}
		sibling.init(2, disk.INVALID_PAGE_ID, 4)
		leaf.moveHalfTo(sibling)

		assert.Equal(t, []int{10, 20}, leaf.Keys)
		assert.Equal(t, []int{30, 40}, sibling.Keys)
		assert.Equal(t, []int{300, 400}, sibling.Values)
		assert.Equal(t, disk.PageID(2), leaf.Next)
		assert.Equal(t, disk.PageID(7), sibling.Next)
	})

	t.Run("moveAllTo appends to the predecessor and fixes the chain", func(t *testing.T) {
		left := newLeaf(1, 10, 20)
		right := newLeaf(2, 30, 40)
		left.Next = 2
		right.Next = 9

		right.moveAllTo(left)

		assert.Equal(t, []int{10, 20, 30, 40}, left.Keys)
		assert.Equal(t, disk.PageID(9), left.Next)
		assert.Equal(t, 0, right.getSize())
	})

	t.Run("borrows move exactly one pair", func(t *testing.T) {
		left := newLeaf(1, 10, 20, 30)
		right := newLeaf(2, 40)

		left.moveLastToFrontOf(right)
		assert.Equal(t, []int{10, 20}, left.Keys)
		assert.Equal(t, []int{30, 40}, right.Keys)
		assert.Equal(t, []int{300, 400}, right.Values)

		right.moveFirstToEndOf(left)
		assert.Equal(t, []int{10, 20, 30}, left.Keys)
		assert.Equal(t, []int{40}, right.Keys)
	})
}

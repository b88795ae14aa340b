package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLrukNode(t *testing.T) {
	t.Run("reports whether it has k accesses", func(t *testing.T) {
		node := &lrukNode{k: 3}
		assert.False(t, node.hasKAccess())

		node.addTimestamp(1)
		node.addTimestamp(2)
		node.addTimestamp(3)

		assert.True(t, node.hasKAccess())
	})

	t.Run("retains only the k most recent timestamps", func(t *testing.T) {
		node := &lrukNode{k: 3}

		node.addTimestamp(1)
		node.addTimestamp(2)
		node.addTimestamp(3)
		assert.Equal(t, []int{1, 2, 3}, node.history)

		node.addTimestamp(4)
		assert.Equal(t, []int{2, 3, 4}, node.history)
	})

	t.Run("kth access is the oldest retained timestamp", func(t *testing.T) {
		node := &lrukNode{k: 3}
		assert.Equal(t, -1, node.kthAccess())

		node.addTimestamp(1)
		node.addTimestamp(2)
		assert.Equal(t, 1, node.kthAccess())
	})
}

func TestLrukReplacer(t *testing.T) {
	t.Run("tracks evictable frames in its size", func(t *testing.T) {
		replacer := NewLrukReplacer(5, 2)

		replacer.recordAccess(1)
		replacer.recordAccess(2)
		assert.Equal(t, 0, replacer.size())

		replacer.setEvictable(1, true)
		replacer.setEvictable(2, true)
		assert.Equal(t, 2, replacer.size())

		replacer.setEvictable(2, false)
		assert.Equal(t, 1, replacer.size())
	})

	t.Run("only removes evictable frames", func(t *testing.T) {
		replacer := NewLrukReplacer(5, 2)

		replacer.recordAccess(1)
		replacer.recordAccess(2)
		replacer.setEvictable(2, true)

		assert.Error(t, replacer.remove(1))
		assert.NoError(t, replacer.remove(2))
		assert.Equal(t, 0, replacer.size())
	})
}

func TestEviction(t *testing.T) {
	t.Run("evicts nothing when no frame is evictable", func(t *testing.T) {
		replacer := NewLrukReplacer(5, 2)

		replacer.recordAccess(1)
		replacer.recordAccess(2)
		replacer.recordAccess(3)

		evicted, err := replacer.evict()
		assert.NoError(t, err)
		assert.Equal(t, INVALID_FRAME_ID, evicted)
	})

	t.Run("prefers frames with fewer than k accesses", func(t *testing.T) {
		replacer := NewLrukReplacer(5, 2)

		replacer.recordAccess(2)

		// 3 and 1 reach k accesses, k = 2
		replacer.recordAccess(3)
		replacer.recordAccess(3)
		replacer.recordAccess(1)
		replacer.recordAccess(1)

		replacer.setEvictable(1, true)
		replacer.setEvictable(2, true)
		replacer.setEvictable(3, true)

		evicted, err := replacer.evict()
		assert.NoError(t, err)
		assert.Equal(t, 2, evicted)
	})

	t.Run("falls back to the oldest first access when all frames have fewer than k", func(t *testing.T) {
		replacer := NewLrukReplacer(5, 2)

		replacer.recordAccess(2)
		replacer.recordAccess(3)
		replacer.recordAccess(1)

		replacer.setEvictable(1, true)
		replacer.setEvictable(2, true)
		replacer.setEvictable(3, true)
		assert.Equal(t, 3, replacer.size())

		evicted, err := replacer.evict()
		assert.NoError(t, err)
		assert.Equal(t, 2, evicted)
	})

	t.Run("evicts the oldest kth access when all frames have k", func(t *testing.T) {
		replacer := NewLrukReplacer(5, 2)

		replacer.recordAccess(3)
		replacer.recordAccess(3)
		replacer.recordAccess(2)
		replacer.recordAccess(2)
		replacer.recordAccess(1)
		replacer.recordAccess(1)

		replacer.setEvictable(1, true)
		replacer.setEvictable(2, true)
		replacer.setEvictable(3, true)

		evicted, err := replacer.evict()
		assert.NoError(t, err)
		assert.Equal(t, 3, evicted)
	})

	t.Run("an evicted frame is forgotten", func(t *testing.T) {
		replacer := NewLrukReplacer(5, 2)

		replacer.recordAccess(1)
		replacer.setEvictable(1, true)

		evicted, err := replacer.evict()
		assert.NoError(t, err)
		assert.Equal(t, 1, evicted)

		evicted, err = replacer.evict()
		assert.NoError(t, err)
		assert.Equal(t, INVALID_FRAME_ID, evicted)
	})
}

package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loamdb/loam/util"
)

func TestIndexIterator(t *testing.T) {
	t.Run("scans every pair in key order", func(t *testing.T) {
		tree := newIntTree(t, 4, 4)

		for k := 20; k >= 1; k-- {
			_, err := tree.Insert(k, k*10)
			assert.NoError(t, err)
		}

		iter, err := tree.Begin()
		assert.NoError(t, err)

		got := [][2]int{}
		for !iter.IsEnd() {
			k, v, err := iter.Next()
			assert.NoError(t, err)
			got = append(got, [2]int{k, v})
		}

		assert.Len(t, got, 20)
		for i, pair := range got {
			assert.Equal(t, [2]int{i + 1, (i + 1) * 10}, pair)
		}
	})

	t.Run("BeginAt starts at the first key at or above the target", func(t *testing.T) {
		tree := newIntTree(t, 4, 4)

		for _, k := range []int{10, 20, 30, 40, 50} {
			_, err := tree.Insert(k, k)
			assert.NoError(t, err)
		}

		iter, err := tree.BeginAt(25)
		assert.NoError(t, err)

		got := []int{}
		for !iter.IsEnd() {
			k, _, err := iter.Next()
			assert.NoError(t, err)
			got = append(got, k)
		}
		assert.Equal(t, []int{30, 40, 50}, got)

		iter, err = tree.BeginAt(30)
		assert.NoError(t, err)
		k, _, err := iter.Next()
		assert.NoError(t, err)
		assert.Equal(t, 30, k)
		assert.NoError(t, iter.Close())
	})

	t.Run("BeginAt past the largest key is already at the end", func(t *testing.T) {
		tree := newIntTree(t, 4, 4)

		for _, k := range []int{10, 20, 30} {
			_, err := tree.Insert(k, k)
			assert.NoError(t, err)
		}

		iter, err := tree.BeginAt(55)
		assert.NoError(t, err)
		assert.True(t, iter.IsEnd())
		assert.Equal(t, 0, tree.bpm.PinnedFrames())
	})

	t.Run("an empty tree begins at the end", func(t *testing.T) {
		tree := newIntTree(t, 4, 4)

		iter, err := tree.Begin()
		assert.NoError(t, err)
		assert.True(t, iter.IsEnd())
	})

	t.Run("the end is stable under further advances", func(t *testing.T) {
		tree := newIntTree(t, 4, 4)

		_, err := tree.Insert(1, 1)
		assert.NoError(t, err)

		iter, err := tree.Begin()
		assert.NoError(t, err)

		_, _, err = iter.Next()
		assert.NoError(t, err)
		assert.True(t, iter.IsEnd())

		for i := 0; i < 3; i++ {
			_, _, err = iter.Next()
			assert.ErrorIs(t, err, util.ErrIteratorDone)
			assert.True(t, iter.IsEnd())
		}
	})

	t.Run("end sentinels agree and differ from a live begin", func(t *testing.T) {
		tree := newIntTree(t, 4, 4)

		_, err := tree.Insert(1, 1)
		assert.NoError(t, err)

		assert.True(t, tree.End().IsEnd())
		assert.Equal(t, tree.End().IsEnd(), tree.End().IsEnd())

		iter, err := tree.Begin()
		assert.NoError(t, err)
		assert.False(t, iter.IsEnd())
		assert.NoError(t, iter.Close())
	})

	t.Run("the iterator owns exactly one pin until closed", func(t *testing.T) {
		tree := newIntTree(t, 4, 4)

		for k := 1; k <= 10; k++ {
			_, err := tree.Insert(k, k)
			assert.NoError(t, err)
		}

		iter, err := tree.Begin()
		assert.NoError(t, err)
		assert.Equal(t, 1, tree.bpm.PinnedFrames())

		// crossing a leaf boundary hands the pin over
		for i := 0; i < 5; i++ {
			_, _, err := iter.Next()
			assert.NoError(t, err)
		}
		assert.Equal(t, 1, tree.bpm.PinnedFrames())

		assert.NoError(t, iter.Close())
		assert.Equal(t, 0, tree.bpm.PinnedFrames())

		// closing again is harmless
		assert.NoError(t, iter.Close())
	})

	t.Run("a drained iterator holds no pin", func(t *testing.T) {
		tree := newIntTree(t, 4, 4)

		for k := 1; k <= 10; k++ {
			_, err := tree.Insert(k, k)
			assert.NoError(t, err)
		}

		iter, err := tree.Begin()
		assert.NoError(t, err)
		for !iter.IsEnd() {
			_, _, err := iter.Next()
			assert.NoError(t, err)
		}

		assert.Equal(t, 0, tree.bpm.PinnedFrames())
	})
}

package index

import (
	"slices"

	"github.com/loamdb/loam/storage/disk"
)

// leafPage holds sorted (key, value) pairs plus a pointer to the leaf with
// the next larger keys. len(Keys) == len(Values) == Size at all times.
type leafPage[K any, V any] struct {
	pageHeader
	Next   disk.PageID
	Keys   []K
	Values []V
}

func (p *leafPage[K, V]) init(pageId, parent disk.PageID, maxSize int) {
	p.PageType = LEAF_PAGE
	p.PageId = pageId
	p.Parent = parent
	p.Size = 0
	p.MaxSize = int32(maxSize)
	p.Next = disk.INVALID_PAGE_ID
	p.Keys = make([]K, 0, maxSize)
	p.Values = make([]V, 0, maxSize)
}

func (p *leafPage[K, V]) keyAt(idx int) K {
	return p.Keys[idx]
}

func (p *leafPage[K, V]) valueAt(idx int) V {
	return p.Values[idx]
}

// keyIndex returns the first index whose key is >= key, which is size when
// every key is smaller.
func (p *leafPage[K, V]) keyIndex(key K, cmp Comparator[K]) int {
	left := 0
	right := p.getSize() - 1

	for left <= right {
		mid := left + (right-left)/2
		if cmp(p.Keys[mid], key) < 0 {
			left = mid + 1
		} else {
			right = mid - 1
		}
	}

	return left
}

func (p *leafPage[K, V]) lookup(key K, cmp Comparator[K]) (V, bool) {
	idx := p.keyIndex(key, cmp)
	if idx < p.getSize() && cmp(p.Keys[idx], key) == 0 {
		return p.Values[idx], true
	}

	var missing V
	return missing, false
}

// insert adds the pair in key order and returns the resulting size. The
// size comes back unchanged when the key is already present, which is how
// callers detect a duplicate.
func (p *leafPage[K, V]) insert(key K, value V, cmp Comparator[K]) int {
	idx := p.keyIndex(key, cmp)
	if idx < p.getSize() && cmp(p.Keys[idx], key) == 0 {
		return p.getSize()
	}

	p.Keys = slices.Insert(p.Keys, idx, key)
	p.Values = slices.Insert(p.Values, idx, value)
	p.Size++

	return p.getSize()
}

// remove deletes the pair for key and reports whether the page changed.
func (p *leafPage[K, V]) remove(key K, cmp Comparator[K]) bool {
	idx := p.keyIndex(key, cmp)
	if idx >= p.getSize() || cmp(p.Keys[idx], key) != 0 {
		return false
	}

	p.Keys = slices.Delete(p.Keys, idx, idx+1)
	p.Values = slices.Delete(p.Values, idx, idx+1)
	p.Size--

	return true
}

// moveHalfTo transfers the upper half of the pairs to dst and links dst
// into the leaf chain right after p.
func (p *leafPage[K, V]) moveHalfTo(dst *leafPage[K, V]) {
	half := (p.getSize() + 1) / 2
	at := p.getSize() - half

	dst.Keys = append(dst.Keys, p.Keys[at:]...)
	dst.Values = append(dst.Values, p.Values[at:]...)
	dst.Size += int32(half)

	p.Keys = p.Keys[:at]
	p.Values = p.Values[:at]
	p.Size = int32(at)

	dst.Next = p.Next
	p.Next = dst.PageId
}

// moveAllTo appends every pair to dst. The caller guarantees dst precedes p
// in key order.
func (p *leafPage[K, V]) moveAllTo(dst *leafPage[K, V]) {
	dst.Keys = append(dst.Keys, p.Keys...)
	dst.Values = append(dst.Values, p.Values...)
	dst.Size += p.Size
	dst.Next = p.Next

	p.Keys = p.Keys[:0]
	p.Values = p.Values[:0]
	p.Size = 0
}

// moveFirstToEndOf lends p's smallest pair to the preceding leaf dst.
func (p *leafPage[K, V]) moveFirstToEndOf(dst *leafPage[K, V]) {
	dst.Keys = append(dst.Keys, p.Keys[0])
	dst.Values = append(dst.Values, p.Values[0])
	dst.Size++

	p.Keys = slices.Delete(p.Keys, 0, 1)
	p.Values = slices.Delete(p.Values, 0, 1)
	p.Size--
}

// moveLastToFrontOf lends p's largest pair to the following leaf dst.
func (p *leafPage[K, V]) moveLastToFrontOf(dst *leafPage[K, V]) {
	last := p.getSize() - 1

	dst.Keys = slices.Insert(dst.Keys, 0, p.Keys[last])
	dst.Values = slices.Insert(dst.Values, 0, p.Values[last])
	dst.Size++

	p.Keys = p.Keys[:last]
	p.Values = p.Values[:last]
	p.Size--
}

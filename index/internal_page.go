package index

import (
	"fmt"
	"slices"

	"github.com/loamdb/loam/storage/disk"
)

// reparentFunc rewrites a child page's parent pointer through the buffer
// pool. The tree supplies it so page code stays ignorant of page fetching.
type reparentFunc func(child, parent disk.PageID) error

// internalPage holds (key, child page id) slots ordered by key. Slot 0 is a
// left-most child with no separator; its key is undefined and never read
// outside the split path.
type internalPage[K any] struct {
	pageHeader
	Keys     []K
	Children []disk.PageID
}

func (p *internalPage[K]) init(pageId, parent disk.PageID, maxSize int) {
	p.PageType = INTERNAL_PAGE
	p.PageId = pageId
	p.Parent = parent
	p.Size = 0
	p.MaxSize = int32(maxSize)
	p.Keys = make([]K, 0, maxSize)
	p.Children = make([]disk.PageID, 0, maxSize)
}

func (p *internalPage[K]) keyAt(idx int) K {
	return p.Keys[idx]
}

func (p *internalPage[K]) valueAt(idx int) disk.PageID {
	return p.Children[idx]
}

func (p *internalPage[K]) setKeyAt(idx int, key K) {
	p.Keys[idx] = key
}

// populateNewRoot seeds a fresh root with two children split around one
// separator key.
func (p *internalPage[K]) populateNewRoot(left disk.PageID, key K, right disk.PageID) {
	var unused K
	p.Keys = append(p.Keys[:0], unused, key)
	p.Children = append(p.Children[:0], left, right)
	p.Size = 2
}

// lookup returns the child whose subtree covers key: the child at the
// largest index i >= 1 with keys[i] <= key, else the left-most child.
func (p *internalPage[K]) lookup(key K, cmp Comparator[K]) disk.PageID {
	idx := 0
	for i := 1; i < p.getSize(); i++ {
		if cmp(key, p.Keys[i]) >= 0 {
			idx = i
		} else {
			break
		}
	}

	return p.Children[idx]
}

// valueIndex locates a child pointer. A miss means the tree structure is
// corrupt, which is not recoverable at runtime.
func (p *internalPage[K]) valueIndex(pid disk.PageID) int {
	for i, child := range p.Children[:p.getSize()] {
		if child == pid {
			return i
		}
	}

	panic(fmt.Sprintf("page %d is not a child of page %d", pid, p.PageId))
}

// insertNodeAfter registers right under the separator key, immediately
// after the slot holding left. Returns the resulting size.
func (p *internalPage[K]) insertNodeAfter(left disk.PageID, key K, right disk.PageID) int {
	idx := p.valueIndex(left) + 1

	p.Keys = slices.Insert(p.Keys, idx, key)
	p.Children = slices.Insert(p.Children, idx, right)
	p.Size++

	return p.getSize()
}

// remove deletes slot idx, shifting the tail left. Callers never remove
// slot 0 without collapsing the node first.
func (p *internalPage[K]) remove(idx int) {
	p.Keys = slices.Delete(p.Keys, idx, idx+1)
	p.Children = slices.Delete(p.Children, idx, idx+1)
	p.Size--
}

// moveHalfTo transfers the upper half of the slots to dst and reparents the
// moved children. The pivot key travels along in dst's slot 0, where the
// split path reads it once as the separator; it is undefined afterwards.
func (p *internalPage[K]) moveHalfTo(dst *internalPage[K], reparent reparentFunc) error {
	half := (p.getSize() + 1) / 2
	at := p.getSize() - half

	dst.Keys = append(dst.Keys, p.Keys[at:]...)
	dst.Children = append(dst.Children, p.Children[at:]...)
	dst.Size += int32(half)

	p.Keys = p.Keys[:at]
	p.Children = p.Children[:at]
	p.Size = int32(at)

	for _, child := range dst.Children[len(dst.Children)-half:] {
		if err := reparent(child, dst.PageId); err != nil {
			return err
		}
	}

	return nil
}

// moveAllTo appends every slot to dst, the node preceding p under their
// shared parent. middleKey, the separator between the two, becomes the key
// of the first moved slot.
func (p *internalPage[K]) moveAllTo(dst *internalPage[K], middleKey K, reparent reparentFunc) error {
	if p.getSize() > 0 {
		p.Keys[0] = middleKey
	}

	dst.Keys = append(dst.Keys, p.Keys...)
	dst.Children = append(dst.Children, p.Children...)
	dst.Size += p.Size

	for _, child := range p.Children {
		if err := reparent(child, dst.PageId); err != nil {
			return err
		}
	}

	p.Keys = p.Keys[:0]
	p.Children = p.Children[:0]
	p.Size = 0

	return nil
}

// moveFirstToEndOf lends p's left-most child to the preceding node dst. The
// lent slot carries middleKey, the separator the parent held between dst
// and p; the returned key is the new separator the caller must write back.
func (p *internalPage[K]) moveFirstToEndOf(dst *internalPage[K], middleKey K, reparent reparentFunc) (K, error) {
	child := p.Children[0]

	dst.Keys = append(dst.Keys, middleKey)
	dst.Children = append(dst.Children, child)
	dst.Size++

	if err := reparent(child, dst.PageId); err != nil {
		var none K
		return none, err
	}

	newSeparator := p.Keys[1]
	p.Keys = slices.Delete(p.Keys, 0, 1)
	p.Children = slices.Delete(p.Children, 0, 1)
	p.Size--

	return newSeparator, nil
}

// moveLastToFrontOf lends p's right-most child to the following node dst.
// middleKey comes down onto dst's old left-most child; the key of the lent
// slot goes back to the caller as the new separator.
func (p *internalPage[K]) moveLastToFrontOf(dst *internalPage[K], middleKey K, reparent reparentFunc) (K, error) {
	last := p.getSize() - 1
	child := p.Children[last]
	newSeparator := p.Keys[last]

	if dst.getSize() > 0 {
		dst.Keys[0] = middleKey
	}

	var unused K
	dst.Keys = slices.Insert(dst.Keys, 0, unused)
	dst.Children = slices.Insert(dst.Children, 0, child)
	dst.Size++

	if err := reparent(child, dst.PageId); err != nil {
		var none K
		return none, err
	}

	p.Keys = p.Keys[:last]
	p.Children = p.Children[:last]
	p.Size--

	return newSeparator, nil
}

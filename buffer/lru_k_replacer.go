package buffer

import (
	"sync"

	"github.com/pkg/errors"
)

func NewLrukReplacer(capacity, k int) *lrukReplacer {
	return &lrukReplacer{
		k:            k,
		nodeStore:    map[int]*lrukNode{},
		replacerSize: capacity,
	}
}

func (lru *lrukReplacer) recordAccess(frameId int) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	lru.currTimestamp++
	node, ok := lru.nodeStore[frameId]
	if !ok {
		node = &lrukNode{frameId: frameId, k: lru.k}
		lru.nodeStore[frameId] = node
	}

	node.addTimestamp(lru.currTimestamp)
}

func (lru *lrukReplacer) setEvictable(frameId int, evictable bool) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	node, ok := lru.nodeStore[frameId]
	if !ok {
		return
	}

	if node.isEvictable != evictable {
		if evictable {
			lru.currSize++
		} else {
			lru.currSize--
		}
		node.isEvictable = evictable
	}
}

// evict picks the evictable frame with the largest backward k-distance.
// Frames with fewer than k recorded accesses count as +inf distance and go
// first, oldest initial access breaking the tie; otherwise the frame whose
// kth most recent access is oldest loses.
func (lru *lrukReplacer) evict() (int, error) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	victim := INVALID_FRAME_ID
	victimInf := false
	victimStamp := 0

	for frameId, node := range lru.nodeStore {
		if !node.isEvictable {
			continue
		}

		inf := !node.hasKAccess()
		stamp := node.kthAccess()

		switch {
		case victim == INVALID_FRAME_ID:
		case inf && !victimInf:
		case inf == victimInf && stamp < victimStamp:
		default:
			continue
		}

		victim, victimInf, victimStamp = frameId, inf, stamp
	}

	if victim == INVALID_FRAME_ID {
		return INVALID_FRAME_ID, nil
	}

	delete(lru.nodeStore, victim)
	lru.currSize--
	return victim, nil
}

func (lru *lrukReplacer) remove(frameId int) error {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	node, ok := lru.nodeStore[frameId]
	if !ok {
		return nil
	}

	if !node.isEvictable {
		return errors.Errorf("removing non-evictable frame %d", frameId)
	}

	delete(lru.nodeStore, frameId)
	lru.currSize--

	return nil
}

func (lru *lrukReplacer) size() int {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	return lru.currSize
}

type lrukReplacer struct {
	mu            sync.Mutex
	nodeStore     map[int]*lrukNode
	replacerSize  int
	currSize      int
	currTimestamp int
	k             int
}

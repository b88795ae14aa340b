package util

import "github.com/pkg/errors"

var (
	// ErrBufferPoolFull is returned when every frame is pinned and nothing
	// can be evicted to make room.
	ErrBufferPoolFull = errors.New("bufferpool: all frames are pinned")

	// ErrIteratorDone is returned by Next on an exhausted iterator.
	ErrIteratorDone = errors.New("index: iterator is exhausted")
)

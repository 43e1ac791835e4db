package bufferpool

import (
	"errors"
	"fmt"
	"hash/fnv"
)

// ErrAlreadyPresent is raised by Insert on a duplicate (file, page) key.
var ErrAlreadyPresent = errors.New("bufferpool: frame index entry already present")

// ErrNotFound is raised by Lookup/Remove on a miss. It is consumed
// internally by Pool (lookup-miss => load-from-disk) and never surfaced
// past the pool boundary.
var ErrNotFound = errors.New("bufferpool: frame index entry not found")

type frameKey struct {
	file string
	page uint32
}

type bucketEntry struct {
	key   frameKey
	frame int
	next  *bucketEntry
}

// frameIndex is a chained-bucket hash map from (file, page) to frame
// number, sized to roughly 1.2x the pool's frame count at construction.
type frameIndex struct {
	buckets []*bucketEntry
}

func newFrameIndex(capacity int) *frameIndex {
	size := int(float64(capacity)*1.2) + 1
	if size < 1 {
		size = 1
	}
	return &frameIndex{buckets: make([]*bucketEntry, size)}
}

func (h *frameIndex) hash(key frameKey) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(key.file))
	v := int(f.Sum32()) ^ int(key.page)
	if v < 0 {
		v = -v
	}
	return v % len(h.buckets)
}

// insert adds (file, page) -> frame, failing if the key is already present.
func (h *frameIndex) insert(file string, pageNo uint32, frame int) error {
	key := frameKey{file, pageNo}
	idx := h.hash(key)
	for e := h.buckets[idx]; e != nil; e = e.next {
		if e.key == key {
			return fmt.Errorf("%w: file=%s page=%d frame=%d", ErrAlreadyPresent, file, pageNo, e.frame)
		}
	}
	h.buckets[idx] = &bucketEntry{key: key, frame: frame, next: h.buckets[idx]}
	return nil
}

// lookup returns the frame number for (file, page), or ErrNotFound.
func (h *frameIndex) lookup(file string, pageNo uint32) (int, error) {
	key := frameKey{file, pageNo}
	idx := h.hash(key)
	for e := h.buckets[idx]; e != nil; e = e.next {
		if e.key == key {
			return e.frame, nil
		}
	}
	return 0, fmt.Errorf("%w: file=%s page=%d", ErrNotFound, file, pageNo)
}

// remove deletes the entry for (file, page), or fails with ErrNotFound.
func (h *frameIndex) remove(file string, pageNo uint32) error {
	key := frameKey{file, pageNo}
	idx := h.hash(key)
	var prev *bucketEntry
	for e := h.buckets[idx]; e != nil; e = e.next {
		if e.key == key {
			if prev == nil {
				h.buckets[idx] = e.next
			} else {
				prev.next = e.next
			}
			return nil
		}
		prev = e
	}
	return fmt.Errorf("%w: file=%s page=%d", ErrNotFound, file, pageNo)
}

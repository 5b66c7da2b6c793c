package analysis

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// stripedMutex hands out one of a fixed set of mutexes per key. Two
// documents may share a stripe; that only costs contention, never
// correctness.
type stripedMutex struct {
	stripes [lockStripes]sync.Mutex
}

func (m *stripedMutex) lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	mu := &m.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

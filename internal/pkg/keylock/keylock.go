// Package keylock provides striped per-key mutexes so independent keys can
// proceed in parallel while writes to the same key are serialized.
package keylock

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 64

// Striped maps keys onto a fixed set of mutexes. Two distinct keys may share
// a stripe, which only costs parallelism, never correctness.
type Striped struct {
	stripes []sync.Mutex
}

func New() *Striped {
	return NewWithStripes(defaultStripes)
}

func NewWithStripes(n int) *Striped {
	if n <= 0 {
		n = defaultStripes
	}
	return &Striped{stripes: make([]sync.Mutex, n)}
}

// Lock acquires the stripe for key and returns the unlock function.
func (s *Striped) Lock(key string) func() {
	m := &s.stripes[s.index(key)]
	m.Lock()
	return m.Unlock
}

func (s *Striped) index(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % uint32(len(s.stripes))
}

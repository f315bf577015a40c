package assignment

import "sync"

// datasetLocker serializes mutations per dataset. The round-robin
// redistribution is not commutative, so concurrent assign/unassign calls on
// the same dataset must not interleave.
type datasetLocker struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newDatasetLocker() *datasetLocker {
	return &datasetLocker{locks: make(map[uint]*sync.Mutex)}
}

// Lock acquires the mutex for a dataset, creating it on first use.
// Mutexes are retained for the process lifetime; the dataset count is small.
func (dl *datasetLocker) Lock(datasetID uint) func() {
	dl.mu.Lock()
	lock, ok := dl.locks[datasetID]
	if !ok {
		lock = &sync.Mutex{}
		dl.locks[datasetID] = lock
	}
	dl.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

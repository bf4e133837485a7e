package service

import "sync"

// keyedLocks hands out one mutex per account id and frees it once the last
// holder or waiter releases it.
type keyedLocks struct {
	mu sync.Mutex
	m  map[uint64]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLocks) Lock(id uint64) func() {
	k.mu.Lock()
	if k.m == nil {
		k.m = map[uint64]*keyedLock{}
	}
	l, ok := k.m[id]
	if !ok {
		l = &keyedLock{}
		k.m[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, id)
		}
		k.mu.Unlock()
	}
}

func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.m)
}

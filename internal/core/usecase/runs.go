package usecase

import (
	"sync"
	"sync/atomic"
)

type runHandle struct {
	stopRequested atomic.Bool
}

func (h *runHandle) stopped() bool {
	return h.stopRequested.Load()
}

// runRegistry tracks the single active run allowed per document.
type runRegistry struct {
	mu     sync.Mutex
	active map[string]*runHandle
}

func newRunRegistry() *runRegistry {
	return &runRegistry{active: make(map[string]*runHandle)}
}

func (r *runRegistry) acquire(documentID string) (*runHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.active[documentID]; busy {
		return nil, false
	}
	handle := &runHandle{}
	r.active[documentID] = handle
	return handle, true
}

func (r *runRegistry) release(documentID string, handle *runHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active[documentID] == handle {
		delete(r.active, documentID)
	}
}

func (r *runRegistry) requestStop(documentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, ok := r.active[documentID]
	if !ok {
		return false
	}
	handle.stopRequested.Store(true)
	return true
}

// Package limiter bounds concurrent compression work. Rendering holds a
// full decoded page in memory, so the cap is small and rejections are
// immediate rather than queued.
package limiter

import (
    "sync"
)

type Limiter struct {
    mu  sync.Mutex
    sem map[string]chan struct{}
    max int
}

// New creates a limiter allowing max concurrent slots per operation kind.
func New(max int) *Limiter {
    if max <= 0 { max = 2 }
    return &Limiter{sem: map[string]chan struct{}{}, max: max}
}

// Allow tries to reserve a slot for the given operation kind.
// Returns a release function and true if allowed; otherwise nil,false.
func (l *Limiter) Allow(op string) (func(), bool) {
    l.mu.Lock()
    ch, ok := l.sem[op]
    if !ok {
        ch = make(chan struct{}, l.max)
        l.sem[op] = ch
    }
    l.mu.Unlock()
    select {
    case ch <- struct{}{}:
        return func() { <-ch }, true
    default:
        return func(){}, false
    }
}

package ratelimit

import (
	"sync"
	"time"
)

// Limiter applies per-identity sliding-window admission control. Each
// identity tracks its own admission timestamps; state lives only in memory
// and is rebuilt from nothing after a restart.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*entry

	stop chan struct{}
	once sync.Once
}

type entry struct {
	timestamps []time.Time
}

// New builds a limiter admitting at most limit attempts per identity within
// the trailing window. A janitor goroutine evicts identities idle for a
// full window so sustained traffic from many identities cannot grow the
// map without bound.
func New(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Admit reports whether the identity may proceed at time now. Admission
// appends now to the identity's window; rejection leaves the window
// untouched.
func (l *Limiter) Admit(identity string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.windows[identity]
	if !ok {
		e = &entry{}
		l.windows[identity] = e
	}

	cutoff := now.Add(-l.window)
	recent := e.timestamps[:0]
	for _, ts := range e.timestamps {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	e.timestamps = recent

	if len(e.timestamps) >= l.limit {
		return false
	}
	e.timestamps = append(e.timestamps, now)
	return true
}

// Len returns the number of tracked identities.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Close stops the janitor goroutine.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.evictIdle(now)
		}
	}
}

func (l *Limiter) evictIdle(now time.Time) {
	cutoff := now.Add(-l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for identity, e := range l.windows {
		idle := true
		for _, ts := range e.timestamps {
			if ts.After(cutoff) {
				idle = false
				break
			}
		}
		if idle {
			delete(l.windows, identity)
		}
	}
}

package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter replica el fixed window en memoria de proceso. No sirve para
// despliegues con más de una réplica.
type MemoryLimiter struct {
	mu     sync.Mutex
	hits   map[string]*window
	max    int64
	window time.Duration
}

type window struct {
	start time.Time
	count int64
}

func NewMemoryLimiter(max int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		hits:   make(map[string]*window),
		max:    int64(max),
		window: win,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.hits[key]
	if !ok || w.start.Before(winStart) {
		w = &window{start: winStart}
		l.hits[key] = w
	}
	w.count++

	// limpieza oportunista de ventanas viejas
	if len(l.hits) > 4096 {
		for k, old := range l.hits {
			if old.start.Before(winStart) {
				delete(l.hits, k)
			}
		}
	}

	res := Result{
		Allowed:   w.count <= l.max,
		Remaining: max64(l.max-w.count, 0),
	}
	if !res.Allowed {
		res.RetryAfter = w.start.Add(l.window).Sub(now)
	}
	return res, nil
}

package session

import (
	"time"

	"codenow/internal/models"
)

type cursorEntry struct {
	ranges []models.Range
	color  string
	gen    uint64
	timer  *time.Timer
}

// presenceExpiry keeps one inactivity timer per connection with an active
// cursor. fire runs on the timer goroutine and must take the session lock
// before calling expire.
type presenceExpiry struct {
	timeout time.Duration
	entries map[string]*cursorEntry
	nextGen uint64
	fire    func(id string, gen uint64)
}

func newPresenceExpiry(timeout time.Duration, fire func(id string, gen uint64)) *presenceExpiry {
	return &presenceExpiry{
		timeout: timeout,
		entries: make(map[string]*cursorEntry),
		fire:    fire,
	}
}

// arm records the latest ranges and restarts the connection's timer.
func (p *presenceExpiry) arm(id string, ranges []models.Range, color string) {
	if e, ok := p.entries[id]; ok {
		e.timer.Stop()
	}
	p.nextGen++
	gen := p.nextGen
	p.entries[id] = &cursorEntry{
		ranges: ranges,
		color:  color,
		gen:    gen,
		timer:  time.AfterFunc(p.timeout, func() { p.fire(id, gen) }),
	}
}

// expire drops the entry only if gen is still current. A timer that lost the
// race with a re-arm or a cancel finds a newer gen, or no entry, and is ignored.
func (p *presenceExpiry) expire(id string, gen uint64) bool {
	e, ok := p.entries[id]
	if !ok || e.gen != gen {
		return false
	}
	delete(p.entries, id)
	return true
}

func (p *presenceExpiry) cancel(id string) bool {
	e, ok := p.entries[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(p.entries, id)
	return true
}

func (p *presenceExpiry) get(id string) (cursorEntry, bool) {
	e, ok := p.entries[id]
	if !ok {
		return cursorEntry{}, false
	}
	return *e, true
}

func (p *presenceExpiry) stopAll() {
	for id, e := range p.entries {
		e.timer.Stop()
		delete(p.entries, id)
	}
}

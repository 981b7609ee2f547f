package session

import (
	"time"

	"codenow/internal/models"
)

type connection struct {
	id          string
	client      *Client
	role        models.Role
	connectedAt time.Time
	lastSeen    time.Time
}

// registry tracks live connections in admission order. Not safe for concurrent
// use; the owning Session serializes access.
type registry struct {
	conns map[string]*connection
	order []string
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]*connection)}
}

func (r *registry) add(c *connection) {
	r.conns[c.id] = c
	r.order = append(r.order, c.id)
}

func (r *registry) get(id string) (*connection, bool) {
	c, ok := r.conns[id]
	return c, ok
}

func (r *registry) remove(id string) (*connection, bool) {
	c, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	for i, cid := range r.order {
		if cid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return c, true
}

func (r *registry) touch(id string, now time.Time) {
	if c, ok := r.conns[id]; ok {
		c.lastSeen = now
	}
}

// each visits connections oldest first.
func (r *registry) each(fn func(*connection)) {
	for _, id := range r.order {
		fn(r.conns[id])
	}
}

// viewers returns viewer ids oldest first.
func (r *registry) viewers() []string {
	var out []string
	for _, id := range r.order {
		if r.conns[id].role == models.RoleViewer {
			out = append(out, id)
		}
	}
	return out
}

func (r *registry) len() int { return len(r.conns) }

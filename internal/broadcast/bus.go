package broadcast

import (
	"encoding/json"
	"sync"
)

// Member is a live connection handle. Deliver must not block: a member that cannot
// take the payload right now reports false and the payload is dropped for it alone.
type Member interface {
	Deliver(payload []byte) bool
}

// Receipt is the outcome of one Publish. Dropped members never turn into an error.
type Receipt struct {
	Group     string
	Members   int
	Delivered int
	Dropped   int
}

type Option func(*Bus)

// WithObserver registers a hook called after every publish, e.g. for metrics.
func WithObserver(fn func(Receipt)) Option {
	return func(b *Bus) { b.observe = fn }
}

type group struct {
	mu      sync.Mutex
	members map[Member]struct{}
	// dead is set once the group is removed from the registry; joiners that
	// raced with the removal must retry against a fresh group.
	dead bool
}

// Bus is the process-wide group registry. Each group has its own lock, so
// unrelated groups never contend. The registry lock is never held while a
// group lock is being acquired.
type Bus struct {
	mu      sync.Mutex
	groups  map[string]*group
	observe func(Receipt)
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{groups: make(map[string]*group)}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Bus) Join(key string, m Member) {
	for {
		b.mu.Lock()
		g, ok := b.groups[key]
		if !ok {
			g = &group{members: make(map[Member]struct{})}
			b.groups[key] = g
		}
		b.mu.Unlock()

		g.mu.Lock()
		if g.dead {
			g.mu.Unlock()
			continue
		}
		g.members[m] = struct{}{}
		g.mu.Unlock()
		return
	}
}

// Leave is idempotent and a no-op for members that never joined.
func (b *Bus) Leave(key string, m Member) {
	b.mu.Lock()
	g, ok := b.groups[key]
	b.mu.Unlock()
	if !ok {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.members, m)
	if len(g.members) > 0 || g.dead {
		return
	}
	g.dead = true
	b.mu.Lock()
	if b.groups[key] == g {
		delete(b.groups, key)
	}
	b.mu.Unlock()
}

// Publish hands payload to every member joined at the time of the call.
// Delivery happens outside the group lock.
func (b *Bus) Publish(key string, payload []byte) Receipt {
	rc := Receipt{Group: key}

	b.mu.Lock()
	g, ok := b.groups[key]
	b.mu.Unlock()

	var snapshot []Member
	if ok {
		g.mu.Lock()
		if !g.dead {
			snapshot = make([]Member, 0, len(g.members))
			for m := range g.members {
				snapshot = append(snapshot, m)
			}
		}
		g.mu.Unlock()
	}

	rc.Members = len(snapshot)
	for _, m := range snapshot {
		if m.Deliver(payload) {
			rc.Delivered++
		} else {
			rc.Dropped++
		}
	}

	if b.observe != nil {
		b.observe(rc)
	}
	return rc
}

// PublishJSON encodes v once and publishes it. The error is only ever an encoding error.
func (b *Bus) PublishJSON(key string, v any) (Receipt, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Receipt{Group: key}, err
	}
	return b.Publish(key, payload), nil
}

func (b *Bus) Members(key string) int {
	b.mu.Lock()
	g, ok := b.groups[key]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Groups reports how many groups currently have at least one member.
func (b *Bus) Groups() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.groups)
}

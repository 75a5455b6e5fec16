package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/google/uuid"
)

type UserDirectory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]domain.User
}

func NewUserDirectory(users ...domain.User) *UserDirectory {
	d := &UserDirectory{users: make(map[uuid.UUID]domain.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *UserDirectory) Put(u domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *UserDirectory) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound("user not found")
	}
	return u, nil
}

// ParseUsers reads "<uuid>:<role>:<mobile>" entries, the seed format used for
// STORE_DRIVER=memory.
func ParseUsers(entries []string) ([]domain.User, error) {
	out := make([]domain.User, 0, len(entries))
	for _, e := range entries {
		parts := strings.SplitN(strings.TrimSpace(e), ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("memory user %q: want <uuid>:<role>:<mobile>", e)
		}
		id, err := uuid.Parse(strings.TrimSpace(parts[0]))
		if err != nil || id == uuid.Nil {
			return nil, fmt.Errorf("memory user %q: invalid id", e)
		}
		role, err := domain.ParseRole(parts[1])
		if err != nil {
			return nil, fmt.Errorf("memory user %q: %w", e, err)
		}
		out = append(out, domain.User{ID: id, Role: role, MobileNumber: strings.TrimSpace(parts[2])})
	}
	return out, nil
}

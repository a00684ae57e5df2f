package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/internal/events"
)

// mockUserRepository is an in-memory UserRepository. Create is atomic like
// the conditional insert it stands in for.
type mockUserRepository struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	nextID   int64
	getErr   error
	getCalls int
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (r *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.Username]; exists {
		return domain.ErrDuplicateUsername
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	r.users[user.Username] = &stored
	return nil
}

func (r *mockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[username]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (r *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[username]
	return ok, nil
}

func (r *mockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		copied := *u
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Username]; !ok {
		return domain.ErrUserNotFound
	}
	stored := *user
	r.users[user.Username] = &stored
	return nil
}

func (r *mockUserRepository) Delete(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[username]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, username)
	return nil
}

func (r *mockUserRepository) count(username string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[username]; ok {
		return 1
	}
	return 0
}

// mockSessionCache is an in-memory SessionCache that can be switched off
type mockSessionCache struct {
	mu      sync.Mutex
	entries map[string]domain.Principal
	ttls    map[string]time.Duration
	down    bool
}

func newMockSessionCache() *mockSessionCache {
	return &mockSessionCache{
		entries: make(map[string]domain.Principal),
		ttls:    make(map[string]time.Duration),
	}
}

func (c *mockSessionCache) setDown(down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down = down
}

func (c *mockSessionCache) Get(ctx context.Context, username string) (*domain.Principal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return nil, domain.ErrCacheUnavailable
	}
	p, ok := c.entries[username]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *mockSessionCache) Set(ctx context.Context, principal *domain.Principal, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return domain.ErrCacheUnavailable
	}
	c.entries[principal.Username] = *principal
	c.ttls[principal.Username] = ttl
	return nil
}

func (c *mockSessionCache) Delete(ctx context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return domain.ErrCacheUnavailable
	}
	delete(c.entries, username)
	return nil
}

func (c *mockSessionCache) has(username string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[username]
	return ok
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SecurityEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.SecurityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

package identity

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]Identity
}

// NewMemoryRepository builds an in-memory identity store for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]Identity)}
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return clone(user), nil
}

func (r *memoryRepository) Upsert(_ context.Context, p Profile, phone *string) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	user, exists := r.users[p.ID]
	if !exists {
		user = Identity{ID: p.ID, CreatedAt: now}
	}
	user.FirstName = p.FirstName
	user.LastName = p.LastName
	user.Username = p.Username
	user.LanguageCode = p.LanguageCode
	user.IsPremium = p.IsPremium
	if phone != nil {
		v := *phone
		user.PhoneNumber = &v
	}
	user.UpdatedAt = now
	r.users[p.ID] = user
	return clone(user), nil
}

func (r *memoryRepository) UpdateContact(_ context.Context, id string, u ContactUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	phone := u.PhoneNumber
	user.PhoneNumber = &phone
	user.FirstName = u.FirstName
	user.LastName = u.LastName
	user.Username = u.Username
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return nil
}

func clone(u Identity) Identity {
	if u.PhoneNumber != nil {
		v := *u.PhoneNumber
		u.PhoneNumber = &v
	}
	return u
}

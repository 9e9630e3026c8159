package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. Records are copied on the way in
// and out so callers never share memory with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	users    []User
	roles    []Role
	products []Product
	settings map[string]SystemSettings
	now      func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		settings: make(map[string]SystemSettings),
		now:      time.Now,
	}
}

// NewSeededMemoryStore returns a store holding the demo accounts, roles and
// products. Every account gets passwordHash.
func NewSeededMemoryStore(passwordHash string) *MemoryStore {
	s := NewMemoryStore()
	for _, r := range seedRoles() {
		r.ID = uuid.NewString()
		s.roles = append(s.roles, r)
	}
	for _, su := range seedUsers {
		s.users = append(s.users, User{
			ID:           uuid.NewString(),
			Username:     su.username,
			Email:        su.email,
			Name:         su.name,
			Role:         su.role,
			Avatar:       AvatarFor(su.username),
			PasswordHash: passwordHash,
			CreatedAt:    su.created,
			UpdatedAt:    su.created,
		})
	}
	for _, p := range seedProducts() {
		p.ID = uuid.NewString()
		s.products = append(s.products, p)
	}
	return s
}

func page[T any](all []T, opts ListOptions, keep func(*T) bool) ([]T, int) {
	filtered := make([]T, 0, len(all))
	for i := range all {
		if keep(&all[i]) {
			filtered = append(filtered, all[i])
		}
	}
	start, end := opts.window(len(filtered))
	return slices.Clone(filtered[start:end]), len(filtered)
}

// Users

func (s *MemoryStore) ListUsers(_ context.Context, opts ListOptions) ([]User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, total := page(s.users, opts, func(u *User) bool {
		return matches(opts.Search, u.Username, u.Email, u.Name)
	})
	return out, total, nil
}

func (s *MemoryStore) userIndex(id string) int {
	return slices.IndexFunc(s.users, func(u User) bool { return u.ID == id })
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.userIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	u := s.users[i]
	return &u, nil
}

func (s *MemoryStore) GetUserByLogin(_ context.Context, login string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", login, ErrNotFound)
}

func (s *MemoryStore) userTaken(u *User) bool {
	return slices.ContainsFunc(s.users, func(o User) bool {
		return o.ID != u.ID && (strings.EqualFold(o.Username, u.Username) || strings.EqualFold(o.Email, u.Email))
	})
}

func (s *MemoryStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if s.userTaken(u) {
		return fmt.Errorf("user %q: %w", u.Username, ErrConflict)
	}
	if u.Avatar == "" {
		u.Avatar = AvatarFor(u.Username)
	}
	u.CreatedAt = s.now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.users = append(s.users, *u)
	return nil
}

// UpdateUser replaces the profile fields. The stored password hash is kept
// when u carries none.
func (s *MemoryStore) UpdateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.userIndex(u.ID)
	if i < 0 {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	if s.userTaken(u) {
		return fmt.Errorf("user %q: %w", u.Username, ErrConflict)
	}
	prev := s.users[i]
	if u.PasswordHash == "" {
		u.PasswordHash = prev.PasswordHash
	}
	if u.Avatar == "" {
		u.Avatar = prev.Avatar
	}
	u.CreatedAt = prev.CreatedAt
	u.UpdatedAt = s.now().UTC()
	s.users[i] = *u
	return nil
}

func (s *MemoryStore) SetPassword(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.userIndex(id)
	if i < 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	s.users[i].PasswordHash = hash
	s.users[i].UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.userIndex(id)
	if i < 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	s.users = slices.Delete(s.users, i, i+1)
	delete(s.settings, id)
	return nil
}

// Roles

func cloneRole(r Role) Role {
	r.Permissions = slices.Clone(r.Permissions)
	return r
}

func (s *MemoryStore) ListRoles(_ context.Context, opts ListOptions) ([]Role, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, total := page(s.roles, opts, func(r *Role) bool {
		return matches(opts.Search, r.Name, r.Description)
	})
	for i := range out {
		out[i] = cloneRole(out[i])
	}
	return out, total, nil
}

func (s *MemoryStore) roleIndex(id string) int {
	return slices.IndexFunc(s.roles, func(r Role) bool { return r.ID == id })
}

func (s *MemoryStore) GetRole(_ context.Context, id string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.roleIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("role %s: %w", id, ErrNotFound)
	}
	r := cloneRole(s.roles[i])
	return &r, nil
}

func (s *MemoryStore) GetRoleByName(_ context.Context, name string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.roles, func(r Role) bool { return strings.EqualFold(r.Name, name) })
	if i < 0 {
		return nil, fmt.Errorf("role %q: %w", name, ErrNotFound)
	}
	r := cloneRole(s.roles[i])
	return &r, nil
}

func (s *MemoryStore) roleTaken(r *Role) bool {
	return slices.ContainsFunc(s.roles, func(o Role) bool {
		return o.ID != r.ID && strings.EqualFold(o.Name, r.Name)
	})
}

func (s *MemoryStore) CreateRole(_ context.Context, r *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if s.roleTaken(r) {
		return fmt.Errorf("role %q: %w", r.Name, ErrConflict)
	}
	r.CreatedAt = s.now().UTC()
	s.roles = append(s.roles, cloneRole(*r))
	return nil
}

// UpdateRole renames cascade to the users holding the role.
func (s *MemoryStore) UpdateRole(_ context.Context, r *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.roleIndex(r.ID)
	if i < 0 {
		return fmt.Errorf("role %s: %w", r.ID, ErrNotFound)
	}
	if s.roleTaken(r) {
		return fmt.Errorf("role %q: %w", r.Name, ErrConflict)
	}
	prev := s.roles[i]
	r.CreatedAt = prev.CreatedAt
	s.roles[i] = cloneRole(*r)
	if prev.Name != r.Name {
		for j := range s.users {
			if s.users[j].Role == prev.Name {
				s.users[j].Role = r.Name
			}
		}
	}
	return nil
}

// DeleteRole refuses to remove a role that users still hold.
func (s *MemoryStore) DeleteRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.roleIndex(id)
	if i < 0 {
		return fmt.Errorf("role %s: %w", id, ErrNotFound)
	}
	name := s.roles[i].Name
	if slices.ContainsFunc(s.users, func(u User) bool { return u.Role == name }) {
		return fmt.Errorf("role %q is assigned to users: %w", name, ErrConflict)
	}
	s.roles = slices.Delete(s.roles, i, i+1)
	return nil
}

// Products

func (s *MemoryStore) ListProducts(_ context.Context, opts ListOptions) ([]Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, total := page(s.products, opts, func(p *Product) bool {
		return matches(opts.Search, p.Name, p.Category)
	})
	return out, total, nil
}

func (s *MemoryStore) productIndex(id string) int {
	return slices.IndexFunc(s.products, func(p Product) bool { return p.ID == id })
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.productIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	p := s.products[i]
	return &p, nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if s.productIndex(p.ID) >= 0 {
		return fmt.Errorf("product %s: %w", p.ID, ErrConflict)
	}
	p.CreatedAt = s.now().UTC()
	p.UpdatedAt = p.CreatedAt
	s.products = append(s.products, *p)
	return nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.productIndex(p.ID)
	if i < 0 {
		return fmt.Errorf("product %s: %w", p.ID, ErrNotFound)
	}
	p.CreatedAt = s.products[i].CreatedAt
	p.UpdatedAt = s.now().UTC()
	s.products[i] = *p
	return nil
}

func (s *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.productIndex(id)
	if i < 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	s.products = slices.Delete(s.products, i, i+1)
	return nil
}

// Settings

func (s *MemoryStore) GetSettings(_ context.Context, userID string) (SystemSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.settings[userID]; ok {
		return st, nil
	}
	return DefaultSettings(), nil
}

func (s *MemoryStore) SaveSettings(_ context.Context, userID string, st SystemSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userIndex(userID) < 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	s.settings[userID] = st
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}

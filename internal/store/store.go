// Package store holds the dashboard's users, roles, products and per-user
// settings. MemoryStore serves the demo data; PostgresStore persists it.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Store is the persistence surface the handlers depend on.
type Store interface {
	ListUsers(ctx context.Context, opts ListOptions) ([]User, int, error)
	GetUser(ctx context.Context, id string) (*User, error)
	// GetUserByLogin matches on username or email.
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	SetPassword(ctx context.Context, id, hash string) error
	DeleteUser(ctx context.Context, id string) error

	ListRoles(ctx context.Context, opts ListOptions) ([]Role, int, error)
	GetRole(ctx context.Context, id string) (*Role, error)
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	CreateRole(ctx context.Context, r *Role) error
	UpdateRole(ctx context.Context, r *Role) error
	DeleteRole(ctx context.Context, id string) error

	ListProducts(ctx context.Context, opts ListOptions) ([]Product, int, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id string) error

	// GetSettings returns DefaultSettings when the user has none saved.
	GetSettings(ctx context.Context, userID string) (SystemSettings, error)
	SaveSettings(ctx context.Context, userID string, s SystemSettings) error

	Ping(ctx context.Context) error
	Close()
}

// Seed data mirrors the demo accounts and catalogue.
type seedUser struct {
	username, email, name, role string
	created                     time.Time
}

var seedUsers = []seedUser{
	{"admin", "admin@example.com", "System Administrator", "admin", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	{"user1", "user1@example.com", "User One", "user", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	{"user2", "user2@example.com", "User Two", "user", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
}

func seedRoles() []Role {
	return []Role{
		{
			Name:        "admin",
			Description: "Full access to every part of the dashboard",
			Permissions: append([]string(nil), AllPermissions...),
			Status:      StatusActive,
			CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			Name:        "editor",
			Description: "Can view and edit content",
			Permissions: []string{PermUserView, PermProductView, PermProductCreate, PermProductEdit, PermProfileSetting},
			Status:      StatusActive,
			CreatedAt:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			Name:        "user",
			Description: "Can view content and manage their own profile",
			Permissions: []string{PermUserView, PermProductView, PermProfileSetting},
			Status:      StatusActive,
			CreatedAt:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			Name:        "viewer",
			Description: "Read-only access",
			Permissions: []string{PermProductView},
			Status:      StatusInactive,
			CreatedAt:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		},
	}
}

func seedProducts() []Product {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Product{
		{Name: "Product A", Price: 100, Stock: 1000, Category: "Electronics", CreatedAt: at, UpdatedAt: at},
		{Name: "Product B", Price: 200, Stock: 500, Category: "Office Supplies", CreatedAt: at, UpdatedAt: at},
		{Name: "Product C", Price: 300, Stock: 2000, Category: "Home Goods", CreatedAt: at, UpdatedAt: at},
	}
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

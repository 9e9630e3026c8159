package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS roles (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	permissions TEXT[] NOT NULL DEFAULT '{}',
	status      TEXT NOT NULL DEFAULT 'active',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	role          TEXT NOT NULL REFERENCES roles(name) ON UPDATE CASCADE,
	avatar        TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	department    TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS products (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	price      DOUBLE PRECISION NOT NULL CHECK (price >= 0),
	stock      INTEGER NOT NULL CHECK (stock >= 0),
	category   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_settings (
	user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	data    JSONB NOT NULL
);
`

// PostgresStore persists the dashboard data through a pgx pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore wraps an open pool. The store owns the pool from here on.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

// Migrate creates the tables when they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Seed loads the demo roles, accounts and products into an empty database.
func (s *PostgresStore) Seed(ctx context.Context, passwordHash string) error {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("seed: count users: %w", err)
	}
	if count > 0 {
		s.logger.Debug("database already seeded", "users", count)
		return nil
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, r := range seedRoles() {
			_, err := tx.Exec(ctx,
				`INSERT INTO roles (id, name, description, permissions, status, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (name) DO NOTHING`,
				uuid.New(), r.Name, r.Description, r.Permissions, r.Status, r.CreatedAt)
			if err != nil {
				return fmt.Errorf("seed role %s: %w", r.Name, err)
			}
		}
		for _, u := range seedUsers {
			_, err := tx.Exec(ctx,
				`INSERT INTO users (id, username, email, name, role, avatar, password_hash, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
				uuid.New(), u.username, u.email, u.name, u.role, AvatarFor(u.username), passwordHash, u.created)
			if err != nil {
				return fmt.Errorf("seed user %s: %w", u.username, err)
			}
		}
		for _, p := range seedProducts() {
			_, err := tx.Exec(ctx,
				`INSERT INTO products (id, name, price, stock, category, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
				uuid.New(), p.Name, p.Price, p.Stock, p.Category, p.CreatedAt)
			if err != nil {
				return fmt.Errorf("seed product %s: %w", p.Name, err)
			}
		}
		s.logger.Info("database seeded with demo data")
		return nil
	})
}

// mapError turns driver errors into the store sentinels.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", what, ErrConflict)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s is still referenced: %w", what, ErrConflict)
		case "22P02": // invalid_text_representation, e.g. a malformed uuid
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func requireRow(tag pgconn.CommandTag, what string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func limitArg(opts ListOptions) any {
	if opts.Limit <= 0 {
		return nil // LIMIT NULL means no limit
	}
	return opts.Limit
}

func searchArg(opts ListOptions) string {
	return "%" + opts.Search + "%"
}

// Users

const userColumns = `id::text, username, email, name, role, avatar, phone, department, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.Role, &u.Avatar,
		&u.Phone, &u.Department, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, opts ListOptions) ([]User, int, error) {
	where := `WHERE username ILIKE $1 OR email ILIKE $1 OR name ILIKE $1`

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users `+where, searchArg(opts)).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count users")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users `+where+` ORDER BY created_at, username LIMIT $2 OFFSET $3`,
		searchArg(opts), limitArg(opts), max(opts.Offset, 0))
	if err != nil {
		return nil, 0, mapError(err, "list users")
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, mapError(err, "scan user")
		}
		users = append(users, *u)
	}
	return users, total, mapError(rows.Err(), "list users")
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "user "+id)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)`, login))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("user %q", login))
	}
	return u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Avatar == "" {
		u.Avatar = AvatarFor(u.Username)
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, email, name, role, avatar, phone, department, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		u.ID, u.Username, u.Email, u.Name, u.Role, u.Avatar, u.Phone, u.Department, u.PasswordHash,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return mapError(err, fmt.Sprintf("user %q", u.Username))
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *User) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET username = $2, email = $3, name = $4, role = $5,
		        avatar = COALESCE(NULLIF($6, ''), avatar), phone = $7, department = $8,
		        password_hash = COALESCE(NULLIF($9, ''), password_hash), updated_at = NOW()
		 WHERE id = $1
		 RETURNING avatar, password_hash, created_at, updated_at`,
		u.ID, u.Username, u.Email, u.Name, u.Role, u.Avatar, u.Phone, u.Department, u.PasswordHash,
	).Scan(&u.Avatar, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return mapError(err, "user "+u.ID)
}

func (s *PostgresStore) SetPassword(ctx context.Context, id, hash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return mapError(err, "user "+id)
	}
	return requireRow(tag, "user "+id)
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "user "+id)
	}
	return requireRow(tag, "user "+id)
}

// Roles

const roleColumns = `id::text, name, description, permissions, status, created_at`

func scanRole(row pgx.Row) (*Role, error) {
	var r Role
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Permissions, &r.Status, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) ListRoles(ctx context.Context, opts ListOptions) ([]Role, int, error) {
	where := `WHERE name ILIKE $1 OR description ILIKE $1`

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles `+where, searchArg(opts)).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count roles")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles `+where+` ORDER BY created_at, name LIMIT $2 OFFSET $3`,
		searchArg(opts), limitArg(opts), max(opts.Offset, 0))
	if err != nil {
		return nil, 0, mapError(err, "list roles")
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, 0, mapError(err, "scan role")
		}
		roles = append(roles, *r)
	}
	return roles, total, mapError(rows.Err(), "list roles")
}

func (s *PostgresStore) GetRole(ctx context.Context, id string) (*Role, error) {
	r, err := scanRole(s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "role "+id)
	}
	return r, nil
}

func (s *PostgresStore) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	r, err := scanRole(s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE LOWER(name) = LOWER($1)`, name))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("role %q", name))
	}
	return r, nil
}

func (s *PostgresStore) CreateRole(ctx context.Context, r *Role) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO roles (id, name, description, permissions, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		r.ID, r.Name, r.Description, r.Permissions, r.Status,
	).Scan(&r.CreatedAt)
	return mapError(err, fmt.Sprintf("role %q", r.Name))
}

func (s *PostgresStore) UpdateRole(ctx context.Context, r *Role) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, permissions = $4, status = $5
		 WHERE id = $1 RETURNING created_at`,
		r.ID, r.Name, r.Description, r.Permissions, r.Status,
	).Scan(&r.CreatedAt)
	return mapError(err, "role "+r.ID)
}

func (s *PostgresStore) DeleteRole(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "role "+id)
	}
	return requireRow(tag, "role "+id)
}

// Products

const productColumns = `id::text, name, price, stock, category, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, opts ListOptions) ([]Product, int, error) {
	where := `WHERE name ILIKE $1 OR category ILIKE $1`

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products `+where, searchArg(opts)).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count products")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products `+where+` ORDER BY created_at, name LIMIT $2 OFFSET $3`,
		searchArg(opts), limitArg(opts), max(opts.Offset, 0))
	if err != nil {
		return nil, 0, mapError(err, "list products")
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, mapError(err, "scan product")
		}
		products = append(products, *p)
	}
	return products, total, mapError(rows.Err(), "list products")
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "product "+id)
	}
	return p, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO products (id, name, price, stock, category)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Price, p.Stock, p.Category,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapError(err, "product "+p.ID)
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p *Product) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE products SET name = $2, price = $3, stock = $4, category = $5, updated_at = NOW()
		 WHERE id = $1 RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Price, p.Stock, p.Category,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapError(err, "product "+p.ID)
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "product "+id)
	}
	return requireRow(tag, "product "+id)
}

// Settings

func (s *PostgresStore) GetSettings(ctx context.Context, userID string) (SystemSettings, error) {
	st := DefaultSettings()
	err := s.pool.QueryRow(ctx, `SELECT data FROM user_settings WHERE user_id = $1`, userID).Scan(&st)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return DefaultSettings(), mapError(err, "settings "+userID)
	}
	return st, nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, userID string, st SystemSettings) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_settings (user_id, data) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data`,
		userID, st)
	return mapError(err, "settings "+userID)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

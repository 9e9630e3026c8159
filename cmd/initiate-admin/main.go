package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"admin_dashboard/internal/config"
	"admin_dashboard/internal/security"
	"admin_dashboard/internal/store"

	"golang.org/x/term"
)

// errAdminExists stops the prompt when an administrator is already set up.
var errAdminExists = errors.New("admin user already exists")

func main() {
	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	// Load configuration
	cfg, err := config.LoadConfig(logger)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DB_URL is required; the in-memory store already ships an admin account")
	}

	ctx := context.Background()
	pool, err := config.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	st := store.NewPostgresStore(pool, logger)
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	readPassword := func() ([]byte, error) {
		return term.ReadPassword(int(os.Stdin.Fd()))
	}
	err = initiateAdmin(ctx, st, security.NewPasswordHasher(), os.Stdin, readPassword, os.Stdout)
	switch {
	case errors.Is(err, errAdminExists):
		fmt.Println("Admin user already exists. Exiting.")
	case err != nil:
		log.Fatalf("Failed to create admin user: %v", err)
	default:
		fmt.Println("Admin user created successfully")
	}
}

// initiateAdmin prompts for the first administrator and stores it. The
// password is read through readPassword so it is never echoed.
func initiateAdmin(ctx context.Context, st store.Store, hasher *security.PasswordHasher, in io.Reader, readPassword func() ([]byte, error), out io.Writer) error {
	exists, err := adminExists(ctx, st)
	if err != nil {
		return fmt.Errorf("check for existing admin: %w", err)
	}
	if exists {
		return errAdminExists
	}

	reader := bufio.NewScanner(in)
	ask := func(prompt string) string {
		fmt.Fprintln(out, prompt)
		reader.Scan()
		return strings.TrimSpace(reader.Text())
	}

	fmt.Fprintln(out, "Initiating admin user creation")
	user := &store.User{Role: "admin"}
	user.Username = ask("Enter username:")

	fmt.Fprintln(out, "Enter password:")
	passwordBytes, err := readPassword()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	fmt.Fprintln(out) // newline after the hidden input
	password := string(passwordBytes)

	user.Email = ask("Enter email:")
	user.Name = ask("Enter full name:")

	if err := user.Validate(); err != nil {
		return err
	}
	if err := security.CheckPasswordStrength(password); err != nil {
		return fmt.Errorf("password: %w", err)
	}
	user.PasswordHash, err = hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return st.CreateUser(ctx, user)
}

func adminExists(ctx context.Context, st store.Store) (bool, error) {
	const page = 100
	for offset := 0; ; offset += page {
		users, total, err := st.ListUsers(ctx, store.ListOptions{Limit: page, Offset: offset})
		if err != nil {
			return false, err
		}
		for _, u := range users {
			if u.Role == "admin" {
				return true, nil
			}
		}
		if offset+page >= total || len(users) == 0 {
			return false, nil
		}
	}
}

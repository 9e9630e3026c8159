package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"admin_dashboard/internal/security"
	"admin_dashboard/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastHasher(t *testing.T) *security.PasswordHasher {
	t.Helper()
	h := security.NewPasswordHasher()
	require.NoError(t, h.SetParams(1024, 1, 1))
	return h
}

func password(p string) func() ([]byte, error) {
	return func() ([]byte, error) { return []byte(p), nil }
}

func TestInitiateAdmin_CreatesFirstAdmin(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	hasher := fastHasher(t)
	in := strings.NewReader("root\nroot@example.com\nRoot User\n")
	var out bytes.Buffer

	require.NoError(t, initiateAdmin(ctx, st, hasher, in, password("s3cretpass"), &out))
	assert.Contains(t, out.String(), "Enter full name:")

	u, err := st.GetUserByLogin(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Role)
	assert.Equal(t, "Root User", u.Name)
	ok, err := hasher.Verify("s3cretpass", u.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	err = initiateAdmin(ctx, st, hasher, strings.NewReader(""), password("x"), &out)
	assert.ErrorIs(t, err, errAdminExists)
}

func TestInitiateAdmin_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		password func() ([]byte, error)
		want     string
	}{
		{"bad email", "root\nnot-an-email\nRoot\n", password("s3cretpass"), "email"},
		{"short username", "ro\nroot@example.com\nRoot\n", password("s3cretpass"), "username"},
		{"weak password", "root\nroot@example.com\nRoot\n", password("short"), "password"},
		{"unreadable password", "root\n", func() ([]byte, error) { return nil, errors.New("not a terminal") }, "read password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			err := initiateAdmin(context.Background(), st, fastHasher(t), strings.NewReader(tt.input), tt.password, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			_, total, err := st.ListUsers(context.Background(), store.ListOptions{Limit: 10})
			require.NoError(t, err)
			assert.Zero(t, total)
		})
	}
}

func TestAdminExists_SeededStore(t *testing.T) {
	exists, err := adminExists(context.Background(), store.NewSeededMemoryStore("hash"))
	require.NoError(t, err)
	assert.True(t, exists)
}

package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2 configuration parameters (recommended by OWASP)
const (
	DefaultMemory      = 64 * 1024 // 64 MB
	DefaultIterations  = 3
	DefaultParallelism = 2
	DefaultSaltLength  = 16
	DefaultKeyLength   = 32
)

var (
	ErrInvalidHash      = errors.New("invalid hash format")
	ErrWeakPassword     = errors.New("password does not meet strength requirements")
	ErrIncompatibleHash = errors.New("incompatible hash version")
)

// PasswordHasher hashes with Argon2id. Verify also accepts bcrypt hashes so
// accounts imported from older systems can still sign in.
type PasswordHasher struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

// NewPasswordHasher creates a new password hasher with default Argon2id settings
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{
		memory:      DefaultMemory,
		iterations:  DefaultIterations,
		parallelism: DefaultParallelism,
		saltLength:  DefaultSaltLength,
		keyLength:   DefaultKeyLength,
	}
}

// Hash returns $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
func (ph *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, ph.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, ph.iterations, ph.memory, ph.parallelism, ph.keyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, ph.memory, ph.iterations, ph.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// Verify checks password against an Argon2id or bcrypt hash.
func (ph *PasswordHasher) Verify(password, encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
		}
		return true, nil
	}

	params, salt, hash, err := ph.decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	otherHash := argon2.IDKey([]byte(password), salt, params.iterations, params.memory, params.parallelism, params.keyLength)
	return subtle.ConstantTimeCompare(hash, otherHash) == 1, nil
}

// NeedsRehash reports whether encodedHash should be replaced by a fresh
// Argon2id hash with the current parameters.
func (ph *PasswordHasher) NeedsRehash(encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return true
	}
	params, _, _, err := ph.decodeHash(encodedHash)
	if err != nil {
		return true
	}
	return params.memory != ph.memory || params.iterations != ph.iterations || params.parallelism != ph.parallelism
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

type hashParams struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

func (ph *PasswordHasher) decodeHash(encodedHash string) (*hashParams, []byte, []byte, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, nil, ErrIncompatibleHash
	}

	params := &hashParams{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.iterations, &params.parallelism); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid salt: %w", err)
	}
	params.saltLength = uint32(len(salt))

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid hash: %w", err)
	}
	params.keyLength = uint32(len(hash))

	return params, salt, hash, nil
}

// SetParams configures Argon2id parameters
func (ph *PasswordHasher) SetParams(memory, iterations uint32, parallelism uint8) error {
	if memory < 1024 {
		return fmt.Errorf("memory must be at least 1024 KB")
	}
	if iterations < 1 {
		return fmt.Errorf("iterations must be at least 1")
	}
	if parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1")
	}

	ph.memory = memory
	ph.iterations = iterations
	ph.parallelism = parallelism
	return nil
}

// PasswordStrength checks password strength
type PasswordStrength struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireNumber bool
}

// DefaultPasswordStrength requires eight characters with a letter and a
// digit. The demo password is exempt because it is only ever seeded.
func DefaultPasswordStrength() *PasswordStrength {
	return &PasswordStrength{
		MinLength:     8,
		RequireLower:  true,
		RequireNumber: true,
	}
}

// Check validates a password against strength requirements
func (ps *PasswordStrength) Check(password string) error {
	if len(password) < ps.MinLength {
		return fmt.Errorf("%w: minimum length is %d", ErrWeakPassword, ps.MinLength)
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case char >= 'A' && char <= 'Z':
			hasUpper = true
		case char >= 'a' && char <= 'z':
			hasLower = true
		case char >= '0' && char <= '9':
			hasNumber = true
		}
	}

	if ps.RequireUpper && !hasUpper {
		return fmt.Errorf("%w: must contain uppercase letter", ErrWeakPassword)
	}
	if ps.RequireLower && !hasLower {
		return fmt.Errorf("%w: must contain lowercase letter", ErrWeakPassword)
	}
	if ps.RequireNumber && !hasNumber {
		return fmt.Errorf("%w: must contain number", ErrWeakPassword)
	}
	return nil
}

// HashPassword is a convenience function for hashing passwords
func HashPassword(password string) (string, error) {
	return NewPasswordHasher().Hash(password)
}

// VerifyPassword is a convenience function for verifying passwords
func VerifyPassword(password, hash string) (bool, error) {
	return NewPasswordHasher().Verify(password, hash)
}

// CheckPasswordStrength is a convenience function for checking password strength
func CheckPasswordStrength(password string) error {
	return DefaultPasswordStrength().Check(password)
}

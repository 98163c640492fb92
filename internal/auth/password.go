package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordMismatch   = errors.New("password does not match")
	ErrUnsupportedHash    = errors.New("unsupported password hash format")
	ErrMalformedArgonHash = errors.New("malformed argon2id hash")
)

// Argon2id parameters (m=19 MiB, t=2, p=1).
const (
	argonMemory  uint32 = 19 * 1024
	argonTime    uint32 = 2
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

// Upper bounds accepted when verifying a stored hash.
const (
	maxArgonMemory uint32 = 256 * 1024
	maxArgonTime   uint32 = 16
	maxArgonKeyLen        = 128
)

// dummyHash is compared against when the user does not exist so that
// login timing does not reveal which usernames are registered.
var dummyHash = mustHash("dummy password for timing equalisation")

// GeneratePasswordHash returns a PHC-formatted argon2id hash.
func GeneratePasswordHash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// ComparePasswordHash checks a password against an argon2id hash, or a
// bcrypt hash for credentials created before the switch to argon2id.
func ComparePasswordHash(hashedPassword []byte, password string) error {
	hash := string(hashedPassword)

	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return compareArgon2id(hash, password)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		err := bcrypt.CompareHashAndPassword(hashedPassword, []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	default:
		return ErrUnsupportedHash
	}
}

// CompareDummyHash burns the same amount of work as a real comparison.
func CompareDummyHash(password string) {
	_ = ComparePasswordHash([]byte(dummyHash), password)
}

// Fingerprint derives the value stored in each session so that sessions
// stop validating once the password hash changes.
func Fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:])
}

// FingerprintsEqual compares two fingerprints in constant time.
func FingerprintsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func compareArgon2id(hash, password string) error {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		return ErrMalformedArgonHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return ErrMalformedArgonHash
	}
	if version != argon2.Version {
		return ErrUnsupportedHash
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return ErrMalformedArgonHash
	}
	if threads < 1 || time < 1 || time > maxArgonTime || memory < 8*uint32(threads) || memory > maxArgonMemory {
		return ErrMalformedArgonHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ErrMalformedArgonHash
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 || len(expected) > maxArgonKeyLen {
		return ErrMalformedArgonHash
	}

	actual := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(expected)))
	if subtle.ConstantTimeCompare(actual, expected) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

func mustHash(password string) string {
	hash, err := GeneratePasswordHash(password)
	if err != nil {
		panic(err)
	}
	return hash
}

package auth

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGeneratePasswordHash_Format(t *testing.T) {
	hash, err := GeneratePasswordHash("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$"))
	assert.NotContains(t, hash, "correct horse battery staple")
	assert.Len(t, strings.Split(hash, "$"), 6)
}

func TestGeneratePasswordHash_IsSalted(t *testing.T) {
	first, err := GeneratePasswordHash("correct horse battery staple")
	require.NoError(t, err)
	second, err := GeneratePasswordHash("correct horse battery staple")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestComparePasswordHash_Argon2id(t *testing.T) {
	hash, err := GeneratePasswordHash("correct horse battery staple")
	require.NoError(t, err)

	assert.NoError(t, ComparePasswordHash([]byte(hash), "correct horse battery staple"))
	assert.ErrorIs(t, ComparePasswordHash([]byte(hash), "hunter2"), ErrPasswordMismatch)
}

func TestComparePasswordHash_LongPassword(t *testing.T) {
	long := strings.Repeat("ё", 256)
	hash, err := GeneratePasswordHash(long)
	require.NoError(t, err)

	assert.NoError(t, ComparePasswordHash([]byte(hash), long))
	assert.ErrorIs(t, ComparePasswordHash([]byte(hash), long[:len(long)-2]), ErrPasswordMismatch)
}

func TestComparePasswordHash_LegacyBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("testpass"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, ComparePasswordHash(hash, "testpass"))
	assert.ErrorIs(t, ComparePasswordHash(hash, "wrongpass"), ErrPasswordMismatch)
}

func TestComparePasswordHash_BadInput(t *testing.T) {
	tests := []struct {
		name string
		hash string
		want error
	}{
		{name: "plaintext", hash: "correct horse battery staple", want: ErrUnsupportedHash},
		{name: "empty", hash: "", want: ErrUnsupportedHash},
		{name: "truncated argon", hash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA", want: ErrMalformedArgonHash},
		{name: "bad params", hash: "$argon2id$v=19$m=x,t=2,p=1$c2FsdA$a2V5", want: ErrMalformedArgonHash},
		{name: "bad salt", hash: "$argon2id$v=19$m=19456,t=2,p=1$!!!$a2V5", want: ErrMalformedArgonHash},
		{name: "zero parallelism", hash: "$argon2id$v=19$m=19456,t=2,p=0$c2FsdA$a2V5", want: ErrMalformedArgonHash},
		{name: "zero time", hash: "$argon2id$v=19$m=19456,t=0,p=1$c2FsdA$a2V5", want: ErrMalformedArgonHash},
		{name: "huge time", hash: "$argon2id$v=19$m=19456,t=1000,p=1$c2FsdA$a2V5", want: ErrMalformedArgonHash},
		{name: "huge memory", hash: "$argon2id$v=19$m=4194304,t=2,p=1$c2FsdA$a2V5", want: ErrMalformedArgonHash},
		{name: "memory below threads", hash: "$argon2id$v=19$m=4,t=2,p=1$c2FsdA$a2V5", want: ErrMalformedArgonHash},
		{name: "threads overflow", hash: "$argon2id$v=19$m=19456,t=2,p=300$c2FsdA$a2V5", want: ErrMalformedArgonHash},
		{name: "other version", hash: "$argon2id$v=16$m=19456,t=2,p=1$c2FsdA$a2V5", want: ErrUnsupportedHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() {
				err = ComparePasswordHash([]byte(tt.hash), "whatever")
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$a2V5")
	b := Fingerprint("$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$a2V6")

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.True(t, FingerprintsEqual(a, Fingerprint("$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$a2V5")))
	assert.False(t, FingerprintsEqual(a, b))
	assert.False(t, FingerprintsEqual(a, ""))
}

func TestCurrentPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("present", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		want := &Principal{UserID: uuid.New(), Username: "alice"}
		SetPrincipal(c, want)

		got, err := CurrentPrincipal(c)
		require.NoError(t, err)
		assert.Same(t, want, got)
	})

	t.Run("missing", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())

		got, err := CurrentPrincipal(c)
		assert.ErrorIs(t, err, ErrPrincipalNotFound)
		assert.Nil(t, got)
	})

	t.Run("wrong type", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(PrincipalKey, "alice")

		_, err := CurrentPrincipal(c)
		assert.ErrorIs(t, err, ErrPrincipalNotFound)
	})
}

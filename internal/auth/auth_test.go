package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/canaryerr"
)

func TestIssueAndVerify(t *testing.T) {
	gate := NewGate("test-secret", time.Hour)

	token, err := gate.IssueToken("u-1", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, err := gate.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", identity.UserID)
	assert.Equal(t, "alice", identity.Username)
}

func TestVerifyExpiredToken(t *testing.T) {
	gate := NewGate("test-secret", -time.Minute)

	token, err := gate.IssueToken("u-1", "alice")
	require.NoError(t, err)

	_, err = gate.Verify(token)
	assert.ErrorIs(t, err, canaryerr.ErrAuth)
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := NewGate("secret-a", time.Hour).IssueToken("u-1", "alice")
	require.NoError(t, err)

	_, err = NewGate("secret-b", time.Hour).Verify(token)
	assert.ErrorIs(t, err, canaryerr.ErrAuth)
}

func TestVerifyGarbage(t *testing.T) {
	gate := NewGate("test-secret", time.Hour)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := gate.Verify(token)
		assert.ErrorIs(t, err, canaryerr.ErrAuth, "token %q", token)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	require.NotEqual(t, "hunter22", hash)

	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}

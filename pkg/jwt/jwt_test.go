package jwt

import (
	"testing"

	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	token, err := GenerateToken("u1", 5, "secret", 1)
	require.NoError(t, err)

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserId)
	assert.Equal(t, 5, claims.PlatformId)
	assert.Equal(t, Issuer, claims.Issuer)

	_, err = ParseToken(token, "other")
	assert.ErrorIs(t, err, errcode.ErrTokenInvalid)

	expired, err := GenerateToken("u1", 5, "secret", -1)
	require.NoError(t, err)
	_, err = ParseToken(expired, "secret")
	assert.ErrorIs(t, err, errcode.ErrTokenInvalid)
}

func TestValidateToken(t *testing.T) {
	token, err := GenerateToken("u1", 5, "secret", 1)
	require.NoError(t, err)

	tests := []struct {
		name     string
		userId   string
		platform int
		wantErr  error
	}{
		{"match", "u1", 5, nil},
		{"other user", "u2", 5, errcode.ErrTokenMismatch},
		{"other platform", "u1", 1, errcode.ErrTokenMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(token, "secret", tt.userId, tt.platform)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

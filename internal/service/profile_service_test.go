package service

import (
	"context"
	"testing"

	"github.com/mbeoliero/ringlink/internal/repository/memstore"
	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileService(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := NewProfileService(store, "CN")

	_, err := svc.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, errcode.ErrProfileNotFound)

	info, err := svc.UpdateProfile(ctx, "u1", &UpdateProfileRequest{Nickname: " Dora ", Number: "138 0013 8000"})
	require.NoError(t, err)
	assert.Equal(t, "Dora", info.Nickname)
	assert.True(t, info.NumberBound)
	assert.Equal(t, "861******8000", info.Number)

	stored, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "+8613800138000", stored.Number)

	t.Run("keeps fields left empty", func(t *testing.T) {
		info, err := svc.UpdateProfile(ctx, "u1", &UpdateProfileRequest{})
		require.NoError(t, err)
		assert.Equal(t, "Dora", info.Nickname)
		assert.True(t, info.NumberBound)
	})

	t.Run("rejects invalid numbers", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, "u1", &UpdateProfileRequest{Number: "12"})
		assert.ErrorIs(t, err, errcode.ErrInvalidNumber)
	})
}

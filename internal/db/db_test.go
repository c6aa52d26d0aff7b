package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_CreatesSchema(t *testing.T) {
	ctx := context.Background()
	pool, err := Connect(ctx, ":memory:")
	require.NoError(t, err)
	defer pool.Close()

	var tables []string
	require.NoError(t, pool.SelectContext(ctx, &tables,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'games') ORDER BY name"))
	assert.Equal(t, []string{"games", "users"}, tables)

	// Running it twice is harmless.
	assert.NoError(t, InitializeSchema(ctx, pool))
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "redis://:bad:port/x")
	assert.Error(t, err)
}

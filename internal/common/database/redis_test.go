// internal/common/database/redis_test.go
package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"book-availability/internal/common/config"
)

func TestRedisStatus(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	c := NewRedis(config.RedisConfig{Address: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	assert.NoError(t, c.Ping(ctx))
	assert.Equal(t, StatusConnected, c.Status(ctx))

	mr.Close()
	assert.Error(t, c.Ping(ctx))
	assert.Equal(t, StatusDisconnected, c.Status(ctx))
}

func TestRedisStatus_Nil(t *testing.T) {
	var c *RedisClient
	assert.Equal(t, StatusDisconnected, c.Status(context.Background()))
}

package cache

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ MarkerLists = (*MarkerCache)(nil)
	_ MarkerLists = (*RedisMarkerCache)(nil)
)

func TestMarkersKey(t *testing.T) {
	assert.Equal(t, "markers:plan:42", markersKey(42))
}

func TestRedisMarkerCache_UnreachableIsAnError(t *testing.T) {
	// grab a free port and close it so nothing listens there
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := NewRedisMarkerCache(RedisConfig{Addr: addr, TTL: time.Minute})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, ok, err := c.Get(ctx, 1)
	assert.Error(t, err, "a dead server is not a cache miss")
	assert.False(t, ok)
	assert.Error(t, c.Ping(ctx))
}

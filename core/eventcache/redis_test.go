package eventcache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("EVSIM_REDIS_ADDR")
	if addr == "" {
		t.Skip("EVSIM_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(RedisConfig{Address: addr, Prefix: "evsim-test:" + uuid.NewString() + ":", TTL: time.Minute})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "entry", []byte("payload")))
	data, err := s.Load(ctx, "entry")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestRedisConfigDefaults(t *testing.T) {
	var c RedisConfig
	c.SetDefaults()
	assert.Equal(t, "localhost:6379", c.Address)
	assert.Equal(t, "evsim:events:", c.Prefix)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Zero(t, c.TTL)
}

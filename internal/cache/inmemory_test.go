package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Minute)
	key := GenerateKey(PrefixHealth, "processor")

	assert.Equal(t, "health:v1::processor", key)

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, true, 0)
	v, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, true, v)

	c.Set(ctx, key, false, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, true, 0)
	c.Delete(ctx, key)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)
}

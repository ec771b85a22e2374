package ephemeral_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsmart/authcore/pkg/ephemeral"
)

func TestRedisStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := ephemeral.NewRedisStore(client, "eph:")

	require.NoError(t, store.Put(ctx, "link:tok", []byte(`{"user":"1"}`), 5*time.Minute))
	assert.True(t, mr.Exists("eph:link:tok"))

	got, err := store.Take(ctx, "link:tok")
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":"1"}`, string(got))

	_, err = store.Take(ctx, "link:tok")
	assert.ErrorIs(t, err, ephemeral.ErrNotFound)

	require.NoError(t, store.Put(ctx, "state:tok", []byte("x"), 10*time.Minute))
	mr.FastForward(10 * time.Minute)
	_, err = store.Take(ctx, "state:tok")
	assert.ErrorIs(t, err, ephemeral.ErrNotFound)

	assert.ErrorIs(t, store.Put(ctx, "k", nil, -time.Second), ephemeral.ErrInvalidTTL)

	mr.Close()
	_, err = store.Take(ctx, "any")
	assert.ErrorIs(t, err, ephemeral.ErrStoreUnavailable)
}

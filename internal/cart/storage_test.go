package cart

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorage_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStorage(filepath.Join(dir, "nested"))
	ctx := context.Background()

	_, err := fs.Load(ctx, "guest")
	assert.ErrorIs(t, err, ErrNotStored)

	s := Open(ctx, fs, "guest")
	require.NoError(t, s.AddItem(wax, nil))

	again := Open(ctx, fs, "guest")
	assert.Equal(t, 1, again.Count())
}

func TestFileStorage_SanitizesKey(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStorage(dir)
	require.NoError(t, fs.Save(context.Background(), "../../etc/passwd", []byte("[]")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cart-______etc_passwd.json", entries[0].Name())
}

func TestRedisStorage_RoundTripWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	rs := NewRedisStorage(client)
	ctx := context.Background()

	_, err := rs.Load(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotStored)

	s := Open(ctx, rs, "c1")
	require.NoError(t, s.AddItem(kit, kit.Variation(21)))
	require.NoError(t, s.AddItem(kit, kit.Variation(21)))

	assert.True(t, mr.Exists("cart:c1"))
	assert.Greater(t, mr.TTL("cart:c1").Hours(), float64(24))

	again := Open(ctx, rs, "c1")
	assert.Equal(t, 2, again.Count())
}

func TestRedisStorage_UnavailableIsSwallowedByStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := Open(context.Background(), NewRedisStorage(client), "c2")
	mr.Close()

	require.NoError(t, s.AddItem(wax, nil))
	assert.Equal(t, 1, s.Count())
}

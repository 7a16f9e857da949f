package cart

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/redis/go-redis/v9"

	"github.com/MikeMC777/motodetail-shop/internal/redisx"
)

var ErrNotStored = errors.New("cart not stored")

// Storage keeps the serialized cart.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
}

var unsafeKey = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// FileStorage keeps one JSON file per cart key under Dir.
type FileStorage struct {
	Dir string
}

func NewFileStorage(dir string) *FileStorage { return &FileStorage{Dir: dir} }

func (f *FileStorage) path(key string) string {
	return filepath.Join(f.Dir, "cart-"+unsafeKey.ReplaceAllString(key, "_")+".json")
}

func (f *FileStorage) Load(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotStored
	}
	return b, err
}

// Save writes to a temp file and renames it over the old cart.
func (f *FileStorage) Save(_ context.Context, key string, blob []byte) error {
	if err := os.MkdirAll(f.Dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.Dir, ".cart-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}

// RedisStorage keeps carts in Redis so several client processes share one cart.
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(client *redis.Client) *RedisStorage { return &RedisStorage{client: client} }

func (r *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, fmt.Sprintf(redisx.KeyCart, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotStored
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return b, nil
}

func (r *RedisStorage) Save(ctx context.Context, key string, blob []byte) error {
	if err := r.client.Set(ctx, fmt.Sprintf(redisx.KeyCart, key), blob, redisx.TTLCart).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

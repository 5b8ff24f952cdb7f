package cartstore

import (
	"context"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/cart"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 30 * 24 * time.Hour

// RedisStorageは端末をまたいでカートを共有するときに使う（キー: cart:<session>）
type RedisStorage struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

func NewRedisStorage(rdb redis.Cmdable, session string, ttl time.Duration) *RedisStorage {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStorage{rdb: rdb, key: "cart:" + session, ttl: ttl}
}

func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	opt.DialTimeout = 2 * time.Second
	opt.ReadTimeout = 500 * time.Millisecond
	opt.WriteTimeout = 500 * time.Millisecond
	return redis.NewClient(opt), nil
}

func (r *RedisStorage) Load(ctx context.Context) ([]byte, error) {
	raw, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrEmptySnapshot
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get cart")
	}
	return raw, nil
}

//保存のたびにTTLを延ばす
func (r *RedisStorage) Save(ctx context.Context, snapshot []byte) error {
	return errors.Wrap(r.rdb.Set(ctx, r.key, snapshot, r.ttl).Err(), "redis set cart")
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "xmltv-enrich:"

// Redis is a Store backed by a shared Redis instance, letting multiple
// runs (and multiple hosts) join on the same lookup keys. Backend errors
// degrade to cache misses so an unreachable Redis slows a run down but
// never fails it.
type Redis struct {
	client redis.Cmdable
	log    hclog.Logger
}

// NewRedis connects to host:port. The connection is lazy; a dead backend
// only shows up as misses at Get/Set time.
func NewRedis(host string, port int, password string, log hclog.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &Redis{client: client, log: log.Named("cache")}
}

// NewRedisWithClient wraps an existing client, for tests.
func NewRedisWithClient(client redis.Cmdable, log hclog.Logger) *Redis {
	return &Redis{client: client, log: log.Named("cache")}
}

func (r *Redis) Get(ctx context.Context, key string) (Entry, bool) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Debug("cache get failed, treating as miss", "key", key, "error", err)
		}
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		r.log.Debug("cache entry corrupt, treating as miss", "key", key, "error", err)
		return Entry{}, false
	}
	return entry, true
}

func (r *Redis) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) {
	data, err := json.Marshal(entry)
	if err != nil {
		r.log.Debug("cache entry not serializable", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		r.log.Debug("cache set failed", "key", key, "error", err)
	}
}

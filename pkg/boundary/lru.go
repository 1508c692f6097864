package boundary

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const lruShards = 16

// LRU is an in-process Cache. Entries are spread over shards by scope, and
// expire after a fixed time to live.
type LRU struct {
	shards [lruShards]*expirable.LRU[Key, time.Duration]
}

// NewLRU creates a cache holding about size entries. A ttl of zero disables
// expiration.
func NewLRU(size int, ttl time.Duration) *LRU {
	perShard := size / lruShards
	if perShard < 1 {
		perShard = 1
	}
	var c LRU
	for i := range c.shards {
		c.shards[i] = expirable.NewLRU[Key, time.Duration](perShard, nil, ttl)
	}
	return &c
}

func (c *LRU) shard(k Key) *expirable.LRU[Key, time.Duration] {
	return c.shards[xxhash.Sum64String(k.Scope)%lruShards]
}

func (c *LRU) Get(_ context.Context, k Key) (time.Duration, bool, error) {
	v, ok := c.shard(k).Get(k)
	return v, ok, nil
}

func (c *LRU) Set(_ context.Context, k Key, v time.Duration) error {
	c.shard(k).Add(k, v)
	return nil
}

func (c *LRU) DeleteMany(_ context.Context, keys []Key) error {
	for _, k := range keys {
		c.shard(k).Remove(k)
	}
	return nil
}

func (c *LRU) Len() int {
	var n int
	for _, s := range c.shards {
		n += s.Len()
	}
	return n
}

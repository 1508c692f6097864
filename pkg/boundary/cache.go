package boundary

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/grafana/flamekeeper/pkg/model"
)

// Key identifies a boundary: the one of a reason within a scope, or the
// global one of a reason.
type Key struct {
	Reason model.Reason
	Scope  string
	Global bool
}

func ScopeKey(scope string, r model.Reason) Key { return Key{Reason: r, Scope: scope} }

func GlobalKey(r model.Reason) Key { return Key{Reason: r, Global: true} }

// String renders the key for string keyed backends. Scopes are hashed to keep
// keys short.
func (k Key) String() string {
	suffix := k.Reason.Info().CacheKey
	if suffix == "" {
		suffix = strconv.FormatUint(uint64(k.Reason), 16)
	}
	if k.Global {
		return "boundary:g:" + suffix
	}
	return "boundary:" + strconv.FormatUint(xxhash.Sum64String(k.Scope), 16) + ":" + suffix
}

// Cache holds computed boundaries. It may be shared between processes and
// may lose entries at any time.
type Cache interface {
	Get(ctx context.Context, k Key) (time.Duration, bool, error)
	Set(ctx context.Context, k Key, v time.Duration) error
	DeleteMany(ctx context.Context, keys []Key) error
}

// NopCache never holds anything.
type NopCache struct{}

func (NopCache) Get(context.Context, Key) (time.Duration, bool, error) { return 0, false, nil }

func (NopCache) Set(context.Context, Key, time.Duration) error { return nil }

func (NopCache) DeleteMany(context.Context, []Key) error { return nil }

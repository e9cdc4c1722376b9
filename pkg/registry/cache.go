package registry

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/constants"
)

// Cached memoizes Search and Fetch results of a Client. Errors are not cached.
// Parent resolution searches the same names over and over during a batch run,
// so one run shares one Cached per registry.
type Cached struct {
	Client
	store *gocache.Cache
}

var _ Client = (*Cached)(nil)

// NewCached wraps c with a TTL cache. A zero ttl uses the default.
func NewCached(c Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = constants.CacheTTL
	}
	return &Cached{
		Client: c,
		store:  gocache.New(ttl, constants.CacheCleanupInterval),
	}
}

// Search implements Client.
func (c *Cached) Search(ctx context.Context, name string) ([]Candidate, error) {
	key := "search:" + catalog.NameKey(name)
	if v, ok := c.store.Get(key); ok {
		return v.([]Candidate), nil
	}
	res, err := c.Client.Search(ctx, name)
	if err != nil {
		return nil, err
	}
	c.store.SetDefault(key, res)
	return res, nil
}

// Fetch implements Client.
func (c *Cached) Fetch(ctx context.Context, remoteID string) (*Detail, error) {
	key := "fetch:" + remoteID
	if v, ok := c.store.Get(key); ok {
		return v.(*Detail), nil
	}
	res, err := c.Client.Fetch(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	c.store.SetDefault(key, res)
	return res, nil
}

// Flush drops every cached entry.
func (c *Cached) Flush() {
	c.store.Flush()
}

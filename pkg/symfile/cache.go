package symfile

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of lookups a provider remembers.
const DefaultCacheSize = 512

type lookupState int

const (
	unresolved lookupState = iota
	found
	notFound
)

type lookup struct {
	state lookupState
	path  string
}

// cache remembers both found and missing symbol files keyed by build UUID and architecture.
type cache struct {
	entries *lru.Cache[string, lookup]
}

func newCache(size int) (*cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, lookup](size)
	if err != nil {
		return nil, err
	}
	return &cache{entries: entries}, nil
}

func cacheKey(buildUUID, arch string) string {
	return buildUUID + ":" + arch
}

func (c *cache) get(key string) lookup {
	if l, ok := c.entries.Get(key); ok {
		return l
	}
	return lookup{state: unresolved}
}

func (c *cache) setFound(key, path string) {
	c.entries.Add(key, lookup{state: found, path: path})
}

func (c *cache) setNotFound(key string) {
	c.entries.Add(key, lookup{state: notFound})
}

package tsqlb

import (
	"log/slog"
	r "reflect"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Default capacity of a clause cache, in entries.
const DefaultCacheSize = 2000

/*
Kind of cached structural clause. There is no kind for "where": where-clause
text depends on argument values through the null rewrite, and is never cached.
*/
type ClauseKind byte

const (
	ClauseSelect ClauseKind = iota
	ClauseSelectCount
	ClauseInsert
	ClauseUpdate
	ClauseDelete
	ClauseOrderBy
)

// Implement `fmt.Stringer`.
func (self ClauseKind) String() string {
	switch self {
	case ClauseSelect:
		return `Select`
	case ClauseSelectCount:
		return `SelectCount`
	case ClauseInsert:
		return `Insert`
	case ClauseUpdate:
		return `Update`
	case ClauseDelete:
		return `Delete`
	case ClauseOrderBy:
		return `OrderBy`
	default:
		return `Unknown`
	}
}

/*
Key of a cached clause. `.Shape` is a canonical rendering of the structure of
the projection or ordering involved, and must never contain argument values.
Empty `.Shape` means the clause depends only on the entity type. `.Meta` is the
resolver that described the type: column text depends on its introspector, so
envs sharing one cache with different resolvers get separate entries.
*/
type CacheKey struct {
	Type  r.Type
	Kind  ClauseKind
	Shape string
	Meta  *Resolver
}

// Implement `fmt.Stringer`. Used for logging.
func (self CacheKey) String() string {
	return `[` + self.Kind.String() + `]{Type:` + typeName(self.Type) + `;Shape:` + self.Shape + `}`
}

/*
Deduplication key for concurrent misses. Unlike `.String`, distinguishes types
that share a package path and name, such as function-local types, and keys of
different resolvers.
*/
func (self CacheKey) flightKey() string {
	return self.String() +
		`#` + strconv.FormatUint(uint64(pointerOf(self.Type)), 16) +
		`#` + strconv.FormatUint(uint64(pointerOf(self.Meta)), 16)
}

// Snapshot of cache counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Len       int
}

/*
Bounded store of structural SQL text, safe for concurrent use. Entries never
expire; when the cache is full, the least recently used entry is evicted.

The only access pattern is `.GetOrCompute`. Concurrent misses on the same key
run the compute function once and share its result. Eviction only ever costs a
recomputation. A nil `*Cache`, or one created with a non-positive size, is
valid and always recomputes.

A cache is typically created once per process via `Env` and never reset.
*/
type Cache struct {
	lru   *lru.Cache[CacheKey, string]
	group singleflight.Group
	log   *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Makes a cache with the given capacity. Nil logger means `slog.Default()`.
func NewCache(size int, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	out := &Cache{log: log}

	if size <= 0 {
		log.Debug(`clause cache disabled`, `size`, size)
		return out
	}

	store, err := lru.NewWithEvict(size, out.onEvict)
	if err != nil {
		log.Debug(`clause cache unavailable, recomputing every clause`, `err`, err)
		return out
	}
	out.lru = store
	return out
}

func (self *Cache) onEvict(key CacheKey, _ string) {
	self.evictions.Add(1)
	self.log.Debug(`clause cache eviction`, `key`, key.String())
}

/*
Returns the cached text for the key, or computes, stores and returns it. Errors
from the compute function are returned as-is and are not cached. The cache
itself never fails: when unavailable, it simply calls `fun`.
*/
func (self *Cache) GetOrCompute(key CacheKey, fun func() (string, error)) (string, error) {
	if self == nil || self.lru == nil {
		return fun()
	}

	val, ok := self.lru.Get(key)
	if ok {
		self.hits.Add(1)
		return val, nil
	}

	out, err, _ := self.group.Do(key.flightKey(), func() (any, error) {
		val, ok := self.lru.Get(key)
		if ok {
			self.hits.Add(1)
			return val, nil
		}

		self.misses.Add(1)
		self.log.Debug(`clause cache miss`, `key`, key.String())

		val, err := fun()
		if err != nil {
			return ``, err
		}

		// A concurrent insert under the same key holds identical text,
		// so keeping either one is correct.
		self.lru.ContainsOrAdd(key, val)
		return val, nil
	})
	if err != nil {
		return ``, err
	}
	return out.(string), nil
}

// Returns the current amount of entries.
func (self *Cache) Len() int {
	if self == nil || self.lru == nil {
		return 0
	}
	return self.lru.Len()
}

// Reports whether the key is currently cached, without touching recency.
func (self *Cache) Has(key CacheKey) bool {
	return self != nil && self.lru != nil && self.lru.Contains(key)
}

// Returns a snapshot of the counters.
func (self *Cache) Stats() CacheStats {
	if self == nil {
		return CacheStats{}
	}
	return CacheStats{
		Hits:      self.hits.Load(),
		Misses:    self.misses.Load(),
		Evictions: self.evictions.Load(),
		Len:       self.Len(),
	}
}

/*
Drops all entries and zeroes the counters. Provided for tests; production code
should not need to reset a cache, since entries never go stale.
*/
func (self *Cache) Purge() {
	if self == nil {
		return
	}
	if self.lru != nil {
		self.lru.Purge()
	}
	self.hits.Store(0)
	self.misses.Store(0)
	self.evictions.Store(0)
}

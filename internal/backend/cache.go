package backend

import (
	"container/list"
	"sync"

	"github.com/weftvm/weft/internal/ir"
)

// DefaultCacheCap is the default kernel cache capacity in programs.
const DefaultCacheCap = 256

// Cache is a bounded LRU of compiled kernels keyed by structural hash.
// Structurally identical programs from different steps share one
// compiled kernel, so steady-state reduction compiles almost nothing.
type Cache struct {
	mu    sync.Mutex
	cap   int
	ll    *list.List
	items map[string]*list.Element

	hits      uint64
	misses    uint64
	evictions uint64
}

type cacheEntry struct {
	key    string
	kernel *CompiledKernel
}

// NewCache returns a cache holding at most cap kernels. A cap of zero
// or less selects DefaultCacheCap.
func NewCache(cap int) *Cache {
	if cap <= 0 {
		cap = DefaultCacheCap
	}
	return &Cache{
		cap:   cap,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

// Get looks up a kernel and marks it most recently used.
func (c *Cache) Get(key string) (*CompiledKernel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).kernel, true
}

// Put inserts a kernel, evicting the least recently used entry when
// the cache is full. Inserting an existing key refreshes it.
func (c *Cache) Put(key string, k *CompiledKernel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).kernel = k
		c.ll.MoveToFront(el)
		return
	}
	if c.ll.Len() >= c.cap {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
		c.evictions++
	}
	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, kernel: k})
}

// GetOrCompile returns the cached kernel for p, compiling and caching
// it on a miss.
func (c *Cache) GetOrCompile(p *ir.Program, dev Device) (*CompiledKernel, error) {
	key := ir.StructuralHash(p)
	if k, ok := c.Get(key); ok {
		return k, nil
	}
	k, err := dev.Compile(p)
	if err != nil {
		return nil, err
	}
	c.Put(key, k)
	return k, nil
}

// Len reports the number of cached kernels.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats snapshots the hit, miss, and eviction counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
}

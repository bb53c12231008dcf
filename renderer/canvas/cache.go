package canvasrenderer

import (
	"image"
	"sync"
	"sync/atomic"
)

// DefaultCacheBytes 为进程级字形缓存的默认容量。
const DefaultCacheBytes = 64 << 20

// GlyphKey 唯一确定一个光栅化后的字形遮罩。
type GlyphKey struct {
	Font string
	Size int
	Rune rune
	Halo int
}

// Glyph 是光栅化结果：Mask 为覆盖度，Offset 为遮罩左上角相对字形步进框左上角的偏移。
type Glyph struct {
	Mask    *image.Alpha
	Offset  image.Point
	Advance float64
}

func (g *Glyph) byteSize() int {
	if g == nil || g.Mask == nil {
		return 64
	}
	return len(g.Mask.Pix) + 64
}

type cacheEntry struct {
	glyph *Glyph
	size  int
	hits  atomic.Uint32
}

// GlyphCache 是并发安全、有容量上限的字形遮罩缓存。
// 空间不足时从少量样本中淘汰命中次数最少的条目；
// 条目被淘汰只会导致重新光栅化，不影响输出结果。
type GlyphCache struct {
	mu      sync.RWMutex
	entries map[GlyphKey]*cacheEntry
	limit   int
	used    int
	peak    int
}

// NewGlyphCache 创建容量为 maxBytes 的缓存；maxBytes <= 0 时不缓存任何字形。
func NewGlyphCache(maxBytes int) *GlyphCache {
	if maxBytes < 0 {
		maxBytes = 0
	}
	return &GlyphCache{
		entries: make(map[GlyphKey]*cacheEntry, 128),
		limit:   maxBytes,
	}
}

var (
	sharedCacheOnce sync.Once
	sharedCache     *GlyphCache
)

// SharedCache 返回进程级的默认字形缓存，多个 Renderer 可共用。
func SharedCache() *GlyphCache {
	sharedCacheOnce.Do(func() {
		sharedCache = NewGlyphCache(DefaultCacheBytes)
	})
	return sharedCache
}

// Get 查询缓存。
func (c *GlyphCache) Get(key GlyphKey) (*Glyph, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	entry.hits.Add(1)
	return entry.glyph, true
}

// Put 写入缓存；单个字形超过容量上限或腾不出空间时直接放弃。
func (c *GlyphCache) Put(key GlyphKey, g *Glyph) {
	const maxEvictions = 4

	size := g.byteSize()
	c.mu.Lock()
	defer c.mu.Unlock()
	if size > c.limit {
		return
	}
	if _, exists := c.entries[key]; exists {
		return
	}
	for attempt := 0; c.used+size > c.limit && attempt < maxEvictions; attempt++ {
		if !c.evictLocked() {
			break
		}
	}
	if c.used+size > c.limit {
		return
	}
	c.entries[key] = &cacheEntry{glyph: g, size: size}
	c.used += size
	if c.used > c.peak {
		c.peak = c.used
	}
}

// evictLocked 在前若干个条目中淘汰命中最少的一个，调用方需持有写锁。
func (c *GlyphCache) evictLocked() bool {
	const sampleSize = 10

	var (
		victim  GlyphKey
		found   bool
		lowest  uint32
		sampled int
	)
	for key, entry := range c.entries {
		hits := entry.hits.Load()
		if !found || hits < lowest {
			victim, lowest, found = key, hits, true
		}
		sampled++
		if sampled >= sampleSize {
			break
		}
	}
	if !found {
		return false
	}
	c.used -= c.entries[victim].size
	delete(c.entries, victim)
	return true
}

// GetOrCreate 命中时直接返回，否则调用 create 生成并写入缓存。
func (c *GlyphCache) GetOrCreate(key GlyphKey, create func() (*Glyph, error)) (*Glyph, error) {
	if g, ok := c.Get(key); ok {
		return g, nil
	}
	g, err := create()
	if err != nil {
		return nil, err
	}
	c.Put(key, g)
	return g, nil
}

// Len 返回缓存的字形数量。
func (c *GlyphCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ByteSize 返回当前占用的近似字节数。
func (c *GlyphCache) ByteSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.used
}

// PeakSize 返回缓存生命周期内的最大占用，可用于调整容量。
func (c *GlyphCache) PeakSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peak
}

// Reset 清空缓存。
func (c *GlyphCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[GlyphKey]*cacheEntry, 128)
	c.used = 0
}

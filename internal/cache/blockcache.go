// Package cache implements the byte-budgeted in-memory cache of
// decompressed interaction blocks shared by the pixel selectors of one
// file.
package cache

import (
	"github.com/genomekit/hic/pixel"
)

// BlockKey identifies a decompressed block within a file.
type BlockKey struct {
	Chrom1ID uint32
	Chrom2ID uint32
	BlockID  uint64
}

// BlockCache holds decompressed blocks under a pixel-count budget
// derived from a byte capacity. Eviction is insertion-ordered.
type BlockCache struct {
	queue    []BlockKey
	blocks   map[BlockKey][]pixel.ThinPixel[float32]
	capacity uint64 // in pixels
	size     uint64 // in pixels

	hits   uint64
	misses uint64
}

// NewBlockCache sizes the cache in bytes.
func NewBlockCache(capacityBytes uint64) *BlockCache {
	return &BlockCache{
		blocks:   make(map[BlockKey][]pixel.ThinPixel[float32]),
		capacity: capacityBytes / pixel.SizeofThinPixel,
	}
}

// Find returns the cached block, or nil.
func (c *BlockCache) Find(key BlockKey) []pixel.ThinPixel[float32] {
	if blk, ok := c.blocks[key]; ok {
		c.hits++
		return blk
	}
	c.misses++
	return nil
}

// Insert stores a block, evicting oldest-first until it fits. The
// caller must not modify blk afterwards.
func (c *BlockCache) Insert(key BlockKey, blk []pixel.ThinPixel[float32]) {
	for c.size+uint64(len(blk)) > c.capacity && len(c.blocks) > 0 {
		c.popOldest()
	}
	if _, ok := c.blocks[key]; ok {
		return
	}
	c.queue = append(c.queue, key)
	c.blocks[key] = blk
	c.size += uint64(len(blk))
}

// Erase drops one block if present.
func (c *BlockCache) Erase(key BlockKey) bool {
	blk, ok := c.blocks[key]
	if !ok {
		return false
	}
	c.size -= uint64(len(blk))
	delete(c.blocks, key)
	return true
}

func (c *BlockCache) popOldest() {
	for len(c.queue) > 0 {
		key := c.queue[0]
		c.queue = c.queue[1:]
		if c.Erase(key) {
			return
		}
	}
}

// Clear drops every block and resets the hit/miss counters.
func (c *BlockCache) Clear() {
	c.blocks = make(map[BlockKey][]pixel.ThinPixel[float32])
	c.queue = nil
	c.size = 0
	c.ResetStats()
}

// SetCapacity changes the byte budget. Current contents are retained
// beyond the new limit unless shrink is set.
func (c *BlockCache) SetCapacity(capacityBytes uint64, shrink bool) {
	newCapacity := capacityBytes / pixel.SizeofThinPixel
	if shrink {
		for c.size > newCapacity && len(c.blocks) > 0 {
			c.popOldest()
		}
	}
	c.capacity = newCapacity
}

func (c *BlockCache) Len() int             { return len(c.blocks) }
func (c *BlockCache) Size() uint64         { return c.size }
func (c *BlockCache) SizeBytes() uint64    { return c.size * pixel.SizeofThinPixel }
func (c *BlockCache) Capacity() uint64     { return c.capacity }
func (c *BlockCache) CapacityBytes() uint64 { return c.capacity * pixel.SizeofThinPixel }
func (c *BlockCache) Hits() uint64         { return c.hits }
func (c *BlockCache) Misses() uint64       { return c.misses }

// HitRate returns hits/(hits+misses), or 0 before the first lookup.
func (c *BlockCache) HitRate() float64 {
	if c.hits+c.misses == 0 {
		return 0
	}
	return float64(c.hits) / float64(c.hits+c.misses)
}

func (c *BlockCache) ResetStats() {
	c.hits = 0
	c.misses = 0
}

package cache

import (
	"testing"

	"github.com/genomekit/hic/pixel"
)

func block(n int) []pixel.ThinPixel[float32] {
	return make([]pixel.ThinPixel[float32], n)
}

func TestBlockCacheEvictsOldestFirst(t *testing.T) {
	t.Parallel()
	// Budget for 100 pixels.
	c := NewBlockCache(100 * pixel.SizeofThinPixel)

	k1 := BlockKey{0, 0, 1}
	k2 := BlockKey{0, 0, 2}
	k3 := BlockKey{0, 1, 1}
	c.Insert(k1, block(40))
	c.Insert(k2, block(40))
	if c.Find(k1) == nil || c.Find(k2) == nil {
		t.Fatal("blocks missing before eviction")
	}

	// 40 + 40 + 40 > 100: the oldest block goes.
	c.Insert(k3, block(40))
	if c.Find(k1) != nil {
		t.Error("oldest block survived eviction")
	}
	if c.Find(k2) == nil || c.Find(k3) == nil {
		t.Error("newer blocks evicted")
	}

	if got, want := c.Size(), uint64(80); got != want {
		t.Errorf("Size() = %d, want %d", got, want)
	}
	if c.Hits() == 0 || c.Misses() == 0 {
		t.Errorf("hits = %d, misses = %d; want both > 0", c.Hits(), c.Misses())
	}
}

func TestBlockCacheSetCapacity(t *testing.T) {
	t.Parallel()
	c := NewBlockCache(100 * pixel.SizeofThinPixel)
	c.Insert(BlockKey{0, 0, 1}, block(40))
	c.Insert(BlockKey{0, 0, 2}, block(40))

	// Without shrink, contents are retained beyond the new budget.
	c.SetCapacity(10*pixel.SizeofThinPixel, false)
	if c.Len() != 2 {
		t.Errorf("Len() = %d after non-shrinking SetCapacity, want 2", c.Len())
	}

	c.SetCapacity(50*pixel.SizeofThinPixel, true)
	if c.Len() != 1 {
		t.Errorf("Len() = %d after shrinking SetCapacity, want 1", c.Len())
	}
	if c.Find(BlockKey{0, 0, 2}) == nil {
		t.Error("newest block evicted by shrink")
	}
}

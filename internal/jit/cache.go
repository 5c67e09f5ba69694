package jit

import (
	"sync"

	"github.com/xenoncore/xenoncore/internal/bus"
	"github.com/xenoncore/xenoncore/internal/mmu"
	"github.com/xenoncore/xenoncore/internal/ppuregs"
)

// Cache is the guest-PC-keyed block cache of spec.md section 4.5. It is
// shared by all six hardware threads, since a block compiled by one thread
// is equally valid for a sibling thread executing the same code page.
type Cache struct {
	mu     sync.RWMutex
	blocks map[uint64]*Block
	pages  []*page
}

// NewCache returns an empty block cache.
func NewCache() *Cache {
	return &Cache{blocks: make(map[uint64]*Block)}
}

// Lookup returns the cached block for pc if one exists and its guard
// generation still matches the current translation generation (spec.md
// section 4.5: "any tlbie/slbie... invalidates and evicts the affected
// blocks... a coarse flush is acceptable" — this cache takes the coarse
// option, lazily dropping any block whose generation is stale).
func (c *Cache) Lookup(pc uint64, generation uint64) (*Block, bool) {
	c.mu.RLock()
	blk, ok := c.blocks[pc]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if blk.guardGeneration != generation {
		c.mu.Lock()
		delete(c.blocks, pc)
		c.mu.Unlock()
		return nil, false
	}
	return blk, true
}

// Compile builds and installs a new block starting at pc. Each block gets
// its own freshly mmap'd page: once finalize() flips a page to executable
// it can never be written again, so pages are not packed with multiple
// blocks (spec.md section 4.5 permits a coarse-grained implementation; the
// per-block page is the simplest one that avoids a write-after-exec
// hazard).
func (c *Cache) Compile(pc uint64, b *bus.Bus, m *mmu.MMU, t *ppuregs.PPUThreadRegisters, generation uint64) (*Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pg, err := newPage()
	if err != nil {
		return nil, err
	}
	blk, err := Compile(pc, b, m, t, pg)
	if err != nil {
		return nil, err
	}
	if err := pg.finalize(); err != nil {
		return nil, err
	}
	c.pages = append(c.pages, pg)
	blk.guardGeneration = generation
	c.blocks[pc] = blk
	return blk, nil
}

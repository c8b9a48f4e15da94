// Package bufferpool implements the bounded LRU page cache in front of the
// page store, per spec §4.2. Grounded on bplustree/buffer_pool.go's
// pages-map + accessOrder-slice LRU idiom, adapted to cache raw pages
// instead of decoded B+-tree nodes (this layer sits below the B+-tree).
package bufferpool

import (
	"coredb/internal/page"

	"go.uber.org/zap"
)

// Pool is a bounded, LRU-evicting cache of pages backed by a page.Store.
type Pool struct {
	capacity    int
	pages       map[uint32]*page.Page
	dirty       map[uint32]bool
	accessOrder []uint32

	store *page.Store
	log   *zap.Logger

	hits   int64
	misses int64
}

// New constructs a pool with the given capacity in front of store.
func New(capacity int, store *page.Store, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		capacity: capacity,
		pages:    make(map[uint32]*page.Page),
		dirty:    make(map[uint32]bool),
		store:    store,
		log:      log,
	}
}

// Fetch returns the page for id, promoting it to most-recently-used on a
// hit. On a miss it evicts the LRU page (writing it back first if dirty)
// and loads the requested page via the page store.
func (p *Pool) Fetch(id uint32) (*page.Page, error) {
	if pg, ok := p.pages[id]; ok {
		p.hits++
		p.touch(id)
		return pg, nil
	}
	p.misses++

	if len(p.pages) >= p.capacity {
		if err := p.evictLRU(); err != nil {
			return nil, err
		}
	}

	pg, err := p.store.Read(id)
	if err != nil {
		return nil, err
	}
	if pg == nil {
		return nil, nil
	}
	p.addPage(pg)
	return pg, nil
}

// NewPage allocates a fresh page via the store and inserts it into the pool.
func (p *Pool) NewPage() (*page.Page, error) {
	id, err := p.store.Allocate()
	if err != nil {
		return nil, err
	}
	pg := page.New(id)
	if len(p.pages) >= p.capacity {
		if err := p.evictLRU(); err != nil {
			return nil, err
		}
	}
	p.addPage(pg)
	p.MarkDirty(id)
	return pg, nil
}

// MarkDirty records that the cached page must be written back before
// eviction or on flush.
func (p *Pool) MarkDirty(id uint32) {
	p.dirty[id] = true
}

// FlushDirty writes every dirty page via the page store and clears the
// dirty set.
func (p *Pool) FlushDirty() error {
	var toFlush []*page.Page
	for id := range p.dirty {
		if pg, ok := p.pages[id]; ok {
			toFlush = append(toFlush, pg)
		}
	}
	if len(toFlush) == 0 {
		return nil
	}
	if err := p.store.FlushAll(toFlush); err != nil {
		return err
	}
	p.dirty = make(map[uint32]bool)
	p.log.Debug("flushed dirty pages", zap.Int("count", len(toFlush)))
	return nil
}

// HitRate reports the observed cache hit rate since construction, for
// observability (spec §4.2: "hit-rate counters are maintained for
// observability").
func (p *Pool) HitRate() float64 {
	total := p.hits + p.misses
	if total == 0 {
		return 0
	}
	return float64(p.hits) / float64(total)
}

func (p *Pool) addPage(pg *page.Page) {
	p.pages[pg.Header.ID] = pg
	p.accessOrder = append(p.accessOrder, pg.Header.ID)
}

func (p *Pool) touch(id uint32) {
	for i, existing := range p.accessOrder {
		if existing == id {
			p.accessOrder = append(p.accessOrder[:i], p.accessOrder[i+1:]...)
			break
		}
	}
	p.accessOrder = append(p.accessOrder, id)
}

func (p *Pool) evictLRU() error {
	if len(p.accessOrder) == 0 {
		return nil
	}
	victim := p.accessOrder[0]
	p.accessOrder = p.accessOrder[1:]

	pg, ok := p.pages[victim]
	if !ok {
		return nil
	}
	if p.dirty[victim] {
		if err := p.store.Write(pg); err != nil {
			return err
		}
		delete(p.dirty, victim)
		p.log.Debug("evicted dirty page", zap.Uint32("page_id", victim))
	}
	delete(p.pages, victim)
	return nil
}

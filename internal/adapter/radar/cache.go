package radar

import (
	"container/list"
	"sync"

	"github.com/couchcryptid/rainarea-service/internal/domain"
)

// HistoryCache is a bounded LRU of snapshots built for historical requests.
// Published frames never change, so entries carry no expiry. A cache built
// with maxEntries <= 0 stores nothing.
type HistoryCache struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List // front is most recently used
	bySlot     map[domain.SlotID]*list.Element
}

type historyItem struct {
	slot domain.SlotID
	snap *domain.Snapshot
}

// NewHistoryCache creates an LRU holding at most maxEntries snapshots.
func NewHistoryCache(maxEntries int) *HistoryCache {
	return &HistoryCache{
		maxEntries: maxEntries,
		order:      list.New(),
		bySlot:     make(map[domain.SlotID]*list.Element),
	}
}

// Get returns the snapshot for slot and marks it most recently used.
func (c *HistoryCache) Get(slot domain.SlotID) (*domain.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.bySlot[slot]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*historyItem).snap, true
}

// Put stores snap, evicting the least recently used slot when over capacity.
func (c *HistoryCache) Put(slot domain.SlotID, snap *domain.Snapshot) {
	if c.maxEntries <= 0 || snap == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.bySlot[slot]; ok {
		el.Value.(*historyItem).snap = snap
		c.order.MoveToFront(el)
		return
	}
	c.bySlot[slot] = c.order.PushFront(&historyItem{slot: slot, snap: snap})

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.bySlot, oldest.Value.(*historyItem).slot)
	}
}

// Len reports the number of cached snapshots.
func (c *HistoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

package usecase

import (
	"container/list"
	"sync"
	"time"

	"github.com/netocloud/slack-relay/internal/biz/domain"
)

// DedupConfig contains deduplication window configuration
type DedupConfig struct {
	Window   time.Duration // How long an admitted key is remembered
	Capacity int           // Max number of remembered keys (oldest evicted first)
}

// DefaultDedupConfig covers Slack's retry schedule (immediately, 1 min, 5 min)
var DefaultDedupConfig = DedupConfig{
	Window:   10 * time.Minute,
	Capacity: 10000,
}

type dedupEntry struct {
	key    string
	seenAt time.Time
}

// Deduplicator remembers recently admitted delivery keys
type Deduplicator struct {
	cfg DedupConfig
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // oldest at front
}

// NewDeduplicator creates a new deduplicator
func NewDeduplicator(cfg DedupConfig) *Deduplicator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultDedupConfig.Window
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultDedupConfig.Capacity
	}
	return &Deduplicator{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Admit returns true the first time key is seen within the window and false
// on every later call. Check and insert happen under one lock.
func (d *Deduplicator) Admit(key domain.DeliveryKey) bool {
	k := key.String()
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.evictExpiredLocked(now)
	if _, ok := d.entries[k]; ok {
		return false
	}

	d.entries[k] = d.order.PushBack(&dedupEntry{key: k, seenAt: now})
	for d.order.Len() > d.cfg.Capacity {
		d.removeLocked(d.order.Front())
	}
	return true
}

// Retract forgets key so that a redelivery is admitted again
func (d *Deduplicator) Retract(key domain.DeliveryKey) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.entries[key.String()]; ok {
		d.removeLocked(el)
	}
}

// Sweep evicts expired keys and returns how many were removed
func (d *Deduplicator) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.evictExpiredLocked(d.now())
}

// Len returns the number of remembered keys
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}

func (d *Deduplicator) evictExpiredLocked(now time.Time) int {
	cutoff := now.Add(-d.cfg.Window)
	removed := 0
	for el := d.order.Front(); el != nil; el = d.order.Front() {
		if !el.Value.(*dedupEntry).seenAt.Before(cutoff) {
			break
		}
		d.removeLocked(el)
		removed++
	}
	return removed
}

func (d *Deduplicator) removeLocked(el *list.Element) {
	entry := d.order.Remove(el).(*dedupEntry)
	delete(d.entries, entry.key)
}

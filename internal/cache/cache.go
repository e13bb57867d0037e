// Package cache implements the three-tier content cache used by the
// generation pipeline: a small fast RAM tier, a larger RAM tier, and an
// unbounded disk tier that survives process restarts. Hits promote entries
// toward the faster tiers; overflow evicts the least recently used entry
// into the next tier down.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/scriptorium-ai/scriptorium/internal/lru"
)

// Default tier capacities, applied when the config leaves them zero.
const (
	DefaultTier1Max = 5000
	DefaultTier2Max = 50000
)

var (
	// ErrInvalidTier is returned by Set for tiers outside 1..3.
	ErrInvalidTier = errors.New("cache: tier must be 1, 2, or 3")

	// ErrDiskDisabled is returned by Set when tier 3 is requested but no
	// cache directory is configured.
	ErrDiskDisabled = errors.New("cache: disk tier is not configured")
)

// Config controls tier capacities and the disk tier location.
type Config struct {
	// Tier1Max is the entry capacity of the fastest tier.
	Tier1Max int

	// Tier2Max is the entry capacity of the second tier.
	Tier2Max int

	// Dir is the directory backing tier 3. Empty disables the disk tier.
	Dir string

	// DemoteToDisk controls what happens to tier-2 overflow: demoted to
	// tier 3 when true, dropped when false.
	DemoteToDisk bool
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	Requests uint64  `json:"requests"`
	HitRate  float64 `json:"hit_rate"`
	Tier1    int     `json:"tier1_entries"`
	Tier2    int     `json:"tier2_entries"`
}

// Cache is the tiered store. A single mutex guards all tiers so promotions
// are atomic with respect to a key: no observer can see a key in two tiers.
type Cache struct {
	mu     sync.Mutex
	cfg    Config
	logger *log.Logger

	tier1      map[string][]byte
	tier2      map[string][]byte
	tier1Order *lru.Tracker
	tier2Order *lru.Tracker
	disk       *diskStore

	hits   uint64
	misses uint64
}

// New creates a cache. Zero capacities fall back to the defaults; an empty
// Dir disables the disk tier, which is logged once so silent data loss on
// tier-2 overflow is visible.
func New(cfg Config, logger *log.Logger) (*Cache, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Tier1Max <= 0 {
		cfg.Tier1Max = DefaultTier1Max
	}
	if cfg.Tier2Max <= 0 {
		cfg.Tier2Max = DefaultTier2Max
	}

	c := &Cache{
		cfg:        cfg,
		logger:     logger,
		tier1:      make(map[string][]byte),
		tier2:      make(map[string][]byte),
		tier1Order: lru.NewTracker(),
		tier2Order: lru.NewTracker(),
	}

	if cfg.Dir != "" {
		disk, err := newDiskStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("cache: init disk tier: %w", err)
		}
		c.disk = disk
	} else {
		logger.Printf("cache: no directory configured, disk tier disabled")
	}

	return c, nil
}

// Get looks key up across the tiers. A tier-2 hit is promoted to tier 1,
// displacing tier 1's least recently used entry into tier 2 when full. A
// tier-3 hit is promoted to tier 2 only, so cold disk reads do not flood
// the hottest tier. A tier-3 entry that fails to decode counts as a miss;
// the corrupt file is logged and left in place for inspection.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value, ok := c.tier1[key]; ok {
		c.tier1Order.Touch(key)
		c.hits++
		return value, true
	}

	if value, ok := c.tier2[key]; ok {
		c.promoteToTier1Locked(key, value)
		c.hits++
		return value, true
	}

	if c.disk != nil {
		value, ok, err := c.disk.read(key)
		if err != nil {
			c.logger.Printf("cache: corrupt tier-3 entry for %q at %s: %v", key, c.disk.path(key), err)
		} else if ok {
			c.promoteToTier2Locked(key, value)
			if err := c.disk.remove(key); err != nil {
				c.logger.Printf("cache: removing promoted tier-3 file for %q: %v", key, err)
			}
			c.hits++
			return value, true
		}
	}

	c.misses++
	return nil, false
}

// Set inserts key at the requested tier, displacing it from any tier it
// already occupies. A full tier evicts its least recently used entry into
// the next tier down; tier-2 overflow is demoted to disk or dropped per
// the DemoteToDisk setting.
func (c *Cache) Set(key string, value []byte, tier int) error {
	if tier < 1 || tier > 3 {
		return ErrInvalidTier
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(key)

	switch tier {
	case 1:
		if len(c.tier1) >= c.cfg.Tier1Max {
			c.evictTier1Locked()
		}
		c.tier1[key] = value
		c.tier1Order.Touch(key)
	case 2:
		if len(c.tier2) >= c.cfg.Tier2Max {
			c.overflowTier2Locked()
		}
		c.tier2[key] = value
		c.tier2Order.Touch(key)
	case 3:
		if c.disk == nil {
			return ErrDiskDisabled
		}
		if err := c.disk.write(key, value); err != nil {
			return fmt.Errorf("cache: write tier-3 entry for %q: %w", key, err)
		}
	}

	return nil
}

// Delete removes key from whichever tier holds it.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// ClearRAMTiers empties tiers 1 and 2 without touching tier 3. Used under
// memory pressure; entries that only existed in RAM are gone afterwards.
func (c *Cache) ClearRAMTiers() {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := len(c.tier1) + len(c.tier2)
	c.tier1 = make(map[string][]byte)
	c.tier2 = make(map[string][]byte)
	c.tier1Order.Clear()
	c.tier2Order.Clear()
	c.logger.Printf("cache: cleared RAM tiers, dropped %d entries", dropped)
}

// KeyHash returns a short hex digest of s, for callers composing cache
// keys from arbitrary text such as prompts.
func KeyHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// Stats returns a snapshot of the running counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		Requests: c.hits + c.misses,
		Tier1:    len(c.tier1),
		Tier2:    len(c.tier2),
	}
	if s.Requests > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Requests)
	}
	return s
}

// promoteToTier1Locked moves a tier-2 resident into tier 1.
func (c *Cache) promoteToTier1Locked(key string, value []byte) {
	delete(c.tier2, key)
	c.tier2Order.Remove(key)

	if len(c.tier1) >= c.cfg.Tier1Max {
		c.evictTier1Locked()
	}
	c.tier1[key] = value
	c.tier1Order.Touch(key)
}

// promoteToTier2Locked moves a tier-3 resident into tier 2. The caller
// removes the disk file.
func (c *Cache) promoteToTier2Locked(key string, value []byte) {
	if len(c.tier2) >= c.cfg.Tier2Max {
		c.overflowTier2Locked()
	}
	c.tier2[key] = value
	c.tier2Order.Touch(key)
}

// evictTier1Locked demotes tier 1's least recently used entry into tier 2.
func (c *Cache) evictTier1Locked() {
	oldest, ok := c.tier1Order.Oldest()
	if !ok {
		return
	}
	value := c.tier1[oldest]
	delete(c.tier1, oldest)
	c.tier1Order.Remove(oldest)

	if len(c.tier2) >= c.cfg.Tier2Max {
		c.overflowTier2Locked()
	}
	c.tier2[oldest] = value
	c.tier2Order.Touch(oldest)
}

// overflowTier2Locked handles a full tier 2: the least recently used entry
// is demoted to disk when configured, otherwise dropped.
func (c *Cache) overflowTier2Locked() {
	oldest, ok := c.tier2Order.Oldest()
	if !ok {
		return
	}
	value := c.tier2[oldest]
	delete(c.tier2, oldest)
	c.tier2Order.Remove(oldest)

	if c.cfg.DemoteToDisk && c.disk != nil {
		if err := c.disk.write(oldest, value); err != nil {
			c.logger.Printf("cache: demoting %q to tier 3 failed, entry dropped: %v", oldest, err)
		}
		return
	}
	c.logger.Printf("cache: tier 2 full, dropped %q", oldest)
}

// removeLocked deletes key from every tier so a subsequent insert leaves it
// in exactly one place.
func (c *Cache) removeLocked(key string) {
	if _, ok := c.tier1[key]; ok {
		delete(c.tier1, key)
		c.tier1Order.Remove(key)
	}
	if _, ok := c.tier2[key]; ok {
		delete(c.tier2, key)
		c.tier2Order.Remove(key)
	}
	if c.disk != nil && c.disk.has(key) {
		if err := c.disk.remove(key); err != nil {
			c.logger.Printf("cache: removing tier-3 file for %q: %v", key, err)
		}
	}
}

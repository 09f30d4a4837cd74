package arp

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

// CacheSize is the fixed number of slots in the resolution cache.
const CacheSize = 64

// CacheEntry is a single slot in the cache.
type CacheEntry struct {
	IP        common.IPv4Address
	MAC       common.MACAddress
	Timestamp uint64
	Valid     bool
}

// Cache maps IPv4 addresses to MAC addresses in a fixed array of 64
// slots. At most one valid entry exists per IP. When the table is full,
// Add evicts the slot with the smallest timestamp; timestamps are never
// advanced past zero, so in practice eviction follows scan order. No
// entry ever expires.
//
// The mutex makes the table safe for concurrent receive and send paths;
// it is held only for the duration of a lookup or mutation.
type Cache struct {
	mu      sync.Mutex
	entries [CacheSize]CacheEntry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Lookup performs a linear scan for an exact IP match.
func (c *Cache) Lookup(ip common.IPv4Address) (common.MACAddress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		if c.entries[i].Valid && c.entries[i].IP == ip {
			return c.entries[i].MAC, true
		}
	}
	return common.MACAddress{}, false
}

// Add inserts or updates a mapping. An existing valid entry for the same
// IP is overwritten in place; otherwise the first invalid slot is used;
// otherwise the slot with the smallest timestamp is evicted (ties broken
// by scan order).
func (c *Cache) Add(ip common.IPv4Address, mac common.MACAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, firstFree, oldestIdx := -1, -1, 0
	oldest := ^uint64(0)
	for i := range c.entries {
		e := &c.entries[i]
		if !e.Valid {
			if firstFree == -1 {
				firstFree = i
			}
			continue
		}
		if e.IP == ip {
			existing = i
			break
		}
		if e.Timestamp < oldest {
			oldest = e.Timestamp
			oldestIdx = i
		}
	}

	slot := existing
	if slot == -1 {
		slot = firstFree
	}
	if slot == -1 {
		slot = oldestIdx
	}

	c.entries[slot] = CacheEntry{IP: ip, MAC: mac, Timestamp: 0, Valid: true}
}

// Clear invalidates every slot.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		c.entries[i].Valid = false
	}
}

// Len returns the number of valid entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for i := range c.entries {
		if c.entries[i].Valid {
			n++
		}
	}
	return n
}

// Entries returns a snapshot of the valid entries.
func (c *Cache) Entries() []CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []CacheEntry
	for i := range c.entries {
		if c.entries[i].Valid {
			out = append(out, c.entries[i])
		}
	}
	return out
}

// String returns a human-readable dump of the cache.
func (c *Cache) String() string {
	entries := c.Entries()
	var sb strings.Builder
	fmt.Fprintf(&sb, "ARP cache (%d/%d entries):\n", len(entries), CacheSize)
	for _, e := range entries {
		fmt.Fprintf(&sb, "  %s -> %s\n", e.IP, e.MAC)
	}
	return sb.String()
}

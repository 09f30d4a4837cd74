package arp

import (
	"testing"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

func TestCacheAddAndLookup(t *testing.T) {
	cache := NewCache()

	ip := common.IPv4Address{192, 168, 1, 1}
	mac := common.MACAddress{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

	cache.Add(ip, mac)

	got, found := cache.Lookup(ip)
	if !found {
		t.Fatal("Lookup() found = false, want true")
	}
	if got != mac {
		t.Errorf("Lookup() MAC = %v, want %v", got, mac)
	}

	if _, found := cache.Lookup(common.IPv4Address{192, 168, 1, 2}); found {
		t.Error("Lookup() for absent IP found = true, want false")
	}
}

func TestCacheOverwritesSameIP(t *testing.T) {
	cache := NewCache()

	ip := common.IPv4Address{10, 0, 0, 1}
	mac1 := common.MACAddress{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	mac2 := common.MACAddress{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

	cache.Add(ip, mac1)
	cache.Add(ip, mac2)

	got, found := cache.Lookup(ip)
	if !found || got != mac2 {
		t.Errorf("Lookup() after re-add = %v, %v, want %v, true", got, found, mac2)
	}
	if n := cache.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1 (one valid entry per IP)", n)
	}
}

func TestCacheFillsAllSlots(t *testing.T) {
	cache := NewCache()

	for i := 0; i < CacheSize; i++ {
		ip := common.IPv4Address{10, 0, byte(i >> 8), byte(i)}
		cache.Add(ip, common.MACAddress{0x02, 0, 0, 0, 0, byte(i)})
	}

	if n := cache.Len(); n != CacheSize {
		t.Fatalf("Len() = %d, want %d", n, CacheSize)
	}
	for i := 0; i < CacheSize; i++ {
		ip := common.IPv4Address{10, 0, byte(i >> 8), byte(i)}
		if _, found := cache.Lookup(ip); !found {
			t.Errorf("Lookup(%v) found = false after filling table", ip)
		}
	}
}

// TestCacheEviction exercises the evict-oldest policy on a full table.
// Timestamps are never advanced, so the first scanned slot is replaced.
func TestCacheEviction(t *testing.T) {
	cache := NewCache()

	for i := 0; i < CacheSize; i++ {
		ip := common.IPv4Address{10, 0, byte(i >> 8), byte(i)}
		cache.Add(ip, common.MACAddress{0x02, 0, 0, 0, 0, byte(i)})
	}

	extra := common.IPv4Address{172, 16, 0, 1}
	extraMAC := common.MACAddress{0x02, 0xFF, 0, 0, 0, 1}
	cache.Add(extra, extraMAC)

	if n := cache.Len(); n != CacheSize {
		t.Errorf("Len() = %d, want %d (eviction, not growth)", n, CacheSize)
	}
	if got, found := cache.Lookup(extra); !found || got != extraMAC {
		t.Errorf("Lookup(new entry) = %v, %v, want %v, true", got, found, extraMAC)
	}
	// The first slot in scan order was evicted.
	if _, found := cache.Lookup(common.IPv4Address{10, 0, 0, 0}); found {
		t.Error("Lookup(first inserted) found = true, want false after eviction")
	}
	// The second slot survived.
	if _, found := cache.Lookup(common.IPv4Address{10, 0, 0, 1}); !found {
		t.Error("Lookup(second inserted) found = false, want true")
	}
}

func TestCacheClear(t *testing.T) {
	cache := NewCache()
	cache.Add(common.IPv4Address{10, 0, 0, 1}, common.MACAddress{1, 2, 3, 4, 5, 6})
	cache.Clear()

	if n := cache.Len(); n != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", n)
	}
	if _, found := cache.Lookup(common.IPv4Address{10, 0, 0, 1}); found {
		t.Error("Lookup() after Clear() found = true, want false")
	}
}

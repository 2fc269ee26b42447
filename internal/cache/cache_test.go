package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"paygate/internal/models"
)

func newTestCache(ttl time.Duration) (*AddressCache, *time.Time) {
	c := New(ttl)
	now := time.Now()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestPutGet(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	defer c.Stop()

	rec := models.DepositRecord{Address: "0xabc", ExpectedAmount: "10000", ProvisioningRef: "pi_1"}
	c.Put("0xabc", rec)

	got, ok := c.Get("0xabc")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.ExpectedAmount != "10000" || got.ProvisioningRef != "pi_1" {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	defer c.Stop()

	if _, ok := c.Get("0xnothere"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestTTLExpiry(t *testing.T) {
	c, now := newTestCache(time.Minute)
	defer c.Stop()

	c.Put("0xabc", models.DepositRecord{Address: "0xabc"})

	*now = now.Add(59 * time.Second)
	if _, ok := c.Get("0xabc"); !ok {
		t.Fatal("entry expired before TTL elapsed")
	}

	*now = now.Add(2 * time.Second)
	if _, ok := c.Get("0xabc"); ok {
		t.Fatal("entry still live after TTL elapsed")
	}
}

func TestSweepDropsExpired(t *testing.T) {
	c, now := newTestCache(time.Minute)
	defer c.Stop()

	c.Put("0xold", models.DepositRecord{})
	*now = now.Add(2 * time.Minute)
	c.Put("0xnew", models.DepositRecord{})

	c.sweep()

	if c.Len() != 1 {
		t.Fatalf("expected 1 entry after sweep, got %d", c.Len())
	}
	if _, ok := c.Get("0xnew"); !ok {
		t.Fatal("live entry removed by sweep")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute)
	defer c.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		key := fmt.Sprintf("0x%02d", i)
		go func() {
			defer wg.Done()
			c.Put(key, models.DepositRecord{Address: key})
		}()
		go func() {
			defer wg.Done()
			c.Get(key)
		}()
	}
	wg.Wait()

	if c.Len() != 50 {
		t.Fatalf("expected 50 entries, got %d", c.Len())
	}
}

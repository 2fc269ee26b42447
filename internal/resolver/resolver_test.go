package resolver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"paygate/internal/cache"
	"paygate/internal/config"
	"paygate/internal/models"
	"paygate/internal/pricing"
)

type stubProvisioner struct {
	calls     int
	addresses []string
	err       error
}

func (s *stubProvisioner) Provision(ctx context.Context, amountMinor int64, currency string, opt config.PaymentOption) (string, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	addr := s.addresses[s.calls%len(s.addresses)]
	s.calls++
	return addr, fmt.Sprintf("pi_%d", s.calls), nil
}

var testOption = config.PaymentOption{
	Network:  "base-sepolia",
	Family:   config.FamilyEVM,
	Asset:    "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	Decimals: 6,
}

func newTestResolver(ttl time.Duration, prov *stubProvisioner) (*Resolver, *cache.AddressCache) {
	c := cache.New(ttl)
	r := &Resolver{
		Cache:       c,
		Provisioner: prov,
		Price:       pricing.Price{Currency: "USD", MinorUnits: 1},
	}
	return r, c
}

func TestResolveProvisionsWithoutClaim(t *testing.T) {
	prov := &stubProvisioner{addresses: []string{"0xAAAA000000000000000000000000000000000001"}}
	r, c := newTestResolver(time.Minute, prov)
	defer c.Stop()

	addr, err := r.ResolveDestination(context.Background(), "", testOption)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "0xaaaa000000000000000000000000000000000001" {
		t.Errorf("address not normalized: %q", addr)
	}
	if prov.calls != 1 {
		t.Errorf("provision calls = %d, want 1", prov.calls)
	}

	rec, ok := c.Get(addr)
	if !ok {
		t.Fatal("provisioned address not cached")
	}
	if rec.ExpectedAmount != "10000" {
		t.Errorf("ExpectedAmount = %q, want 10000", rec.ExpectedAmount)
	}
	if rec.ProvisioningRef != "pi_1" {
		t.Errorf("ProvisioningRef = %q, want pi_1", rec.ProvisioningRef)
	}
}

func TestResolveReusesCachedAddress(t *testing.T) {
	prov := &stubProvisioner{addresses: []string{"0xAAAA000000000000000000000000000000000001"}}
	r, c := newTestResolver(time.Minute, prov)
	defer c.Stop()

	first, err := r.ResolveDestination(context.Background(), "", testOption)
	if err != nil {
		t.Fatal(err)
	}

	// Case-varied claim must land on the same record.
	second, err := r.ResolveDestination(context.Background(), "0xAAAA000000000000000000000000000000000001", testOption)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Errorf("retry resolved %q, want reuse of %q", second, first)
	}

	third, err := r.ResolveDestination(context.Background(), first, testOption)
	if err != nil {
		t.Fatal(err)
	}
	if third != first {
		t.Errorf("second retry resolved %q, want %q", third, first)
	}

	if prov.calls != 1 {
		t.Errorf("provision calls = %d, want 1 (reuse path must not provision)", prov.calls)
	}
}

func TestResolveUnknownClaimFallsThrough(t *testing.T) {
	prov := &stubProvisioner{addresses: []string{"0xBBBB000000000000000000000000000000000002"}}
	r, c := newTestResolver(time.Minute, prov)
	defer c.Stop()

	addr, err := r.ResolveDestination(context.Background(), "0xSTALE00000000000000000000000000000000ff", testOption)
	if err != nil {
		t.Fatalf("stale claim must not error: %v", err)
	}
	if addr != "0xbbbb000000000000000000000000000000000002" {
		t.Errorf("address = %q", addr)
	}
	if prov.calls != 1 {
		t.Errorf("provision calls = %d, want 1", prov.calls)
	}
}

func TestResolveExpiredClaimProvisionsFresh(t *testing.T) {
	prov := &stubProvisioner{addresses: []string{
		"0xAAAA000000000000000000000000000000000001",
		"0xBBBB000000000000000000000000000000000002",
	}}
	r, c := newTestResolver(20*time.Millisecond, prov)
	defer c.Stop()

	first, err := r.ResolveDestination(context.Background(), "", testOption)
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(40 * time.Millisecond)

	second, err := r.ResolveDestination(context.Background(), first, testOption)
	if err != nil {
		t.Fatal(err)
	}
	if second == first {
		t.Error("expired address was reused")
	}
	if prov.calls != 2 {
		t.Errorf("provision calls = %d, want 2", prov.calls)
	}
}

func TestResolveProvisionerFailure(t *testing.T) {
	prov := &stubProvisioner{err: fmt.Errorf("upstream down")}
	r, c := newTestResolver(time.Minute, prov)
	defer c.Stop()

	if _, err := r.ResolveDestination(context.Background(), "", testOption); err == nil {
		t.Fatal("expected error when provisioning fails")
	}
}

type recordingJournal struct {
	records []models.DepositRecord
}

func (j *recordingJournal) InsertDepositAddress(ctx context.Context, rec models.DepositRecord) error {
	j.records = append(j.records, rec)
	return nil
}

func TestResolveJournalsProvisionedAddress(t *testing.T) {
	prov := &stubProvisioner{addresses: []string{"0xAAAA000000000000000000000000000000000001"}}
	r, c := newTestResolver(time.Minute, prov)
	defer c.Stop()

	journal := &recordingJournal{}
	r.Journal = journal

	addr, err := r.ResolveDestination(context.Background(), "", testOption)
	if err != nil {
		t.Fatal(err)
	}
	if len(journal.records) != 1 {
		t.Fatalf("journal records = %d, want 1", len(journal.records))
	}
	if journal.records[0].Address != addr {
		t.Errorf("journaled address %q, want %q", journal.records[0].Address, addr)
	}
}

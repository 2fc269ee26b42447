// Package resolver decides which deposit address a payment attempt should use.
package resolver

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"paygate/internal/cache"
	"paygate/internal/config"
	"paygate/internal/models"
	"paygate/internal/pricing"
)

// Provisioner issues a fresh receiving address for the given amount and option.
type Provisioner interface {
	Provision(ctx context.Context, amountMinor int64, currency string, opt config.PaymentOption) (address, reference string, err error)
}

// Journal records provisioned addresses for audit. Optional.
type Journal interface {
	InsertDepositAddress(ctx context.Context, rec models.DepositRecord) error
}

type Resolver struct {
	Cache       *cache.AddressCache
	Provisioner Provisioner
	Journal     Journal
	Price       pricing.Price
}

// ResolveDestination returns the receiving address for one payment option.
// A claimed destination that matches a live cache record is returned
// unchanged, so a client retrying a previously issued requirement is handed
// the same address its authorization was signed against. Anything else,
// including a claim whose address has expired from the cache, provisions a
// brand-new address; proof authenticity is the facilitator's job downstream.
func (r *Resolver) ResolveDestination(ctx context.Context, claimedTo string, opt config.PaymentOption) (string, error) {
	if claimedTo != "" {
		key := strings.ToLower(claimedTo)
		// Reuse only applies to the option the address was provisioned for;
		// other options still get their own destination.
		if rec, ok := r.Cache.Get(key); ok && rec.Network == opt.Network {
			return key, nil
		}
	}

	addr, ref, err := r.Provisioner.Provision(ctx, r.Price.MinorUnits, r.Price.Currency, opt)
	if err != nil {
		return "", fmt.Errorf("provision deposit address: %w", err)
	}

	amount, err := r.Price.AtomicAmount(opt.Decimals)
	if err != nil {
		return "", err
	}

	key := strings.ToLower(addr)
	rec := models.DepositRecord{
		Address:         key,
		Network:         opt.Network,
		ExpectedAmount:  amount,
		ProvisioningRef: ref,
		CreatedAt:       time.Now().UTC(),
	}
	r.Cache.Put(key, rec)

	if r.Journal != nil {
		if err := r.Journal.InsertDepositAddress(ctx, rec); err != nil {
			log.Printf("journal deposit address failed: %v", err)
		}
	}
	return key, nil
}

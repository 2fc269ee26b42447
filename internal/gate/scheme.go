package gate

import (
	"context"
	"encoding/json"
	"fmt"

	"paygate/internal/config"
	"paygate/internal/models"
	"paygate/internal/resolver"
)

// Facilitator is the verify/settle surface the schemes delegate to.
type Facilitator interface {
	Verify(ctx context.Context, proofDoc json.RawMessage, req models.PaymentRequirement) (models.VerifyResult, error)
	Settle(ctx context.Context, proofDoc json.RawMessage, req models.PaymentRequirement) (models.SettleResult, error)
}

// Scheme is one payment verification capability: it can state what must be
// paid and drive the proof through verification and settlement.
type Scheme interface {
	BuildRequirement(ctx context.Context, claimedTo string) (models.PaymentRequirement, error)
	Verify(ctx context.Context, proofDoc json.RawMessage, req models.PaymentRequirement) (models.VerifyResult, error)
	Settle(ctx context.Context, proofDoc json.RawMessage, req models.PaymentRequirement) (models.SettleResult, error)
}

// Registry maps a network identifier to its scheme implementation.
type Registry map[string]Scheme

// ExactScheme implements the exact-amount transfer scheme for one configured
// payment option. Family-specific address handling happens at provisioning
// time, so EVM-style and ledger-style networks share this implementation.
type ExactScheme struct {
	Option      config.PaymentOption
	Resolver    *resolver.Resolver
	Facilitator Facilitator
	Description string
	MimeType    string
	TTLSeconds  int
}

func (s *ExactScheme) BuildRequirement(ctx context.Context, claimedTo string) (models.PaymentRequirement, error) {
	payTo, err := s.Resolver.ResolveDestination(ctx, claimedTo, s.Option)
	if err != nil {
		return models.PaymentRequirement{}, fmt.Errorf("network %s: %w", s.Option.Network, err)
	}

	amount, err := s.Resolver.Price.AtomicAmount(s.Option.Decimals)
	if err != nil {
		return models.PaymentRequirement{}, err
	}

	return models.PaymentRequirement{
		Scheme:            models.SchemeExact,
		Network:           s.Option.Network,
		Amount:            amount,
		Asset:             s.Option.Asset,
		PayTo:             payTo,
		Description:       s.Description,
		MimeType:          s.MimeType,
		MaxTimeoutSeconds: s.TTLSeconds,
	}, nil
}

func (s *ExactScheme) Verify(ctx context.Context, proofDoc json.RawMessage, req models.PaymentRequirement) (models.VerifyResult, error) {
	return s.Facilitator.Verify(ctx, proofDoc, req)
}

func (s *ExactScheme) Settle(ctx context.Context, proofDoc json.RawMessage, req models.PaymentRequirement) (models.SettleResult, error) {
	return s.Facilitator.Settle(ctx, proofDoc, req)
}

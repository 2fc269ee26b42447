// Package events carries payment lifecycle notifications from the facilitator
// adapter to interested subscribers (logging, journaling) without coupling the
// gate to either.
package events

import (
	"context"
	"log"
	"time"

	"paygate/internal/models"
)

// Event describes one verify or settle attempt at a hook point.
type Event struct {
	At          time.Time
	Scheme      string
	Network     string
	PayTo       string
	Amount      string
	Payer       string
	Transaction string
	Err         error
}

// Subscriber receives lifecycle events. Subscribers run synchronously in
// registration order; a panicking subscriber is recovered and logged so hook
// failures never affect the payment outcome.
type Subscriber func(ctx context.Context, ev Event)

// Hooks holds the six hook points around facilitator calls.
type Hooks struct {
	BeforeVerify []Subscriber
	AfterVerify  []Subscriber
	VerifyFailed []Subscriber
	BeforeSettle []Subscriber
	AfterSettle  []Subscriber
	SettleFailed []Subscriber
}

// OnVerify registers subscribers on all three verify hook points.
func (h *Hooks) OnVerify(before, after, failed Subscriber) {
	if before != nil {
		h.BeforeVerify = append(h.BeforeVerify, before)
	}
	if after != nil {
		h.AfterVerify = append(h.AfterVerify, after)
	}
	if failed != nil {
		h.VerifyFailed = append(h.VerifyFailed, failed)
	}
}

// OnSettle registers subscribers on all three settle hook points.
func (h *Hooks) OnSettle(before, after, failed Subscriber) {
	if before != nil {
		h.BeforeSettle = append(h.BeforeSettle, before)
	}
	if after != nil {
		h.AfterSettle = append(h.AfterSettle, after)
	}
	if failed != nil {
		h.SettleFailed = append(h.SettleFailed, failed)
	}
}

func (h *Hooks) EmitBeforeVerify(ctx context.Context, ev Event) { emit(ctx, h.BeforeVerify, ev) }
func (h *Hooks) EmitAfterVerify(ctx context.Context, ev Event)  { emit(ctx, h.AfterVerify, ev) }
func (h *Hooks) EmitVerifyFailed(ctx context.Context, ev Event) { emit(ctx, h.VerifyFailed, ev) }
func (h *Hooks) EmitBeforeSettle(ctx context.Context, ev Event) { emit(ctx, h.BeforeSettle, ev) }
func (h *Hooks) EmitAfterSettle(ctx context.Context, ev Event)  { emit(ctx, h.AfterSettle, ev) }
func (h *Hooks) EmitSettleFailed(ctx context.Context, ev Event) { emit(ctx, h.SettleFailed, ev) }

// FromRequirement seeds an event with the requirement under negotiation.
func FromRequirement(req models.PaymentRequirement) Event {
	return Event{
		At:      time.Now().UTC(),
		Scheme:  req.Scheme,
		Network: req.Network,
		PayTo:   req.PayTo,
		Amount:  req.Amount,
	}
}

func emit(ctx context.Context, subs []Subscriber, ev Event) {
	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("payment hook panic recovered: %v", r)
				}
			}()
			sub(ctx, ev)
		}()
	}
}

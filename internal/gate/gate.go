// Package gate intercepts requests to protected routes and enforces payment
// before the protected handler runs.
package gate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"

	"paygate/internal/config"
	"paygate/internal/models"
	"paygate/internal/proof"
)

// Payment headers.
const (
	HeaderPayment         = "X-PAYMENT"
	HeaderPaymentResponse = "X-PAYMENT-RESPONSE"
)

type contextKey string

const settlementKey contextKey = "paygate-settlement"

// SettlementFromContext returns the settlement outcome for a granted request.
func SettlementFromContext(ctx context.Context) (models.SettleResult, bool) {
	s, ok := ctx.Value(settlementKey).(models.SettleResult)
	return s, ok
}

// WithSettlement attaches a settlement outcome to the context.
func WithSettlement(ctx context.Context, s models.SettleResult) context.Context {
	return context.WithValue(ctx, settlementKey, s)
}

type Gate struct {
	Schemes Registry
	Options []config.PaymentOption
}

// Middleware runs the per-request payment state machine. Without a usable
// proof it answers 402 with one requirement per configured option and never
// touches the facilitator. With a proof it verifies, then settles, and only
// then lets the protected handler run.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var claim *proof.Claim
		if header := r.Header.Get(HeaderPayment); header != "" {
			c, err := proof.Extract(header)
			if err != nil {
				// A malformed proof is the same as no proof.
				log.Printf("payment proof rejected: %v", err)
			} else {
				claim = c
			}
		}

		claimedTo := ""
		if claim != nil {
			claimedTo = claim.To
		}

		accepts := make([]models.PaymentRequirement, 0, len(g.Options))
		for _, opt := range g.Options {
			scheme, ok := g.Schemes[opt.Network]
			if !ok {
				log.Printf("no scheme registered for network %s", opt.Network)
				continue
			}
			req, err := scheme.BuildRequirement(ctx, claimedTo)
			if err != nil {
				log.Printf("build requirement failed: %v", err)
				writeJSON(w, http.StatusBadGateway, map[string]string{
					"error": "payment requirements are temporarily unavailable",
				})
				return
			}
			accepts = append(accepts, req)
		}
		if len(accepts) == 0 {
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error": "no payment options available",
			})
			return
		}

		if claim == nil {
			g.paymentRequired(w, "payment required", accepts)
			return
		}

		requirement := matchRequirement(accepts, claim.To)
		scheme := g.Schemes[requirement.Network]

		verify, err := scheme.Verify(ctx, claim.Raw, requirement)
		if err != nil || !verify.Valid {
			g.paymentRequired(w, "payment verification failed: "+failReason(verify.Reason, err), accepts)
			return
		}

		settle, err := scheme.Settle(ctx, claim.Raw, requirement)
		if err != nil || !settle.Success {
			g.paymentRequired(w, "payment settlement failed: "+failReason(settle.Reason, err), accepts)
			return
		}

		settled := models.SettlementResponse{
			Success:     true,
			Transaction: settle.TxHash,
			Network:     settle.Network,
			Payer:       settle.Payer,
		}
		if encoded, err := json.Marshal(settled); err == nil {
			w.Header().Set(HeaderPaymentResponse, base64.StdEncoding.EncodeToString(encoded))
		}

		ctx = WithSettlement(ctx, settle)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Gate) paymentRequired(w http.ResponseWriter, reason string, accepts []models.PaymentRequirement) {
	writeJSON(w, http.StatusPaymentRequired, models.PaymentRequiredResponse{
		X402Version: models.X402Version,
		Error:       reason,
		Accepts:     accepts,
	})
}

// matchRequirement picks the requirement whose destination the proof claims to
// pay. A claim matching nothing gets the first option; verification will
// reject it against that requirement.
func matchRequirement(accepts []models.PaymentRequirement, claimedTo string) models.PaymentRequirement {
	for _, req := range accepts {
		if req.PayTo == claimedTo {
			return req
		}
	}
	return accepts[0]
}

func failReason(reason string, err error) string {
	if reason != "" {
		return reason
	}
	if err != nil {
		return err.Error()
	}
	return "unspecified"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package facilitator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"paygate/internal/events"
	"paygate/internal/models"
)

type staticTokens struct {
	minted []string
}

func (s *staticTokens) Token(method, host, path string) (string, error) {
	s.minted = append(s.minted, method+" "+host+path)
	return "tok-" + path, nil
}

var testRequirement = models.PaymentRequirement{
	Scheme:  models.SchemeExact,
	Network: "base-sepolia",
	Amount:  "10000",
	Asset:   "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	PayTo:   "0xaaaa000000000000000000000000000000000001",
}

var testProof = json.RawMessage(`{"x402Version":1,"payload":{"authorization":{"to":"0xaaaa000000000000000000000000000000000001"}}}`)

func TestVerifySuccess(t *testing.T) {
	var gotAuth string
	var gotBody callRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(models.VerifyResult{Valid: true, Payer: "0xpayer"})
	}))
	defer srv.Close()

	tokens := &staticTokens{}
	hooks := &events.Hooks{}
	var order []string
	hooks.OnVerify(
		func(ctx context.Context, ev events.Event) { order = append(order, "before") },
		func(ctx context.Context, ev events.Event) { order = append(order, "after:"+ev.Payer) },
		func(ctx context.Context, ev events.Event) { order = append(order, "failed") },
	)

	c := NewClient(srv.URL, tokens, time.Second, hooks)
	result, err := c.Verify(context.Background(), testProof, testRequirement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid || result.Payer != "0xpayer" {
		t.Errorf("unexpected result: %+v", result)
	}
	if gotAuth != "Bearer tok-/verify" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if string(gotBody.PaymentPayload) != string(testProof) {
		t.Error("proof document was not passed through untouched")
	}
	if gotBody.PaymentRequirements.PayTo != testRequirement.PayTo {
		t.Errorf("requirements not forwarded: %+v", gotBody.PaymentRequirements)
	}
	if len(order) != 2 || order[0] != "before" || order[1] != "after:0xpayer" {
		t.Errorf("hook order = %v", order)
	}
	if len(tokens.minted) != 1 || !strings.HasSuffix(tokens.minted[0], "/verify") {
		t.Errorf("token scope = %v", tokens.minted)
	}
}

func TestVerifyRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.VerifyResult{Valid: false, Reason: "invalid_signature"})
	}))
	defer srv.Close()

	hooks := &events.Hooks{}
	var failed bool
	hooks.OnVerify(nil, nil, func(ctx context.Context, ev events.Event) { failed = true })

	c := NewClient(srv.URL, nil, time.Second, hooks)
	result, err := c.Verify(context.Background(), testProof, testRequirement)
	if !errors.Is(err, ErrVerifyRejected) {
		t.Fatalf("expected ErrVerifyRejected, got %v", err)
	}
	if result.Valid {
		t.Error("result reported valid on rejection")
	}
	if !strings.Contains(err.Error(), "invalid_signature") {
		t.Errorf("reason not surfaced: %v", err)
	}
	if !failed {
		t.Error("failure hook did not fire")
	}
}

func TestVerifyUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"invalidReason": "unsupported_network"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, time.Second, nil)
	_, err := c.Verify(context.Background(), testProof, testRequirement)
	if err == nil || !strings.Contains(err.Error(), "unsupported_network") {
		t.Fatalf("expected reason in error, got %v", err)
	}
}

func TestSettleSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/settle" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(models.SettleResult{
			Success: true,
			TxHash:  "0xtx123",
			Network: "base-sepolia",
			Payer:   "0xpayer",
		})
	}))
	defer srv.Close()

	hooks := &events.Hooks{}
	var settled events.Event
	hooks.OnSettle(nil, func(ctx context.Context, ev events.Event) { settled = ev }, nil)

	c := NewClient(srv.URL, nil, time.Second, hooks)
	result, err := c.Settle(context.Background(), testProof, testRequirement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TxHash != "0xtx123" {
		t.Errorf("TxHash = %q", result.TxHash)
	}
	if settled.Transaction != "0xtx123" || settled.Payer != "0xpayer" {
		t.Errorf("after-settle event incomplete: %+v", settled)
	}
}

func TestSettleRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.SettleResult{Success: false, Reason: "insufficient_funds"})
	}))
	defer srv.Close()

	hooks := &events.Hooks{}
	var failed bool
	hooks.OnSettle(nil, nil, func(ctx context.Context, ev events.Event) { failed = true })

	c := NewClient(srv.URL, nil, time.Second, hooks)
	_, err := c.Settle(context.Background(), testProof, testRequirement)
	if !errors.Is(err, ErrSettleRejected) {
		t.Fatalf("expected ErrSettleRejected, got %v", err)
	}
	if !failed {
		t.Error("failure hook did not fire")
	}
}

func TestHookPanicDoesNotAffectOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.VerifyResult{Valid: true, Payer: "0xpayer"})
	}))
	defer srv.Close()

	hooks := &events.Hooks{}
	hooks.OnVerify(
		func(ctx context.Context, ev events.Event) { panic("subscriber bug") },
		func(ctx context.Context, ev events.Event) { panic("another bug") },
		nil,
	)

	c := NewClient(srv.URL, nil, time.Second, hooks)
	result, err := c.Verify(context.Background(), testProof, testRequirement)
	if err != nil {
		t.Fatalf("hook panic leaked into outcome: %v", err)
	}
	if !result.Valid {
		t.Error("result lost after hook panic")
	}
}

func TestSupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/supported" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kinds": []models.SupportedKind{
				{Scheme: "exact", Network: "base-sepolia"},
				{Scheme: "exact", Network: "noble-1"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, time.Second, nil)
	kinds, err := c.Supported(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kinds) != 2 || kinds[1].Network != "noble-1" {
		t.Errorf("unexpected kinds: %+v", kinds)
	}
}

// Package proof decodes client-submitted payment proof headers.
package proof

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotEncoded = errors.New("proof header is not valid base64")
	ErrNotJSON    = errors.New("proof header does not decode to JSON")
	ErrMissingTo  = errors.New("proof authorization has no destination address")
	ErrBadTo      = errors.New("proof authorization destination is not a string")
)

// Claim is the decoded content of a payment proof header. To is normalized to
// lower case so it can be compared against cache keys directly. Raw is the
// full decoded proof document, passed untouched to the facilitator.
type Claim struct {
	Version int
	Scheme  string
	Network string
	To      string
	Raw     json.RawMessage
}

type envelope struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     json.RawMessage `json:"payload"`
}

type authorization struct {
	Authorization struct {
		To json.RawMessage `json:"to"`
	} `json:"authorization"`
}

// Extract decodes a proof header value into a Claim. The header is
// base64-encoded JSON with a nested authorization object carrying the asserted
// destination address.
func Extract(header string) (*Claim, error) {
	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotEncoded, err)
	}

	var env envelope
	if err := json.Unmarshal(decoded, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}

	var auth authorization
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &auth); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
		}
	}
	if len(auth.Authorization.To) == 0 {
		return nil, ErrMissingTo
	}

	var to string
	if err := json.Unmarshal(auth.Authorization.To, &to); err != nil || to == "" {
		return nil, ErrBadTo
	}

	return &Claim{
		Version: env.X402Version,
		Scheme:  env.Scheme,
		Network: env.Network,
		To:      strings.ToLower(to),
		Raw:     json.RawMessage(decoded),
	}, nil
}

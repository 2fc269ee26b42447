package models

import "time"

// X402Version is the protocol version carried in payment headers and bodies.
const X402Version = 1

// SchemeExact is the exact-amount transfer authorization scheme.
const SchemeExact = "exact"

// PaymentRequirement describes one acceptable way to pay for a resource.
// Amount is in the asset's smallest unit, as a decimal string.
type PaymentRequirement struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Amount            string `json:"maxAmountRequired"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	Description       string `json:"description,omitempty"`
	MimeType          string `json:"mimeType,omitempty"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds,omitempty"`
}

// PaymentRequiredResponse is the 402 body sent to unpaid callers.
type PaymentRequiredResponse struct {
	X402Version int                  `json:"x402Version"`
	Error       string               `json:"error"`
	Accepts     []PaymentRequirement `json:"accepts"`
}

// DepositRecord is the cache entry for an outstanding provisioned address.
// The cache key is the lower-cased address; records are immutable once written.
type DepositRecord struct {
	Address         string
	Network         string
	ExpectedAmount  string
	ProvisioningRef string
	CreatedAt       time.Time
}

// VerifyResult is the facilitator's answer to a verify call.
type VerifyResult struct {
	Valid  bool   `json:"isValid"`
	Payer  string `json:"payer,omitempty"`
	Reason string `json:"invalidReason,omitempty"`
}

// SettleResult is the facilitator's answer to a settle call.
type SettleResult struct {
	Success bool   `json:"success"`
	TxHash  string `json:"transaction,omitempty"`
	Network string `json:"network,omitempty"`
	Payer   string `json:"payer,omitempty"`
	Reason  string `json:"errorReason,omitempty"`
}

// SettlementResponse is encoded into the X-PAYMENT-RESPONSE header on success.
type SettlementResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
	Payer       string `json:"payer,omitempty"`
}

// SettlementRecord is a journal row for a settled payment.
type SettlementRecord struct {
	ID          string
	TxHash      string
	Network     string
	Payer       string
	PayTo       string
	Amount      string
	Status      string
	CreatedAt   time.Time
	ConfirmedAt *time.Time
}

// SupportedKind is one scheme+network pair the facilitator can handle.
type SupportedKind struct {
	Scheme  string `json:"scheme"`
	Network string `json:"network"`
}

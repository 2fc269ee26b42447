package pricing

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Price is a human-denominated amount held in minor currency units
// (e.g. cents for USD).
type Price struct {
	Currency   string
	MinorUnits int64
}

// ParsePrice parses a display price like "$0.01" into minor units.
// Only the "$" (USD) prefix is recognized; amounts carry at most two
// fractional digits.
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "$") {
		return Price{}, fmt.Errorf("unsupported price format %q", s)
	}
	body := strings.TrimPrefix(s, "$")
	if body == "" || strings.HasPrefix(body, "-") {
		return Price{}, fmt.Errorf("invalid price %q", s)
	}

	whole := body
	frac := ""
	if idx := strings.IndexByte(body, '.'); idx >= 0 {
		whole = body[:idx]
		frac = body[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return Price{}, fmt.Errorf("price %q has sub-cent precision", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	if !isDigits(whole) || !isDigits(frac) {
		return Price{}, fmt.Errorf("invalid price %q", s)
	}

	w, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return Price{}, fmt.Errorf("invalid price %q", s)
	}
	f, _ := new(big.Int).SetString(frac, 10)
	minor := new(big.Int).Add(new(big.Int).Mul(w, big.NewInt(100)), f)
	if !minor.IsInt64() {
		return Price{}, fmt.Errorf("price %q out of range", s)
	}

	return Price{Currency: "USD", MinorUnits: minor.Int64()}, nil
}

// AtomicAmount converts the price to the smallest-unit integer amount of an
// asset with the given number of decimals, rounding up so the resource is
// never undersold.
func (p Price) AtomicAmount(decimals int) (string, error) {
	if decimals < 0 || decimals > 30 {
		return "", errors.New("invalid decimals")
	}

	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	num := new(big.Int).Mul(big.NewInt(p.MinorUnits), pow)
	quot, rem := new(big.Int).QuoRem(num, big.NewInt(100), new(big.Int))
	if rem.Sign() > 0 {
		quot.Add(quot, big.NewInt(1))
	}
	return quot.String(), nil
}

// String renders the price back in display form.
func (p Price) String() string {
	return fmt.Sprintf("$%d.%02d", p.MinorUnits/100, p.MinorUnits%100)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

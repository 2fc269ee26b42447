package pricing

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in        string
		wantMinor int64
		wantErr   bool
	}{
		{in: "$0.01", wantMinor: 1},
		{in: "$0.10", wantMinor: 10},
		{in: "$1", wantMinor: 100},
		{in: "$2.50", wantMinor: 250},
		{in: "$.05", wantMinor: 5},
		{in: " $0.01 ", wantMinor: 1},
		{in: "0.01", wantErr: true},
		{in: "$", wantErr: true},
		{in: "$-1", wantErr: true},
		{in: "$0.001", wantErr: true},
		{in: "$abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePrice(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.MinorUnits != tt.wantMinor {
				t.Errorf("MinorUnits = %d, want %d", p.MinorUnits, tt.wantMinor)
			}
			if p.Currency != "USD" {
				t.Errorf("Currency = %q, want USD", p.Currency)
			}
		})
	}
}

func TestAtomicAmount(t *testing.T) {
	tests := []struct {
		name     string
		minor    int64
		decimals int
		want     string
		wantErr  bool
	}{
		{name: "one cent six decimals", minor: 1, decimals: 6, want: "10000"},
		{name: "one dollar six decimals", minor: 100, decimals: 6, want: "1000000"},
		{name: "two decimals", minor: 25, decimals: 2, want: "25"},
		{name: "rounds up", minor: 1, decimals: 1, want: "1"},
		{name: "zero decimals rounds up", minor: 1, decimals: 0, want: "1"},
		{name: "negative decimals", minor: 1, decimals: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Price{Currency: "USD", MinorUnits: tt.minor}
			got, err := p.AtomicAmount(tt.decimals)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("AtomicAmount = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPriceString(t *testing.T) {
	p := Price{Currency: "USD", MinorUnits: 1}
	if p.String() != "$0.01" {
		t.Errorf("String = %q, want $0.01", p.String())
	}
}

package asset_test

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/internal/asset"
)

func TestScaleTo18(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals uint8
		want     string
	}{
		{name: "usdc 6 decimals", raw: "2500000000", decimals: 6, want: "2500000000000000000000"},
		{name: "weth 18 decimals", raw: "1000000000000000000", decimals: 18, want: "1000000000000000000"},
		{name: "wbtc 8 decimals", raw: "150000000", decimals: 8, want: "1500000000000000000"},
		{name: "24 decimals truncates", raw: "1234567", decimals: 24, want: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := new(big.Int).SetString(tt.raw, 10)
			got := asset.ScaleTo18(raw, tt.decimals)
			if got.String() != tt.want {
				t.Errorf("ScaleTo18(%s, %d) = %s, want %s", tt.raw, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestToFromDecimal(t *testing.T) {
	raw := big.NewInt(1_500_000)
	d := asset.ToDecimal(raw, 6)
	if !d.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("ToDecimal = %s, want 1.5", d)
	}

	back := asset.FromDecimal(decimal.RequireFromString("1.5000009"), 6)
	if back.Cmp(raw) != 0 {
		t.Errorf("FromDecimal = %s, want %s", back, raw)
	}

	fixed := asset.DecimalToFixed(decimal.RequireFromString("2000.5"))
	if asset.FixedToDecimal(fixed).String() != "2000.5" {
		t.Errorf("fixed round trip = %s, want 2000.5", asset.FixedToDecimal(fixed))
	}
}

func TestRegistry(t *testing.T) {
	r := asset.DefaultRegistry()

	usdc, ok := r.Get(asset.AddrUSDC)
	if !ok {
		t.Fatal("USDC not registered")
	}
	if usdc.Decimals() != 6 {
		t.Errorf("USDC decimals = %d, want 6", usdc.Decimals())
	}
	if price, ok := usdc.ReferencePrice(); !ok || !price.Equal(decimal.NewFromInt(1)) {
		t.Errorf("USDC reference price = %s,%v", price, ok)
	}

	if err := r.Register(asset.WETH); err == nil {
		t.Error("expected duplicate registration error")
	}

	r.Upsert(asset.WETH.WithReferencePrice(decimal.NewFromInt(2000)))
	weth, _ := r.GetBySymbol("WETH")
	if price, ok := weth.ReferencePrice(); !ok || price.String() != "2000" {
		t.Errorf("WETH reference price after upsert = %s", price)
	}

	if _, ok := asset.WETH.ReferencePrice(); ok {
		t.Error("WithReferencePrice must not mutate the original")
	}
}

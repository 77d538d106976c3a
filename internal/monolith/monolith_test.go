package monolith

import (
	"testing"

	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/config"
)

func TestBuildRegistry(t *testing.T) {
	cfg := &config.Config{
		Tokens: []config.TokenConfig{
			{Address: asset.AddrWETH.Hex(), Symbol: "WETH", Decimals: 18, ReferencePrice: 3100},
			{Address: "0x514910771AF9Ca656af840dff83E8264EcF986CA", Symbol: "LINK", Decimals: 18},
		},
	}

	r := BuildRegistry(cfg)

	weth, ok := r.Get(asset.AddrWETH)
	if !ok {
		t.Fatal("WETH missing")
	}
	price, ok := weth.ReferencePrice()
	if !ok || price.String() != "3100" {
		t.Errorf("WETH reference price = %s (%v), want 3100", price, ok)
	}

	if _, ok := r.GetBySymbol("LINK"); !ok {
		t.Error("configured token LINK missing")
	}
	if _, ok := r.GetBySymbol("USDC"); !ok {
		t.Error("well-known USDC should remain registered")
	}
}

package market

import (
	"testing"

	"marketmood/internal/config"
)

func TestAlpacaProviderName(t *testing.T) {
	p := NewAlpacaProvider(config.Alpaca{APIKey: "key", APISecret: "secret"}, quietLogger())
	if got := p.Name(); got != "alpaca" {
		t.Errorf("AlpacaProvider.Name() = %q, want %q", got, "alpaca")
	}
}

func TestAlpacaProviderHasNoFundamentals(t *testing.T) {
	p := NewAlpacaProvider(config.Alpaca{}, quietLogger())
	if _, ok := any(p).(FundamentalsProvider); ok {
		t.Error("alpaca should not advertise fundamentals support")
	}
}

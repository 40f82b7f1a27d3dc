package backtest

import (
	"errors"
	"testing"

	"github.com/quantarc/fuzzywheel/pkg/core"
)

func TestDefaultParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default parameters should validate, got %v", err)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"cycle oversold positive", func(p *Params) { p.CycleOversold = 0.2 }},
		{"cycle overbought negative", func(p *Params) { p.CycleOverbought = -0.2 }},
		{"trend down positive", func(p *Params) { p.TrendDown = 0.1 }},
		{"trend up zero", func(p *Params) { p.TrendUp = 0 }},
		{"zero moneyness weight", func(p *Params) { p.PutMoneynessWeight = 0 }},
		{"call threshold above one", func(p *Params) { p.CallSellThreshold = 1.5 }},
		{"target dte zero", func(p *Params) { p.TargetDTE = 0 }},
		{"target dte too long", func(p *Params) { p.TargetDTE = 10 }},
		{"hedge dte too short", func(p *Params) { p.HedgeDTE = 3 }},
		{"premium target zero", func(p *Params) { p.TargetDailyPremiumPct = 0 }},
		{"premium target too high", func(p *Params) { p.TargetDailyPremiumPct = 0.05 }},
		{"negative min premium", func(p *Params) { p.MinContractPremium = -1 }},
		{"hedge notional above one", func(p *Params) { p.MaxHedgeNotionalPct = 1.5 }},
		{"zero hedge otm", func(p *Params) { p.HedgeOTMPctLowVIX = 0 }},
		{"negative capital", func(p *Params) { p.InitialCapital = -1000 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			err := p.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, core.ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestRoundToIncrement(t *testing.T) {
	cases := []struct {
		in, inc, want float64
	}{
		{400.13, 0.5, 400.0},
		{400.26, 0.5, 400.5},
		{399.75, 0.5, 400.0},
		{123.4, 1.0, 123.0},
	}
	for _, tc := range cases {
		if got := roundToIncrement(tc.in, tc.inc); got != tc.want {
			t.Errorf("roundToIncrement(%v, %v) = %v, want %v", tc.in, tc.inc, got, tc.want)
		}
	}
}

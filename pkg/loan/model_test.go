package loan

import "testing"

// S1: loan 50,000 USD / 1.0 BTC, margin_call=0.75, liquidation=0.90.
func TestS1LTVAtParity(t *testing.T) {
	l := Loan{LoanAmountUSD: 50000, BTCCollateral: 1.0, MarginCallLTV: 0.75, LiquidationLTV: 0.90}

	if got := LTV(l, 100000); !closeEnough(got, 0.50) {
		t.Errorf("LTV at 100000 = %v, want 0.50", got)
	}
	if got := MarginCallPrice(l); !closeEnough(got, 66666.67) {
		t.Errorf("margin-call price = %v, want ~66666.67", got)
	}
	if got := LiquidationPrice(l); !closeEnough(got, 55555.56) {
		t.Errorf("liquidation price = %v, want ~55555.56", got)
	}

	ltv := LTV(l, 50000)
	if !closeEnough(ltv, 1.0) {
		t.Fatalf("LTV at 50000 = %v, want 1.0", ltv)
	}
	if tier := ClassifyRisk(l, ltv); tier != TierLiquidation {
		t.Errorf("expected LIQUIDATION tier at LTV 1.0, got %v", tier)
	}
}

func TestLTVZeroOnNonPositiveInputs(t *testing.T) {
	l := Loan{LoanAmountUSD: 1000, BTCCollateral: 0, MarginCallLTV: 0.75, LiquidationLTV: 0.9}
	if got := LTV(l, 50000); got != 0 {
		t.Errorf("expected 0 LTV with zero collateral, got %v", got)
	}
	if got := LTV(l, 0); got != 0 {
		t.Errorf("expected 0 LTV with zero price, got %v", got)
	}
}

func TestClassifyRiskBoundaries(t *testing.T) {
	l := Loan{MarginCallLTV: 0.75, LiquidationLTV: 0.90}

	cases := []struct {
		ltv  float64
		want RiskTier
	}{
		{0.10, TierGreen},
		{0.40, TierYellow},
		{0.85, TierRed},
		{0.76, TierOrange},
		{0.95, TierLiquidation},
	}
	for _, c := range cases {
		if got := ClassifyRisk(l, c.ltv); got != c.want {
			t.Errorf("ClassifyRisk(%v) = %v, want %v", c.ltv, got, c.want)
		}
	}
}

func closeEnough(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 0.01
}

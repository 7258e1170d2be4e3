package riskscan

import (
	"testing"
	"time"

	"loanwatch.io/pkg/loan"
	"loanwatch.io/pkg/price"
)

func TestScanOnceClassifiesLoans(t *testing.T) {
	store := loan.NewMemoryStore()
	store.PutLoan(loan.Loan{Token: "tok1", LoanAmountUSD: 50000, BTCCollateral: 1.0, MarginCallLTV: 0.75, LiquidationLTV: 0.90})
	store.SetLastPrice(price.Update{Price: 50000, TimestampMs: 1})

	s := New(store, time.Hour)
	s.scanOnce()

	snap, ok := s.Snapshot("tok1")
	if !ok {
		t.Fatalf("expected a snapshot for tok1")
	}
	if snap.Tier != loan.TierLiquidation {
		t.Errorf("expected LIQUIDATION tier at LTV 1.0, got %v", snap.Tier)
	}
}

func TestScanOnceSkipsWithoutLastPrice(t *testing.T) {
	store := loan.NewMemoryStore()
	store.PutLoan(loan.Loan{Token: "tok1", LoanAmountUSD: 50000, BTCCollateral: 1.0, MarginCallLTV: 0.75, LiquidationLTV: 0.90})

	s := New(store, time.Hour)
	s.scanOnce()

	if len(s.All()) != 0 {
		t.Errorf("expected no snapshots before any price has been observed")
	}
}

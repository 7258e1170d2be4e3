// Package loan holds the read surface the core depends on (spec §4.6,
// C6): loans, their price/LTV alerts, and the last published price. It
// also carries the LTV and risk-tier math that turns a loan and a
// price into something the dashboard and chat front-end can present.
package loan

import "time"

// Loan is the core's read-only view of a registered Bitcoin-collateralized
// loan (spec §3). Token is the loan's sole bearer credential.
type Loan struct {
	Token          string     `json:"token"`
	ChatID         int64      `json:"chat_id"`
	LoanAmountUSD  float64    `json:"loan_amount_usd"`
	BTCCollateral  float64    `json:"btc_collateral"`
	MarginCallLTV  float64    `json:"margin_call_ltv"`
	LiquidationLTV float64    `json:"liquidation_ltv"`
	InterestRatePct float64   `json:"interest_rate_pct,omitempty"`
	Lender         string     `json:"lender,omitempty"`
	CreatedAt      int64      `json:"created_at"`
	EndDate        *time.Time `json:"end_date,omitempty"`
}

// Direction is shared by PriceAlert and LtvAlert.
type Direction string

const (
	Above Direction = "ABOVE"
	Below Direction = "BELOW"
)

// PriceAlert fires once when the BTC/USD price crosses Threshold in
// Direction (spec §3, §4.4). Terminal once Triggered is true.
type PriceAlert struct {
	AlertID     string    `json:"alert_id"`
	Token       string    `json:"token"`
	Threshold   float64   `json:"threshold"`
	Direction   Direction `json:"direction"`
	Triggered   bool      `json:"triggered"`
	TriggeredAt int64     `json:"triggered_at,omitempty"`
}

// LtvAlert is the LTV-denominated counterpart of PriceAlert.
type LtvAlert struct {
	AlertID      string    `json:"alert_id"`
	Token        string    `json:"token"`
	LTVThreshold float64   `json:"ltv_threshold"`
	Direction    Direction `json:"direction"`
	Triggered    bool      `json:"triggered"`
	TriggeredAt  int64     `json:"triggered_at,omitempty"`
}

// LTV computes loan_amount_usd / (btc_collateral * price). Callers must
// check btcPrice > 0 first; a non-positive price or collateral yields 0.
func LTV(l Loan, btcPrice float64) float64 {
	denom := l.BTCCollateral * btcPrice
	if denom <= 0 {
		return 0
	}
	return l.LoanAmountUSD / denom
}

// MarginCallPrice is the BTC/USD price at which LTV(l, price) equals
// l.MarginCallLTV.
func MarginCallPrice(l Loan) float64 {
	if l.BTCCollateral <= 0 || l.MarginCallLTV <= 0 {
		return 0
	}
	return l.LoanAmountUSD / (l.BTCCollateral * l.MarginCallLTV)
}

// LiquidationPrice is the BTC/USD price at which LTV(l, price) equals
// l.LiquidationLTV.
func LiquidationPrice(l Loan) float64 {
	if l.BTCCollateral <= 0 || l.LiquidationLTV <= 0 {
		return 0
	}
	return l.LoanAmountUSD / (l.BTCCollateral * l.LiquidationLTV)
}

// RiskTier is a presentation-only classification of current LTV
// (spec GLOSSARY: "Risk tier"). Boundaries scale with the loan's own
// margin-call and liquidation thresholds, adapted from a fixed-band
// liquidation-risk classifier (GREEN/YELLOW/ORANGE/RED/LIQUIDATION in
// place of Safe/Warning/Danger/Liquidate) so a conservative loan and an
// aggressive one are judged against their own limits.
type RiskTier string

const (
	TierGreen       RiskTier = "GREEN"
	TierYellow      RiskTier = "YELLOW"
	TierOrange      RiskTier = "ORANGE"
	TierRed         RiskTier = "RED"
	TierLiquidation RiskTier = "LIQUIDATION"
)

// ClassifyRisk buckets ltv against l's margin-call and liquidation
// thresholds. GREEN below half the margin-call LTV, YELLOW up to the
// margin-call LTV, ORANGE up to the midpoint between margin-call and
// liquidation, RED up to the liquidation LTV, LIQUIDATION at or beyond it.
func ClassifyRisk(l Loan, ltv float64) RiskTier {
	switch {
	case ltv >= l.LiquidationLTV:
		return TierLiquidation
	case ltv >= (l.MarginCallLTV+l.LiquidationLTV)/2:
		return TierRed
	case ltv >= l.MarginCallLTV:
		return TierOrange
	case ltv >= l.MarginCallLTV/2:
		return TierYellow
	default:
		return TierGreen
	}
}

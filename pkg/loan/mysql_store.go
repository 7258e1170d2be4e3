package loan

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"loanwatch.io/pkg/price"
)

// loanRow, priceAlertRow, and ltvAlertRow are the gorm-mapped tables
// backing MySQLStore, grounded on the teacher's Order gorm model
// (explicit column tags, int64 millisecond timestamps, a JSON column
// for the one field without a natural relational shape).
type loanRow struct {
	Token           string  `gorm:"column:token;primaryKey;type:varchar(48)"`
	ChatID          int64   `gorm:"column:chat_id;index"`
	LoanAmountUSD   float64 `gorm:"column:loan_amount_usd"`
	BTCCollateral   float64 `gorm:"column:btc_collateral"`
	MarginCallLTV   float64 `gorm:"column:margin_call_ltv"`
	LiquidationLTV  float64 `gorm:"column:liquidation_ltv"`
	InterestRatePct float64 `gorm:"column:interest_rate_pct"`
	Lender          string  `gorm:"column:lender;type:varchar(128)"`
	CreatedAt       int64   `gorm:"column:created_at"`
	EndDateMs       *int64  `gorm:"column:end_date_ms"`
}

func (loanRow) TableName() string { return "loans" }

func (r loanRow) toLoan() Loan {
	l := Loan{
		Token:           r.Token,
		ChatID:          r.ChatID,
		LoanAmountUSD:   r.LoanAmountUSD,
		BTCCollateral:   r.BTCCollateral,
		MarginCallLTV:   r.MarginCallLTV,
		LiquidationLTV:  r.LiquidationLTV,
		InterestRatePct: r.InterestRatePct,
		Lender:          r.Lender,
		CreatedAt:       r.CreatedAt,
	}
	if r.EndDateMs != nil {
		t := time.UnixMilli(*r.EndDateMs)
		l.EndDate = &t
	}
	return l
}

func loanToRow(l Loan) loanRow {
	r := loanRow{
		Token:           l.Token,
		ChatID:          l.ChatID,
		LoanAmountUSD:   l.LoanAmountUSD,
		BTCCollateral:   l.BTCCollateral,
		MarginCallLTV:   l.MarginCallLTV,
		LiquidationLTV:  l.LiquidationLTV,
		InterestRatePct: l.InterestRatePct,
		Lender:          l.Lender,
		CreatedAt:       l.CreatedAt,
	}
	if l.EndDate != nil {
		ms := l.EndDate.UnixMilli()
		r.EndDateMs = &ms
	}
	return r
}

type priceAlertRow struct {
	AlertID     string  `gorm:"column:alert_id;primaryKey;type:varchar(32)"`
	Token       string  `gorm:"column:token;index;type:varchar(48)"`
	Threshold   float64 `gorm:"column:threshold"`
	Direction   string  `gorm:"column:direction;type:varchar(8)"`
	Triggered   bool    `gorm:"column:triggered;index"`
	TriggeredAt int64   `gorm:"column:triggered_at"`
}

func (priceAlertRow) TableName() string { return "price_alerts" }

type ltvAlertRow struct {
	AlertID      string  `gorm:"column:alert_id;primaryKey;type:varchar(32)"`
	Token        string  `gorm:"column:token;index;type:varchar(48)"`
	LTVThreshold float64 `gorm:"column:ltv_threshold"`
	Direction    string  `gorm:"column:direction;type:varchar(8)"`
	Triggered    bool    `gorm:"column:triggered;index"`
	TriggeredAt  int64   `gorm:"column:triggered_at"`
}

func (ltvAlertRow) TableName() string { return "ltv_alerts" }

// lastPriceRow persists the single most recent PriceUpdate as a JSON
// blob keyed by a fixed ID, so a restarted monitor can serve
// get_last_price before the oracle's first tick lands.
type lastPriceRow struct {
	ID      int    `gorm:"column:id;primaryKey"`
	Payload string `gorm:"column:payload;type:json"`
}

func (lastPriceRow) TableName() string { return "last_price" }

// MySQLStore is a gorm-backed Store, adapted from the teacher's
// MySQLOrderRepository (pkg/order/mysql_repo.go): same WithContext,
// struct-mapped-table, plain-error-passthrough style.
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore wraps db. Callers are expected to have already run
// AutoMigrate for loanRow, priceAlertRow, ltvAlertRow, lastPriceRow.
func NewMySQLStore(db *gorm.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (s *MySQLStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&loanRow{}, &priceAlertRow{}, &ltvAlertRow{}, &lastPriceRow{})
}

func (s *MySQLStore) PutLoan(ctx context.Context, l Loan) error {
	row := loanToRow(l)
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *MySQLStore) DeleteLoan(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&loanRow{}).Error
}

func (s *MySQLStore) GetLoan(token string) (Loan, bool) {
	var row loanRow
	err := s.db.Where("token = ?", token).First(&row).Error
	if err != nil {
		return Loan{}, false
	}
	return row.toLoan(), true
}

func (s *MySQLStore) GetAllLoans() []Loan {
	var rows []loanRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil
	}
	out := make([]Loan, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toLoan())
	}
	return out
}

func (s *MySQLStore) PutPriceAlert(ctx context.Context, a PriceAlert) error {
	row := priceAlertRow{
		AlertID: a.AlertID, Token: a.Token, Threshold: a.Threshold,
		Direction: string(a.Direction), Triggered: a.Triggered, TriggeredAt: a.TriggeredAt,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *MySQLStore) PutLtvAlert(ctx context.Context, a LtvAlert) error {
	row := ltvAlertRow{
		AlertID: a.AlertID, Token: a.Token, LTVThreshold: a.LTVThreshold,
		Direction: string(a.Direction), Triggered: a.Triggered, TriggeredAt: a.TriggeredAt,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *MySQLStore) GetAllPriceAlerts() []PriceAlert {
	var rows []priceAlertRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil
	}
	out := make([]PriceAlert, 0, len(rows))
	for _, r := range rows {
		out = append(out, PriceAlert{
			AlertID: r.AlertID, Token: r.Token, Threshold: r.Threshold,
			Direction: Direction(r.Direction), Triggered: r.Triggered, TriggeredAt: r.TriggeredAt,
		})
	}
	return out
}

func (s *MySQLStore) GetAllLtvAlerts() []LtvAlert {
	var rows []ltvAlertRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil
	}
	out := make([]LtvAlert, 0, len(rows))
	for _, r := range rows {
		out = append(out, LtvAlert{
			AlertID: r.AlertID, Token: r.Token, LTVThreshold: r.LTVThreshold,
			Direction: Direction(r.Direction), Triggered: r.Triggered, TriggeredAt: r.TriggeredAt,
		})
	}
	return out
}

func (s *MySQLStore) MarkPriceAlertTriggered(alertID string, triggeredAtMs int64) error {
	return s.db.Model(&priceAlertRow{}).
		Where("alert_id = ?", alertID).
		Updates(map[string]any{"triggered": true, "triggered_at": triggeredAtMs}).Error
}

func (s *MySQLStore) MarkLtvAlertTriggered(alertID string, triggeredAtMs int64) error {
	return s.db.Model(&ltvAlertRow{}).
		Where("alert_id = ?", alertID).
		Updates(map[string]any{"triggered": true, "triggered_at": triggeredAtMs}).Error
}

func (s *MySQLStore) SetLastPrice(update price.Update) {
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	s.db.Save(&lastPriceRow{ID: 1, Payload: string(payload)})
}

func (s *MySQLStore) GetLastPrice() (price.Update, bool) {
	var row lastPriceRow
	if err := s.db.Where("id = ?", 1).First(&row).Error; err != nil {
		return price.Update{}, false
	}
	var update price.Update
	if err := json.Unmarshal([]byte(row.Payload), &update); err != nil {
		return price.Update{}, false
	}
	return update, true
}

package risk

import "time"

// Config holds the portfolio limits. It is fixed once a Validator is built.
type Config struct {
	MaxPositionSize float64 `json:"max_position_size" yaml:"max_position_size"`
	MaxDailyLoss    float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxOrderValue   float64 `json:"max_order_value" yaml:"max_order_value"`

	// AbsoluteNotional compares |quantity*price| with MaxOrderValue. When false
	// the signed product is used, so sells always pass the notional check.
	AbsoluteNotional bool `json:"absolute_notional" yaml:"absolute_notional"`
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		MaxPositionSize: 1000.0,
		MaxDailyLoss:    5000.0,
		MaxOrderValue:   10000.0,
	}
}

// Reason identifies the first check an order failed.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonOrderSize     Reason = "ORDER_SIZE"
	ReasonOrderValue    Reason = "ORDER_VALUE"
	ReasonDailyLoss     Reason = "DAILY_LOSS"
	ReasonPositionLimit Reason = "POSITION_LIMIT"
)

// Decision represents the result of risk evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Fill is an executed trade fed back into a Ledger. Quantity is signed.
type Fill struct {
	Symbol   string
	Quantity float64
	Price    float64
	PnL      float64 // realised, net of fees
	Fee      float64
	Time     time.Time
}

// Metrics tracks realised performance for one ledger.
type Metrics struct {
	DailyPnL    float64 `json:"daily_pnl"`
	DailyTrades int     `json:"daily_trades"`
	DailyLosses float64 `json:"daily_losses"`

	TotalRealizedPnL float64 `json:"total_realized_pnl"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	MaxProfit        float64 `json:"max_profit"`
}

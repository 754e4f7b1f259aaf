package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quanta-engine/internal/order"
)

func mkOrder(qty, price float64) order.Order {
	return order.NewOrder("AAPL", qty, order.TypeMarket, price, time.Now(), nil)
}

func TestValidateOrder(t *testing.T) {
	v := NewValidator(Config{MaxPositionSize: 1000, MaxDailyLoss: 5000, MaxOrderValue: 10000})

	tests := []struct {
		name     string
		order    order.Order
		position float64
		pnl      float64
		want     Reason
	}{
		{name: "all pass", order: mkOrder(10, 100), position: 0, pnl: 0},
		{name: "size at limit passes", order: mkOrder(1000, 10), position: 0, pnl: 0},
		{name: "size over limit", order: mkOrder(1001, 1), want: ReasonOrderSize},
		{name: "negative size over limit", order: mkOrder(-1001, 1), want: ReasonOrderSize},
		{name: "value at limit passes", order: mkOrder(100, 100)},
		{name: "value over limit", order: mkOrder(100, 150), want: ReasonOrderValue},
		{name: "large sell passes signed notional", order: mkOrder(-500, 1000), position: 500},
		{name: "loss at limit passes", order: mkOrder(1, 1), pnl: -5000},
		{name: "loss over limit", order: mkOrder(1, 1), pnl: -5000.01, want: ReasonDailyLoss},
		{name: "daily loss checked independent of order", order: mkOrder(0, 0), pnl: -6000, want: ReasonDailyLoss},
		{name: "post trade position at limit passes", order: mkOrder(50, 10), position: 950},
		{name: "post trade position over limit", order: mkOrder(51, 10), position: 950, want: ReasonPositionLimit},
		{name: "short position over limit", order: mkOrder(-51, 10), position: -950, want: ReasonPositionLimit},
		{name: "reducing order from large position", order: mkOrder(-100, 10), position: 1000},
		{name: "size checked first", order: mkOrder(2000, 1000), pnl: -99999, want: ReasonOrderSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := v.Evaluate(tt.order, tt.position, tt.pnl)
			assert.Equal(t, tt.want == ReasonNone, d.Allowed)
			assert.Equal(t, tt.want, d.Reason)
			if !d.Allowed {
				assert.NotEmpty(t, d.Detail)
			}
			assert.Equal(t, d.Allowed, v.ValidateOrder(tt.order, tt.position, tt.pnl))
		})
	}
}

func TestValidateOrderAbsoluteNotional(t *testing.T) {
	cfg := Config{MaxPositionSize: 1000, MaxDailyLoss: 5000, MaxOrderValue: 10000, AbsoluteNotional: true}
	v := NewValidator(cfg)

	d := v.Evaluate(mkOrder(-500, 1000), 500, 0)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonOrderValue, d.Reason)
	assert.True(t, v.ValidateOrder(mkOrder(-10, 1000), 500, 0))
	assert.Equal(t, cfg, v.Config())
}

func TestValidateOrderExampleScenario(t *testing.T) {
	v := NewValidator(Config{MaxPositionSize: 1000, MaxDailyLoss: 5000, MaxOrderValue: 10000})

	// 100 @ 150 = 15000 notional
	assert.False(t, v.ValidateOrder(mkOrder(100, 150), 500, -1000))
	assert.True(t, v.ValidateOrder(mkOrder(1, 150), 500, -1000))
}

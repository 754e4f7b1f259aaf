package risk

import (
	"fmt"
	"math"

	"quanta-engine/internal/order"
)

// Validator screens an order against portfolio limits. It is immutable and
// safe for concurrent use.
type Validator struct {
	cfg Config
}

func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Config returns the limits the validator was built with.
func (v *Validator) Config() Config {
	return v.cfg
}

// ValidateOrder reports whether all four checks pass.
func (v *Validator) ValidateOrder(o order.Order, currentPosition, dailyPnL float64) bool {
	return v.Evaluate(o, currentPosition, dailyPnL).Allowed
}

// Evaluate runs the checks in order and stops at the first failure:
// single-order size, order value, daily loss, post-trade position.
// Values equal to a limit pass.
func (v *Validator) Evaluate(o order.Order, currentPosition, dailyPnL float64) Decision {
	cfg := v.cfg

	if size := math.Abs(o.Quantity); !(size <= cfg.MaxPositionSize) {
		return Decision{
			Reason: ReasonOrderSize,
			Detail: fmt.Sprintf("order size %g exceeds max position size %g", size, cfg.MaxPositionSize),
		}
	}

	value := o.Quantity * o.Price
	if cfg.AbsoluteNotional {
		value = math.Abs(value)
	}
	if !(value <= cfg.MaxOrderValue) {
		return Decision{
			Reason: ReasonOrderValue,
			Detail: fmt.Sprintf("order value %g exceeds max order value %g", value, cfg.MaxOrderValue),
		}
	}

	if !(dailyPnL >= -cfg.MaxDailyLoss) {
		return Decision{
			Reason: ReasonDailyLoss,
			Detail: fmt.Sprintf("daily pnl %g below max daily loss -%g", dailyPnL, cfg.MaxDailyLoss),
		}
	}

	if post := math.Abs(currentPosition + o.Quantity); !(post <= cfg.MaxPositionSize) {
		return Decision{
			Reason: ReasonPositionLimit,
			Detail: fmt.Sprintf("resulting position %g exceeds max position size %g", post, cfg.MaxPositionSize),
		}
	}

	return Decision{Allowed: true}
}

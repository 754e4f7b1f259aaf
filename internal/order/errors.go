package order

import (
	"errors"
	"fmt"
	"time"
)

// Validation failure kinds. A *ValidationError unwraps to exactly one of these.
var (
	ErrUnknownSymbol      = errors.New("unknown symbol")
	ErrNoRuleForType      = errors.New("no validation rule for order type")
	ErrQuantityOutOfRange = errors.New("quantity out of range")
	ErrPriceOutOfRange    = errors.New("price out of range")
	ErrOrderTooOld        = errors.New("order too old")
)

// ValidationError carries the offending value and the bound it violated.
type ValidationError struct {
	Kind   error
	Symbol string
	Type   Type
	Value  float64
	Min    float64
	Max    float64
	Age    time.Duration
	MaxAge time.Duration
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ErrUnknownSymbol:
		return fmt.Sprintf("invalid symbol: %s", e.Symbol)
	case ErrNoRuleForType:
		return fmt.Sprintf("no validation rule for order type %s", e.Type)
	case ErrQuantityOutOfRange:
		return fmt.Sprintf("quantity %g out of range [%g, %g] for %s %s", e.Value, e.Min, e.Max, e.Type, e.Symbol)
	case ErrPriceOutOfRange:
		return fmt.Sprintf("price %g out of range [%g, %g] for %s %s", e.Value, e.Min, e.Max, e.Type, e.Symbol)
	case ErrOrderTooOld:
		return fmt.Sprintf("order too old: age %s exceeds max %s", e.Age, e.MaxAge)
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "order validation failed"
}

func (e *ValidationError) Unwrap() error { return e.Kind }

// KindName returns a short label for the failure kind, used for metrics and logs.
func KindName(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrUnknownSymbol):
		return "unknown_symbol"
	case errors.Is(err, ErrNoRuleForType):
		return "no_rule_for_type"
	case errors.Is(err, ErrQuantityOutOfRange):
		return "quantity_out_of_range"
	case errors.Is(err, ErrPriceOutOfRange):
		return "price_out_of_range"
	case errors.Is(err, ErrOrderTooOld):
		return "order_too_old"
	}
	return "other"
}

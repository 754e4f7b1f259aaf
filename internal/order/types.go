package order

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Type is the order type (MARKET, LIMIT, STOP, STOP_LIMIT).
type Type string

const (
	TypeMarket    Type = "MARKET"
	TypeLimit     Type = "LIMIT"
	TypeStop      Type = "STOP"
	TypeStopLimit Type = "STOP_LIMIT"
)

// Types lists every supported order type.
var Types = []Type{TypeMarket, TypeLimit, TypeStop, TypeStopLimit}

// ParseType maps a config/user spelling onto a Type.
func ParseType(s string) (Type, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	switch norm {
	case "MARKET":
		return TypeMarket, nil
	case "LIMIT":
		return TypeLimit, nil
	case "STOP", "STOP_LOSS":
		return TypeStop, nil
	case "STOP_LIMIT", "STOPLIMIT":
		return TypeStopLimit, nil
	}
	return "", fmt.Errorf("unknown order type %q (want one of %v)", s, Types)
}

// Order represents a proposed trade. Quantity is signed: positive buys, negative sells.
// Nothing is enforced at construction; validity is decided by Validator.
type Order struct {
	ID             string
	Symbol         string
	Quantity       float64
	Type           Type
	Price          float64 // stored for every type, ignored by price checks on MARKET
	Timestamp      time.Time
	AdditionalData map[string]string // broker-specific fields
}

// NewOrder builds an order. extra may be nil.
func NewOrder(symbol string, qty float64, typ Type, price float64, ts time.Time, extra map[string]string) Order {
	o := Order{
		Symbol:    symbol,
		Quantity:  qty,
		Type:      typ,
		Price:     price,
		Timestamp: ts,
	}
	if len(extra) > 0 {
		o.AdditionalData = make(map[string]string, len(extra))
		for k, v := range extra {
			o.AdditionalData[k] = v
		}
	}
	return o
}

func (o *Order) SetSymbol(symbol string)   { o.Symbol = symbol }
func (o *Order) SetQuantity(qty float64)   { o.Quantity = qty }
func (o *Order) SetType(t Type)            { o.Type = t }
func (o *Order) SetPrice(price float64)    { o.Price = price }
func (o *Order) SetTimestamp(ts time.Time) { o.Timestamp = ts }

// SetField stores a broker-specific key/value pair.
func (o *Order) SetField(key, value string) {
	if o.AdditionalData == nil {
		o.AdditionalData = make(map[string]string)
	}
	o.AdditionalData[key] = value
}

// Field returns a broker-specific value.
func (o Order) Field(key string) (string, bool) {
	v, ok := o.AdditionalData[key]
	return v, ok
}

// Side derives BUY/SELL from the quantity sign.
func (o Order) Side() string {
	if o.Quantity < 0 {
		return "SELL"
	}
	return "BUY"
}

// Notional is the signed order value.
func (o Order) Notional() float64 {
	return o.Quantity * o.Price
}

// Clone returns a copy that shares no map with o.
func (o Order) Clone() Order {
	c := o
	if o.AdditionalData != nil {
		c.AdditionalData = make(map[string]string, len(o.AdditionalData))
		for k, v := range o.AdditionalData {
			c.AdditionalData[k] = v
		}
	}
	return c
}

func (o Order) String() string {
	return fmt.Sprintf("Order(symbol=%s, quantity=%g, type=%s, price=%g, timestamp=%s)",
		o.Symbol, o.Quantity, o.Type, o.Price, o.Timestamp.UTC().Format(time.RFC3339))
}

// Describe renders the execution summary, e.g. "Buy 100 of AAPL at $150".
func (o Order) Describe() string {
	action := "Buy"
	if o.Quantity <= 0 {
		action = "Sell"
	}
	return fmt.Sprintf("%s %g of %s at $%g", action, math.Abs(o.Quantity), o.Symbol, o.Price)
}

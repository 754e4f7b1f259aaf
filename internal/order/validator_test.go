package order

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator(opts ...ValidatorOption) *Validator {
	opts = append([]ValidatorOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	v := NewValidator(opts...)
	v.AddSymbol("AAPL")
	v.SetRule(TypeLimit, NewValidationRule(1, 1000, 10, 500))
	v.SetRule(TypeMarket, NewValidationRule(1, 1000, 10, 500))
	return v
}

func limitOrder(symbol string, qty, price float64) Order {
	return NewOrder(symbol, qty, TypeLimit, price, fixedNow, nil)
}

func TestValidateExampleScenario(t *testing.T) {
	v := newTestValidator()

	require.NoError(t, v.Validate(limitOrder("AAPL", 100, 150)))

	err := v.Validate(limitOrder("MSFT", 100, 150))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	assert.Contains(t, err.Error(), "MSFT")
}

func TestValidateChecks(t *testing.T) {
	tests := []struct {
		name    string
		order   Order
		maxAge  *time.Duration
		wantErr error
	}{
		{name: "valid limit", order: limitOrder("AAPL", 100, 150)},
		{name: "lower bounds inclusive", order: limitOrder("AAPL", 1, 10)},
		{name: "upper bounds inclusive", order: limitOrder("AAPL", 1000, 500)},
		{name: "unknown symbol wins over bad quantity", order: limitOrder("MSFT", -5, 0), wantErr: ErrUnknownSymbol},
		{name: "no rule for stop", order: NewOrder("AAPL", 100, TypeStop, 150, fixedNow, nil), wantErr: ErrNoRuleForType},
		{name: "quantity too small", order: limitOrder("AAPL", 0.5, 150), wantErr: ErrQuantityOutOfRange},
		{name: "quantity too large", order: limitOrder("AAPL", 1001, 150), wantErr: ErrQuantityOutOfRange},
		{name: "negative sell outside unsigned bounds", order: limitOrder("AAPL", -100, 150), wantErr: ErrQuantityOutOfRange},
		{name: "NaN quantity", order: limitOrder("AAPL", math.NaN(), 150), wantErr: ErrQuantityOutOfRange},
		{name: "quantity checked before price", order: limitOrder("AAPL", 5000, 5000), wantErr: ErrQuantityOutOfRange},
		{name: "price too low", order: limitOrder("AAPL", 100, 9.99), wantErr: ErrPriceOutOfRange},
		{name: "price too high", order: limitOrder("AAPL", 100, 500.01), wantErr: ErrPriceOutOfRange},
		{name: "market ignores price", order: NewOrder("AAPL", 100, TypeMarket, 0, fixedNow, nil)},
		{
			name:   "fresh enough",
			order:  NewOrder("AAPL", 100, TypeLimit, 150, fixedNow.Add(-30*time.Second), nil),
			maxAge: durationPtr(time.Minute),
		},
		{
			name:   "age equal to limit passes",
			order:  NewOrder("AAPL", 100, TypeLimit, 150, fixedNow.Add(-time.Minute), nil),
			maxAge: durationPtr(time.Minute),
		},
		{
			name:    "too old",
			order:   NewOrder("AAPL", 100, TypeLimit, 150, fixedNow.Add(-2*time.Minute), nil),
			maxAge:  durationPtr(time.Minute),
			wantErr: ErrOrderTooOld,
		},
		{
			name:  "age unchecked when disabled",
			order: NewOrder("AAPL", 100, TypeLimit, 150, fixedNow.Add(-24*time.Hour), nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator()
			v.SetMaxOrderAge(tt.maxAge)

			err := v.Validate(tt.order)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.NotEmpty(t, verr.Error())
		})
	}
}

func TestValidationErrorCarriesBounds(t *testing.T) {
	v := newTestValidator()

	err := v.Validate(limitOrder("AAPL", 100, 600))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 600.0, verr.Value)
	assert.Equal(t, 10.0, verr.Min)
	assert.Equal(t, 500.0, verr.Max)
	assert.Equal(t, "price_out_of_range", KindName(err))
}

func TestSetRuleLastWins(t *testing.T) {
	v := newTestValidator()
	v.SetRule(TypeLimit, NewValidationRule(1, 50, 10, 500))

	assert.Equal(t, NewValidationRule(1, 50, 10, 500), v.Rules()[TypeLimit])
	assert.ErrorIs(t, v.Validate(limitOrder("AAPL", 100, 150)), ErrQuantityOutOfRange)
}

func TestAddSymbolDeduplicates(t *testing.T) {
	v := NewValidator()
	v.AddSymbol("AAPL")
	v.AddSymbol("AAPL")
	v.AddSymbol("MSFT")

	assert.Equal(t, []string{"AAPL", "MSFT"}, v.Symbols())

	syms := v.Symbols()
	syms[0] = "TSLA"
	assert.Equal(t, []string{"AAPL", "MSFT"}, v.Symbols())
}

func TestSetMaxOrderAgeCopiesValue(t *testing.T) {
	v := NewValidator()
	age := time.Minute
	v.SetMaxOrderAge(&age)
	age = time.Hour

	got, ok := v.MaxOrderAge()
	require.True(t, ok)
	assert.Equal(t, time.Minute, got)

	v.SetMaxOrderAge(nil)
	_, ok = v.MaxOrderAge()
	assert.False(t, ok)
}

func TestValidateMultiple(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	v := newTestValidator(WithLogger(zap.New(core)))

	orders := []Order{
		limitOrder("AAPL", 100, 150),
		limitOrder("MSFT", 100, 150),
		limitOrder("AAPL", 5000, 150),
		limitOrder("AAPL", 10, 20),
		limitOrder("AAPL", 10, 1),
	}

	failures := v.ValidateMultiple(orders)
	require.Len(t, failures, 3)

	wantIdx := []int{1, 2, 4}
	for i, f := range failures {
		assert.Equal(t, wantIdx[i], f.Index)
		assert.NotEmpty(t, f.Reason)
		assert.Equal(t, v.Validate(orders[f.Index]).Error(), f.Reason)
	}

	assert.Equal(t, 3, logs.FilterMessage("order failed validation").Len())
	assert.Equal(t, 1, logs.FilterMessage("order batch validated").Len())
}

func TestValidateMultipleAllFail(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	v := newTestValidator(WithLogger(zap.New(core)))

	failures := v.ValidateMultiple([]Order{limitOrder("X", 1, 1), limitOrder("Y", 1, 1)})
	assert.Len(t, failures, 2)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestValidateMultipleEmpty(t *testing.T) {
	assert.Empty(t, newTestValidator().ValidateMultiple(nil))
}

func durationPtr(d time.Duration) *time.Duration { return &d }

package order

import (
	"slices"
	"time"

	"go.uber.org/zap"
)

// ValidationRule bounds quantity and price for one order type (inclusive).
type ValidationRule struct {
	MinQuantity float64 `yaml:"min_quantity" json:"min_quantity"`
	MaxQuantity float64 `yaml:"max_quantity" json:"max_quantity"`
	MinPrice    float64 `yaml:"min_price" json:"min_price"`
	MaxPrice    float64 `yaml:"max_price" json:"max_price"`
}

// NewValidationRule mirrors the positional constructor used by configs and tests.
func NewValidationRule(minQty, maxQty, minPrice, maxPrice float64) ValidationRule {
	return ValidationRule{MinQuantity: minQty, MaxQuantity: maxQty, MinPrice: minPrice, MaxPrice: maxPrice}
}

// BatchFailure is one rejected entry of ValidateMultiple.
type BatchFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Validator checks orders against per-type rules, a symbol allow-list and an
// optional max age. It is not safe for concurrent mutation; wrap it if shared.
type Validator struct {
	rules       map[Type]ValidationRule
	symbols     []string
	maxOrderAge *time.Duration

	log *zap.Logger
	now func() time.Time
}

// ValidatorOption customises a Validator.
type ValidatorOption func(*Validator)

// WithLogger sets the logger used by ValidateMultiple.
func WithLogger(l *zap.Logger) ValidatorOption {
	return func(v *Validator) {
		if l != nil {
			v.log = l
		}
	}
}

// WithClock overrides the time source used for the staleness check.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		rules: make(map[Type]ValidationRule),
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetRule replaces the rule for t. Last set wins.
func (v *Validator) SetRule(t Type, rule ValidationRule) {
	v.rules[t] = rule
}

// AddSymbol adds symbol to the allow-list. Duplicates are ignored.
func (v *Validator) AddSymbol(symbol string) {
	if slices.Contains(v.symbols, symbol) {
		return
	}
	v.symbols = append(v.symbols, symbol)
}

// SetMaxOrderAge replaces the staleness threshold; nil disables the check.
func (v *Validator) SetMaxOrderAge(age *time.Duration) {
	if age == nil {
		v.maxOrderAge = nil
		return
	}
	a := *age
	v.maxOrderAge = &a
}

// Rules returns a copy of the rule table.
func (v *Validator) Rules() map[Type]ValidationRule {
	out := make(map[Type]ValidationRule, len(v.rules))
	for t, r := range v.rules {
		out[t] = r
	}
	return out
}

// Symbols returns a copy of the allow-list.
func (v *Validator) Symbols() []string {
	return slices.Clone(v.symbols)
}

// MaxOrderAge returns the staleness threshold, if any.
func (v *Validator) MaxOrderAge() (time.Duration, bool) {
	if v.maxOrderAge == nil {
		return 0, false
	}
	return *v.maxOrderAge, true
}

// Validate runs symbol, rule, quantity, price and age checks in that order and
// returns the first failure as a *ValidationError.
func (v *Validator) Validate(o Order) error {
	if !slices.Contains(v.symbols, o.Symbol) {
		return &ValidationError{Kind: ErrUnknownSymbol, Symbol: o.Symbol, Type: o.Type}
	}

	rule, ok := v.rules[o.Type]
	if !ok {
		return &ValidationError{Kind: ErrNoRuleForType, Symbol: o.Symbol, Type: o.Type}
	}

	// Negated form so NaN never passes.
	if !(o.Quantity >= rule.MinQuantity && o.Quantity <= rule.MaxQuantity) {
		return &ValidationError{
			Kind: ErrQuantityOutOfRange, Symbol: o.Symbol, Type: o.Type,
			Value: o.Quantity, Min: rule.MinQuantity, Max: rule.MaxQuantity,
		}
	}

	if o.Type != TypeMarket && !(o.Price >= rule.MinPrice && o.Price <= rule.MaxPrice) {
		return &ValidationError{
			Kind: ErrPriceOutOfRange, Symbol: o.Symbol, Type: o.Type,
			Value: o.Price, Min: rule.MinPrice, Max: rule.MaxPrice,
		}
	}

	if v.maxOrderAge != nil {
		age := v.now().Sub(o.Timestamp)
		if age > *v.maxOrderAge {
			return &ValidationError{
				Kind: ErrOrderTooOld, Symbol: o.Symbol, Type: o.Type,
				Age: age, MaxAge: *v.maxOrderAge,
			}
		}
	}

	return nil
}

// ValidateMultiple validates every order independently and returns the failing
// indices in input order.
func (v *Validator) ValidateMultiple(orders []Order) []BatchFailure {
	v.log.Info("validating order batch", zap.Int("count", len(orders)))

	var failures []BatchFailure
	for i, o := range orders {
		if err := v.Validate(o); err != nil {
			v.log.Warn("order failed validation",
				zap.Int("index", i),
				zap.String("symbol", o.Symbol),
				zap.String("type", string(o.Type)),
				zap.String("kind", KindName(err)),
				zap.Error(err),
			)
			failures = append(failures, BatchFailure{Index: i, Reason: err.Error(), Err: err})
		}
	}

	if len(orders) > 0 && len(failures) == len(orders) {
		v.log.Error("every order in batch failed validation", zap.Int("count", len(orders)))
	} else {
		v.log.Info("order batch validated",
			zap.Int("count", len(orders)),
			zap.Int("failed", len(failures)),
		)
	}
	return failures
}

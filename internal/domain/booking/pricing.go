package booking

import (
	"fmt"

	"github.com/vroomshare/service-booking/pkg/domain"
)

// InsuranceTier selects the per-day insurance rate.
type InsuranceTier string

const (
	InsuranceBasic    InsuranceTier = "basic"
	InsuranceStandard InsuranceTier = "standard"
	InsurancePremium  InsuranceTier = "premium"
)

// ParseInsuranceTier converts a string to an InsuranceTier. An empty string means basic.
func ParseInsuranceTier(s string) (InsuranceTier, error) {
	switch InsuranceTier(s) {
	case "":
		return InsuranceBasic, nil
	case InsuranceBasic, InsuranceStandard, InsurancePremium:
		return InsuranceTier(s), nil
	}
	return "", domain.NewValidationError(fmt.Sprintf("invalid insurance tier: %s", s))
}

// DepositPolicy is the vehicle's deposit rule. A nil Amount means the percentage default.
type DepositPolicy struct {
	Amount *int64
}

// PricingCalculator defines the interface for quoting a rental.
type PricingCalculator interface {
	// Quote returns the amounts for the given parameters. It must be deterministic.
	Quote(params PricingParams) (Quote, error)
}

// PricingParams holds the inputs for price calculation. Amounts are whole currency units.
type PricingParams struct {
	DailyRate     int64
	DurationDays  int
	InsuranceTier InsuranceTier
	DepositPolicy DepositPolicy
}

// Quote is the priced breakdown of a rental.
type Quote struct {
	DailyRate     int64         `json:"daily_rate"`
	DurationDays  int           `json:"duration_days"`
	InsuranceTier InsuranceTier `json:"insurance_tier"`
	BasePrice     int64         `json:"base_price"`
	InsuranceFee  int64         `json:"insurance_fee"`
	ServiceFee    int64         `json:"service_fee"`
	TotalAmount   int64         `json:"total_amount"`
	DepositAmount int64         `json:"deposit_amount"`
}

// PricingPolicy holds the configurable rates used by StandardPricingCalculator.
type PricingPolicy struct {
	ServiceFeePercent int64
	DepositPercent    int64
	InsuranceRates    map[InsuranceTier]int64
}

// DefaultPricingPolicy returns the marketplace defaults: 10% service fee, 30% deposit and
// basic/standard/premium insurance at 50/90/150 per day.
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		ServiceFeePercent: 10,
		DepositPercent:    30,
		InsuranceRates: map[InsuranceTier]int64{
			InsuranceBasic:    50,
			InsuranceStandard: 90,
			InsurancePremium:  150,
		},
	}
}

// StandardPricingCalculator implements the default pricing logic.
type StandardPricingCalculator struct {
	policy PricingPolicy
}

// NewStandardPricingCalculator creates a calculator for the given policy.
func NewStandardPricingCalculator(policy PricingPolicy) *StandardPricingCalculator {
	return &StandardPricingCalculator{policy: policy}
}

// Quote computes the rental amounts.
//
// Pricing formula:
//   - Base price: daily rate x days
//   - Insurance: tier rate x days
//   - Service fee: percentage of base price, rounded half up
//   - Deposit: vehicle amount, else percentage of base price
func (c *StandardPricingCalculator) Quote(params PricingParams) (Quote, error) {
	if params.DailyRate <= 0 {
		return Quote{}, domain.NewValidationError("daily rate must be positive")
	}
	days := params.DurationDays
	if days < 1 {
		days = 1
	}
	tier := params.InsuranceTier
	if tier == "" {
		tier = InsuranceBasic
	}
	rate, ok := c.policy.InsuranceRates[tier]
	if !ok {
		return Quote{}, domain.NewValidationError(fmt.Sprintf("unknown insurance tier for pricing: %s", tier))
	}

	base := params.DailyRate * int64(days)
	insurance := rate * int64(days)
	serviceFee := percentOf(base, c.policy.ServiceFeePercent)

	deposit := percentOf(base, c.policy.DepositPercent)
	if params.DepositPolicy.Amount != nil {
		if *params.DepositPolicy.Amount < 0 {
			return Quote{}, domain.NewValidationError("deposit amount cannot be negative")
		}
		deposit = *params.DepositPolicy.Amount
	}

	return Quote{
		DailyRate:     params.DailyRate,
		DurationDays:  days,
		InsuranceTier: tier,
		BasePrice:     base,
		InsuranceFee:  insurance,
		ServiceFee:    serviceFee,
		TotalAmount:   base + insurance + serviceFee,
		DepositAmount: deposit,
	}, nil
}

// percentOf returns amount x pct / 100 rounded half up. amount must not be negative.
func percentOf(amount, pct int64) int64 {
	return (amount*pct + 50) / 100
}

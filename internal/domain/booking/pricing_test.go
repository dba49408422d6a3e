package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vroomshare/service-booking/pkg/domain"
)

func TestQuote_ThreeDaysBasicInsurance(t *testing.T) {
	calc := NewStandardPricingCalculator(DefaultPricingPolicy())

	q, err := calc.Quote(PricingParams{DailyRate: 250, DurationDays: 3, InsuranceTier: InsuranceBasic})
	require.NoError(t, err)

	assert.Equal(t, int64(750), q.BasePrice)
	assert.Equal(t, int64(75), q.ServiceFee)
	assert.Equal(t, int64(150), q.InsuranceFee)
	assert.Equal(t, int64(975), q.TotalAmount)
	assert.Equal(t, int64(225), q.DepositAmount)
}

func TestQuote_Deterministic(t *testing.T) {
	calc := NewStandardPricingCalculator(DefaultPricingPolicy())
	deposit := int64(500)
	params := PricingParams{
		DailyRate:     137,
		DurationDays:  5,
		InsuranceTier: InsurancePremium,
		DepositPolicy: DepositPolicy{Amount: &deposit},
	}

	first, err := calc.Quote(params)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := calc.Quote(params)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestQuote_Rules(t *testing.T) {
	vehicleDeposit := int64(1000)
	zero := int64(0)

	tests := []struct {
		name   string
		params PricingParams
		want   Quote
	}{
		{
			name:   "empty tier defaults to basic",
			params: PricingParams{DailyRate: 100, DurationDays: 2},
			want: Quote{DailyRate: 100, DurationDays: 2, InsuranceTier: InsuranceBasic,
				BasePrice: 200, InsuranceFee: 100, ServiceFee: 20, TotalAmount: 320, DepositAmount: 60},
		},
		{
			name:   "zero days is billed as one",
			params: PricingParams{DailyRate: 100, DurationDays: 0, InsuranceTier: InsuranceStandard},
			want: Quote{DailyRate: 100, DurationDays: 1, InsuranceTier: InsuranceStandard,
				BasePrice: 100, InsuranceFee: 90, ServiceFee: 10, TotalAmount: 200, DepositAmount: 30},
		},
		{
			name:   "service fee rounds half up",
			params: PricingParams{DailyRate: 45, DurationDays: 1, InsuranceTier: InsuranceBasic},
			want: Quote{DailyRate: 45, DurationDays: 1, InsuranceTier: InsuranceBasic,
				BasePrice: 45, InsuranceFee: 50, ServiceFee: 5, TotalAmount: 100, DepositAmount: 14},
		},
		{
			name:   "vehicle deposit overrides percentage",
			params: PricingParams{DailyRate: 300, DurationDays: 2, DepositPolicy: DepositPolicy{Amount: &vehicleDeposit}},
			want: Quote{DailyRate: 300, DurationDays: 2, InsuranceTier: InsuranceBasic,
				BasePrice: 600, InsuranceFee: 100, ServiceFee: 60, TotalAmount: 760, DepositAmount: 1000},
		},
		{
			name:   "explicit zero deposit is honored",
			params: PricingParams{DailyRate: 300, DurationDays: 1, DepositPolicy: DepositPolicy{Amount: &zero}},
			want: Quote{DailyRate: 300, DurationDays: 1, InsuranceTier: InsuranceBasic,
				BasePrice: 300, InsuranceFee: 50, ServiceFee: 30, TotalAmount: 380, DepositAmount: 0},
		},
	}

	calc := NewStandardPricingCalculator(DefaultPricingPolicy())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Quote(tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuote_Invalid(t *testing.T) {
	calc := NewStandardPricingCalculator(DefaultPricingPolicy())

	_, err := calc.Quote(PricingParams{DailyRate: 0, DurationDays: 2})
	assert.True(t, domain.HasCode(err, domain.CodeValidation))

	_, err = calc.Quote(PricingParams{DailyRate: 10, DurationDays: 2, InsuranceTier: "gold"})
	assert.True(t, domain.HasCode(err, domain.CodeValidation))
}

func TestParseInsuranceTier(t *testing.T) {
	tier, err := ParseInsuranceTier("")
	require.NoError(t, err)
	assert.Equal(t, InsuranceBasic, tier)

	tier, err = ParseInsuranceTier("premium")
	require.NoError(t, err)
	assert.Equal(t, InsurancePremium, tier)

	_, err = ParseInsuranceTier("platinum")
	assert.Error(t, err)
}

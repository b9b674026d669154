package calculator

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/fincalc/internal/model"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name         string
		in           model.Input
		wantStatus   model.Status
		wantTotal    float64
		wantInterest float64
	}{
		{
			name:         "compound two years",
			in:           model.Input{Principal: 1000, Rate: 5, Time: 2},
			wantStatus:   model.StatusSuccess,
			wantTotal:    1102.5,
			wantInterest: 102.5,
		},
		{
			name:         "zero rate",
			in:           model.Input{Principal: 500, Rate: 0, Time: 10},
			wantStatus:   model.StatusSuccess,
			wantTotal:    500,
			wantInterest: 0,
		},
		{
			name:         "zero time",
			in:           model.Input{Principal: 250, Rate: 12, Time: 0},
			wantStatus:   model.StatusSuccess,
			wantTotal:    250,
			wantInterest: 0,
		},
		{
			name:         "missing fields default to zero",
			in:           model.Input{},
			wantStatus:   model.StatusSuccess,
			wantTotal:    0,
			wantInterest: 0,
		},
		{
			name:         "rounded to cents",
			in:           model.Input{Principal: 100, Rate: 3.3333, Time: 1},
			wantStatus:   model.StatusSuccess,
			wantTotal:    103.33,
			wantInterest: 3.33,
		},
		{
			name:         "half cent rounds away from zero",
			in:           model.Input{Principal: 10.05, Rate: 50, Time: 1},
			wantStatus:   model.StatusSuccess,
			wantTotal:    15.08,
			wantInterest: 5.03,
		},
		{
			name:         "negative half cent rounds away from zero",
			in:           model.Input{Principal: -10.05, Rate: 50, Time: 1},
			wantStatus:   model.StatusSuccess,
			wantTotal:    -15.08,
			wantInterest: -5.03,
		},
		{
			name:         "fractional time",
			in:           model.Input{Principal: 1000, Rate: 21, Time: 0.5},
			wantStatus:   model.StatusSuccess,
			wantTotal:    1100,
			wantInterest: 100,
		},
		{
			name:       "nan principal",
			in:         model.Input{Principal: math.NaN(), Rate: 5, Time: 1},
			wantStatus: model.StatusError,
		},
		{
			name:       "infinite rate",
			in:         model.Input{Principal: 100, Rate: math.Inf(1), Time: 1},
			wantStatus: model.StatusError,
		},
		{
			name:       "negative base with fractional time",
			in:         model.Input{Principal: 100, Rate: -300, Time: 0.5},
			wantStatus: model.StatusError,
		},
		{
			name:       "overflow",
			in:         model.Input{Principal: math.MaxFloat64, Rate: 100, Time: 10},
			wantStatus: model.StatusError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Calculate(tt.in)
			require.Equal(t, tt.wantStatus, res.Status, "message: %s", res.Message)

			if tt.wantStatus != model.StatusSuccess {
				assert.NotEmpty(t, res.Message)
				return
			}
			assert.Equal(t, tt.wantTotal, res.TotalAmount)
			assert.Equal(t, tt.wantInterest, res.InterestEarned)
			assert.Equal(t, tt.in.Principal, res.Principal)
		})
	}
}

func TestCalculate_AmountsAreWholeCents(t *testing.T) {
	tests := []struct {
		in        model.Input
		wantTotal string
	}{
		{in: model.Input{Principal: 0.1, Rate: 200, Time: 1}, wantTotal: "0.3"},
		{in: model.Input{Principal: 1000.1, Rate: 5, Time: 2}, wantTotal: "1102.61"},
		{in: model.Input{Principal: 19.99, Rate: 3.5, Time: 4}, wantTotal: "22.94"},
		{in: model.Input{Principal: 123.45, Rate: 7, Time: 3}, wantTotal: "151.23"},
	}

	for _, tt := range tests {
		res := Calculate(tt.in)
		require.True(t, res.Succeeded(), "input %+v: %s", tt.in, res.Message)

		body, err := json.Marshal(map[string]float64{"total_amount": res.TotalAmount})
		require.NoError(t, err)
		assert.Equal(t, `{"total_amount":`+tt.wantTotal+`}`, string(body), "input %+v", tt.in)
	}
}

func TestCalculate_TotalIsPrincipalPlusInterest(t *testing.T) {
	inputs := []model.Input{
		{Principal: 1000, Rate: 5, Time: 2},
		{Principal: 1234.56, Rate: 7.25, Time: 3.5},
		{Principal: 0.01, Rate: 99, Time: 40},
		{Principal: 1e9, Rate: 0.1, Time: 1},
		{Principal: -200, Rate: 4, Time: 2},
		{Principal: 10, Rate: -50, Time: 3},
		{Principal: 123.45, Rate: 7, Time: 3},
		{Principal: 100.005, Rate: 0, Time: 1},
	}

	for _, in := range inputs {
		res := Calculate(in)
		require.True(t, res.Succeeded(), "input %+v: %s", in, res.Message)

		total := decimal.NewFromFloat(res.TotalAmount)
		sum := decimal.NewFromFloat(in.Principal).Add(decimal.NewFromFloat(res.InterestEarned))
		if !total.Equal(sum) {
			t.Fatalf("input %+v: total %s != principal + interest %s", in, total, sum)
		}
		assert.True(t, res.Consistent())
		assert.True(t, total.Equal(total.Round(2)), "total %s is not rounded to cents", total)
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	in := model.Input{Principal: 1500, Rate: 4.3, Time: 6}

	first := Calculate(in)
	for i := 0; i < 100; i++ {
		if got := Calculate(in); got != first {
			t.Fatalf("Calculate is not deterministic: %+v != %+v", got, first)
		}
	}
}

func TestEngine_Calculate(t *testing.T) {
	res, err := Engine{}.Calculate(context.Background(), model.Input{Principal: 1000, Rate: 5, Time: 2})
	require.NoError(t, err)
	assert.Equal(t, Calculate(model.Input{Principal: 1000, Rate: 5, Time: 2}), res)
}

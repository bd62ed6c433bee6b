package filter

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/stretchr/testify/assert"
)

func vehicle(opts ...func(*domain.Vehicle)) domain.Vehicle {
	v := domain.Vehicle{VIN: "1HGCM82633A004352", Make: "Honda", Model: "Accord", VehicleType: domain.VehicleTypeUsed, Stock: "A100"}
	for _, o := range opts {
		o(&v)
	}
	return v
}

func withPrice(p int64) func(*domain.Vehicle) {
	return func(v *domain.Vehicle) {
		d := decimal.NewFromInt(p)
		v.Price = &d
	}
}

func withYear(y int) func(*domain.Vehicle) {
	return func(v *domain.Vehicle) { v.Year = &y }
}

func TestEvaluate_NoRulesAccepts(t *testing.T) {
	d := Evaluate(vehicle(), domain.FilterRules{})
	assert.True(t, d.Accepted)
}

func TestEvaluate_ExcludeConditions(t *testing.T) {
	d := Evaluate(vehicle(), domain.FilterRules{ExcludeConditions: []domain.VehicleType{domain.VehicleTypeUsed}})
	assert.False(t, d.Accepted)
	assert.Equal(t, "exclude_conditions", d.Reason)
}

func TestEvaluate_RequireStock(t *testing.T) {
	v := vehicle()
	v.Stock = ""
	d := Evaluate(v, domain.FilterRules{RequireStock: true})
	assert.False(t, d.Accepted)
	assert.Equal(t, "require_stock", d.Reason)
}

func TestEvaluate_PriceBounds_NullPriceRejectedWhenBoundSet(t *testing.T) {
	minP := decimal.NewFromInt(10000)
	d := Evaluate(vehicle(), domain.FilterRules{MinPrice: &minP})
	assert.False(t, d.Accepted)
	assert.Equal(t, "min_price", d.Reason)
}

func TestEvaluate_PriceBounds_MinZeroRequiresNonNull(t *testing.T) {
	zero := decimal.NewFromInt(0)
	d := Evaluate(vehicle(), domain.FilterRules{MinPrice: &zero})
	assert.False(t, d.Accepted, "null price must fail even when min_price is 0, distinct from 'no lower bound'")
}

func TestEvaluate_PriceBounds_WithinRange(t *testing.T) {
	minP := decimal.NewFromInt(5000)
	maxP := decimal.NewFromInt(20000)
	d := Evaluate(vehicle(withPrice(15000)), domain.FilterRules{MinPrice: &minP, MaxPrice: &maxP})
	assert.True(t, d.Accepted)
}

func TestEvaluate_PriceBounds_AboveMax(t *testing.T) {
	maxP := decimal.NewFromInt(10000)
	d := Evaluate(vehicle(withPrice(15000)), domain.FilterRules{MaxPrice: &maxP})
	assert.False(t, d.Accepted)
	assert.Equal(t, "max_price", d.Reason)
}

func TestEvaluate_YearBounds(t *testing.T) {
	minY, maxY := 2015, 2022
	rules := domain.FilterRules{MinYear: &minY, MaxYear: &maxY}

	assert.False(t, Evaluate(vehicle(), rules).Accepted, "nil year must fail when bounds are set")
	assert.True(t, Evaluate(vehicle(withYear(2020)), rules).Accepted)
	assert.False(t, Evaluate(vehicle(withYear(2010)), rules).Accepted)
	assert.False(t, Evaluate(vehicle(withYear(2023)), rules).Accepted)
}

func TestEvaluate_IncludeOnlyMakesWinsOverExclude(t *testing.T) {
	rules := domain.FilterRules{
		IncludeOnlyMakes: []string{"Honda", "Toyota"},
		ExcludeMakes:     []string{"Honda"},
	}
	d := Evaluate(vehicle(), rules)
	assert.True(t, d.Accepted, "include list wins when non-empty, per spec")
}

func TestEvaluate_IncludeOnlyMakesRejectsOthers(t *testing.T) {
	rules := domain.FilterRules{IncludeOnlyMakes: []string{"Toyota"}}
	d := Evaluate(vehicle(), rules)
	assert.False(t, d.Accepted)
	assert.Equal(t, "include_only_makes", d.Reason)
}

func TestEvaluate_ExcludeModelsCaseInsensitiveSubstring(t *testing.T) {
	v := vehicle()
	v.Model = "Accord Hybrid"
	d := Evaluate(v, domain.FilterRules{ExcludeModels: []string{"hybrid"}})
	assert.False(t, d.Accepted)
	assert.Equal(t, "exclude_models", d.Reason)
}

func TestDecision_ReasonString(t *testing.T) {
	d := Decision{Accepted: false, Reason: "min_price"}
	assert.Equal(t, domain.ResolveReason("filtered:min_price"), d.ReasonString())
}

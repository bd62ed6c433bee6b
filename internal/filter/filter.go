// Package filter implements the pure dealership filter rule evaluation
// (§4.4). Evaluate never touches the Store; it is a deterministic function
// of a vehicle and a set of rules.
package filter

import (
	"fmt"
	"strings"

	"github.com/silverfox/cao-engine/internal/domain"
)

// Decision is the outcome of evaluating one vehicle against one
// dealership's filter rules.
type Decision struct {
	Accepted bool
	Reason   string // name of the first failing rule; empty when accepted
}

// Evaluate applies rules to v, combined by logical AND, returning the
// first failing rule for diagnostics (§4.4: "returns the first failing
// rule name").
func Evaluate(v domain.Vehicle, rules domain.FilterRules) Decision {
	for _, check := range []func(domain.Vehicle, domain.FilterRules) (bool, string){
		checkExcludeConditions,
		checkRequireStock,
		checkPriceBounds,
		checkYearBounds,
		checkMakeLists,
		checkExcludeModels,
	} {
		if ok, reason := check(v, rules); !ok {
			return Decision{Accepted: false, Reason: reason}
		}
	}
	return Decision{Accepted: true}
}

func checkExcludeConditions(v domain.Vehicle, rules domain.FilterRules) (bool, string) {
	for _, excluded := range rules.ExcludeConditions {
		if v.VehicleType == excluded {
			return false, "exclude_conditions"
		}
	}
	return true, ""
}

func checkRequireStock(v domain.Vehicle, rules domain.FilterRules) (bool, string) {
	if rules.RequireStock && strings.TrimSpace(v.Stock) == "" {
		return false, "require_stock"
	}
	return true, ""
}

func checkPriceBounds(v domain.Vehicle, rules domain.FilterRules) (bool, string) {
	if rules.MinPrice == nil && rules.MaxPrice == nil {
		return true, ""
	}
	if v.Price == nil {
		return false, "min_price"
	}
	if rules.MinPrice != nil && v.Price.LessThan(*rules.MinPrice) {
		return false, "min_price"
	}
	if rules.MaxPrice != nil && v.Price.GreaterThan(*rules.MaxPrice) {
		return false, "max_price"
	}
	return true, ""
}

func checkYearBounds(v domain.Vehicle, rules domain.FilterRules) (bool, string) {
	if rules.MinYear == nil && rules.MaxYear == nil {
		return true, ""
	}
	if v.Year == nil {
		return false, "min_year"
	}
	if rules.MinYear != nil && *v.Year < *rules.MinYear {
		return false, "min_year"
	}
	if rules.MaxYear != nil && *v.Year > *rules.MaxYear {
		return false, "max_year"
	}
	return true, ""
}

func checkMakeLists(v domain.Vehicle, rules domain.FilterRules) (bool, string) {
	if len(rules.IncludeOnlyMakes) > 0 {
		for _, make := range rules.IncludeOnlyMakes {
			if strings.EqualFold(make, v.Make) {
				return true, ""
			}
		}
		return false, "include_only_makes"
	}
	for _, excluded := range rules.ExcludeMakes {
		if strings.EqualFold(excluded, v.Make) {
			return false, "exclude_makes"
		}
	}
	return true, ""
}

func checkExcludeModels(v domain.Vehicle, rules domain.FilterRules) (bool, string) {
	for _, excluded := range rules.ExcludeModels {
		if excluded == "" {
			continue
		}
		if strings.Contains(strings.ToLower(v.Model), strings.ToLower(excluded)) {
			return false, "exclude_models"
		}
	}
	return true, ""
}

// ReasonString renders a Decision's reason the way the resolver prefixes
// filter rejections (§4.5 rule table: "filtered:<rule>").
func (d Decision) ReasonString() domain.ResolveReason {
	return domain.ResolveReason(fmt.Sprintf("filtered:%s", d.Reason))
}

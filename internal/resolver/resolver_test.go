package resolver

import (
	"testing"
	"time"

	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/stretchr/testify/assert"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatal(err)
	}
	return tm
}

func TestClassify_S1_CrossDealershipMove(t *testing.T) {
	// Dealership B inventory contains a VIN whose only VIN log entry is at
	// dealership A; B has no local history for it.
	v := domain.Vehicle{VIN: "1HGCM82633A000001", VehicleType: domain.VehicleTypeUsed}
	cross := []domain.VINLogEntry{{Dealership: "A", VIN: v.VIN, OrderType: domain.OrderTypeCAO, VehicleType: domain.VehicleTypeUsed, ProcessedDate: mustParse(t, "2025-01-10")}}

	action, reason := classify(v, nil, cross, domain.FilterRules{}, mustParse(t, "2025-01-20"))
	assert.Equal(t, domain.ActionInclude, action)
	assert.Equal(t, domain.ReasonCrossDealership, reason)
}

func TestClassify_S1_SameDealershipWithinSevenDaysSkipsViaRule3(t *testing.T) {
	// CAO for A five days after its last log entry must skip per rule 3
	// (recent, unchanged type).
	v := domain.Vehicle{VIN: "1HGCM82633A000001", VehicleType: domain.VehicleTypeUsed}
	local := []domain.VINLogEntry{{Dealership: "A", VIN: v.VIN, OrderType: domain.OrderTypeCAO, VehicleType: domain.VehicleTypeUsed, ProcessedDate: mustParse(t, "2025-01-10")}}

	action, reason := classify(v, local, nil, domain.FilterRules{}, mustParse(t, "2025-01-15"))
	assert.Equal(t, domain.ActionSkip, action)
	assert.Equal(t, domain.ReasonRecentUnchanged, reason)
}

func TestClassify_S2_StatusChange(t *testing.T) {
	v := domain.Vehicle{VIN: "5YJ3E1EA6KF000002", VehicleType: domain.VehicleTypeCertified}
	local := []domain.VINLogEntry{{VIN: v.VIN, OrderType: domain.OrderTypeCAO, VehicleType: domain.VehicleTypeNew, ProcessedDate: mustParse(t, "2025-01-15")}}

	action, reason := classify(v, local, nil, domain.FilterRules{}, mustParse(t, "2025-01-22"))
	assert.Equal(t, domain.ActionInclude, action)
	assert.Equal(t, domain.ReasonStatusChange, reason)
}

func TestClassify_S3_BaselineAlwaysSkips(t *testing.T) {
	v := domain.Vehicle{VIN: "JH4KA7561PC000003", VehicleType: domain.VehicleTypeCertified}
	local := []domain.VINLogEntry{{VIN: v.VIN, OrderType: domain.OrderTypeBaseline, VehicleType: domain.VehicleTypeNew, ProcessedDate: mustParse(t, "2020-01-01")}}

	action, reason := classify(v, local, nil, domain.FilterRules{}, mustParse(t, "2025-06-01"))
	assert.Equal(t, domain.ActionSkip, action)
	assert.Equal(t, domain.ReasonBaseline, reason)
}

func TestClassify_S4_SameDayDuplicateWithinOneDay(t *testing.T) {
	v := domain.Vehicle{VIN: "WBA3A5C50DF000004", VehicleType: domain.VehicleTypeUsed}
	local := []domain.VINLogEntry{{VIN: v.VIN, OrderType: domain.OrderTypeCAO, VehicleType: domain.VehicleTypeUsed, ProcessedDate: mustParse(t, "2025-02-01")}}

	action, reason := classify(v, local, nil, domain.FilterRules{}, mustParse(t, "2025-02-01"))
	assert.Equal(t, domain.ActionSkip, action)
	assert.Equal(t, domain.ReasonSameDayDuplicate, reason)
}

func TestClassify_FirstTimeNoHistory(t *testing.T) {
	v := domain.Vehicle{VIN: "1FTFW1ET1EFA00005", VehicleType: domain.VehicleTypeNew}
	action, reason := classify(v, nil, nil, domain.FilterRules{}, mustParse(t, "2025-03-01"))
	assert.Equal(t, domain.ActionInclude, action)
	assert.Equal(t, domain.ReasonFirstTime, reason)
}

func TestClassify_UnchangedTypeOutsideWindowFallsThroughToFirstTime(t *testing.T) {
	v := domain.Vehicle{VIN: "1FTFW1ET1EFA00006", VehicleType: domain.VehicleTypeUsed}
	local := []domain.VINLogEntry{{VIN: v.VIN, OrderType: domain.OrderTypeCAO, VehicleType: domain.VehicleTypeUsed, ProcessedDate: mustParse(t, "2025-01-01")}}

	action, reason := classify(v, local, nil, domain.FilterRules{}, mustParse(t, "2025-03-01"))
	assert.Equal(t, domain.ActionInclude, action)
	assert.Equal(t, domain.ReasonFirstTime, reason)
}

func TestClassify_InvalidVIN(t *testing.T) {
	v := domain.Vehicle{VIN: "SHORT", Incomplete: true, VehicleType: domain.VehicleTypeUsed}
	action, reason := classify(v, nil, nil, domain.FilterRules{}, mustParse(t, "2025-03-01"))
	assert.Equal(t, domain.ActionSkip, action)
	assert.Equal(t, domain.ReasonInvalidVIN, reason)
}

func TestClassify_FilterRejectionBypassesAllSixRules(t *testing.T) {
	v := domain.Vehicle{VIN: "1HGCM82633A004352", VehicleType: domain.VehicleTypeNew}
	rules := domain.FilterRules{ExcludeConditions: []domain.VehicleType{domain.VehicleTypeNew}}
	// Even with cross-dealership history that would otherwise include it.
	cross := []domain.VINLogEntry{{VIN: v.VIN, VehicleType: domain.VehicleTypeNew, ProcessedDate: mustParse(t, "2025-01-01")}}

	action, reason := classify(v, nil, cross, rules, mustParse(t, "2025-03-01"))
	assert.Equal(t, domain.ActionSkip, action)
	assert.Equal(t, domain.ResolveReason("filtered:exclude_conditions"), reason)
}

func TestClassify_LocalWinsOverCrossDealership(t *testing.T) {
	// VIN appears both cross-dealership and locally within 7 days unchanged;
	// rules 1-3 take precedence over rule 4.
	v := domain.Vehicle{VIN: "1HGCM82633A000099", VehicleType: domain.VehicleTypeUsed}
	local := []domain.VINLogEntry{{VIN: v.VIN, OrderType: domain.OrderTypeCAO, VehicleType: domain.VehicleTypeUsed, ProcessedDate: mustParse(t, "2025-02-01")}}
	cross := []domain.VINLogEntry{{VIN: v.VIN, VehicleType: domain.VehicleTypeUsed, ProcessedDate: mustParse(t, "2025-01-01")}}

	action, reason := classify(v, local, cross, domain.FilterRules{}, mustParse(t, "2025-02-03"))
	assert.Equal(t, domain.ActionSkip, action)
	assert.Equal(t, domain.ReasonRecentUnchanged, reason)
}

func TestDaysSince(t *testing.T) {
	now := mustParse(t, "2025-02-05")
	assert.Equal(t, 0, daysSince(now, mustParse(t, "2025-02-05")))
	assert.Equal(t, 1, daysSince(now, mustParse(t, "2025-02-04")))
	assert.Equal(t, 7, daysSince(now, mustParse(t, "2025-01-29")))
}

package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoCompensationWithoutDelay(t *testing.T) {
	assert.Nil(t, CalculateCompensation(0, nil))
	assert.Nil(t, CalculateCompensation(-3, nil))
}

func TestNoCompensationForClientCausedDelay(t *testing.T) {
	reasons := []Reason{{Type: ReasonClient, Description: "client unavailable", IsResolved: false}}

	// 30 days exceeds every threshold, yet the unresolved client cause
	// blocks compensation unconditionally.
	assert.Nil(t, CalculateCompensation(30, reasons))
}

func TestResolvedClientReasonDoesNotBlock(t *testing.T) {
	reasons := []Reason{
		{Type: ReasonClient, Description: "client was slow, resolved", IsResolved: true},
		{Type: ReasonTechnical, Description: "refactor overrun"},
	}

	plan := CalculateCompensation(10, reasons)
	require.NotNil(t, plan)
	assert.Equal(t, CompensationPrioritySupport, plan.Type)
}

func TestHighestQualifyingTierWins(t *testing.T) {
	tests := []struct {
		daysOverdue int
		wantType    CompensationType
		wantValue   float64
	}{
		{1, CompensationDiscount, 5},
		{2, CompensationDiscount, 5},
		{3, CompensationDiscount, 10},
		{6, CompensationDiscount, 10},
		{7, CompensationPrioritySupport, 15},
		{13, CompensationPrioritySupport, 15},
		{14, CompensationServiceCredit, 25},
		{29, CompensationServiceCredit, 25},
		{30, CompensationFeeWaiver, 100},
		{365, CompensationFeeWaiver, 100},
	}
	for _, tt := range tests {
		plan := CalculateCompensation(tt.daysOverdue, nil)
		require.NotNil(t, plan, "daysOverdue=%d", tt.daysOverdue)
		assert.Equal(t, tt.wantType, plan.Type, "daysOverdue=%d", tt.daysOverdue)
		assert.Equal(t, tt.wantValue, plan.Value, "daysOverdue=%d", tt.daysOverdue)
	}
}

func TestCustomTiers(t *testing.T) {
	tiers := []CompensationTier{
		{MinDelayDays: 5, Plan: CompensationPlan{Type: CompensationDiscount, Value: 50}},
	}

	assert.Nil(t, CalculateCompensationWith(tiers, 4, nil), "below every threshold")

	plan := CalculateCompensationWith(tiers, 5, nil)
	require.NotNil(t, plan)
	assert.Equal(t, 50.0, plan.Value)
}

func TestPlanConditionsAreCopied(t *testing.T) {
	plan := CalculateCompensation(7, nil)
	require.NotNil(t, plan)
	require.NotEmpty(t, plan.Conditions)

	plan.Conditions[0] = "mutated"
	fresh := CalculateCompensation(7, nil)
	assert.NotEqual(t, "mutated", fresh.Conditions[0])
}

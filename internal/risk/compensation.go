package risk

// CompensationType identifies the concession offered to a client.
type CompensationType string

const (
	CompensationDiscount        CompensationType = "discount"
	CompensationServiceCredit   CompensationType = "service_credit"
	CompensationPrioritySupport CompensationType = "priority_support"
	CompensationFeeWaiver       CompensationType = "fee_waiver"
)

// CompensationPlan is a concrete offer. It is derived output, handed to the
// messaging periphery, and never persisted as state.
type CompensationPlan struct {
	Type        CompensationType `json:"type" koanf:"type"`
	Description string           `json:"description" koanf:"description"`
	// Value is the size of the concession in percent of the project fee.
	Value      float64  `json:"value" koanf:"value"`
	Conditions []string `json:"conditions,omitempty" koanf:"conditions"`
}

// CompensationTier pairs a plan with the minimum delay that unlocks it.
type CompensationTier struct {
	// MinDelayDays is the smallest daysOverdue this tier applies to.
	MinDelayDays int              `json:"min_delay_days" koanf:"min_delay_days"`
	Plan         CompensationPlan `json:"plan" koanf:"plan"`
}

// DefaultCompensationTiers is the built-in offer ladder. Order does not
// matter for selection (the highest threshold not exceeding the delay wins)
// but the table is kept sorted for readability.
func DefaultCompensationTiers() []CompensationTier {
	return []CompensationTier{
		{
			MinDelayDays: 1,
			Plan: CompensationPlan{
				Type:        CompensationDiscount,
				Description: "5% goodwill discount on the project fee",
				Value:       5,
				Conditions:  []string{"applied to the final invoice"},
			},
		},
		{
			MinDelayDays: 3,
			Plan: CompensationPlan{
				Type:        CompensationDiscount,
				Description: "10% discount on the project fee",
				Value:       10,
				Conditions:  []string{"applied to the final invoice"},
			},
		},
		{
			MinDelayDays: 7,
			Plan: CompensationPlan{
				Type:        CompensationPrioritySupport,
				Description: "15% discount plus 30 days of priority support",
				Value:       15,
				Conditions:  []string{"applied to the final invoice", "priority support starts at delivery"},
			},
		},
		{
			MinDelayDays: 14,
			Plan: CompensationPlan{
				Type:        CompensationServiceCredit,
				Description: "25% service credit toward the next engagement",
				Value:       25,
				Conditions:  []string{"credit valid for 12 months"},
			},
		},
		{
			MinDelayDays: 30,
			Plan: CompensationPlan{
				Type:        CompensationFeeWaiver,
				Description: "one monthly fee waived in full",
				Value:       100,
				Conditions:  []string{"waiver covers the month of the missed delivery"},
			},
		},
	}
}

// CalculateCompensation selects an offer for a delay. It returns nil when
// there is nothing to compensate (daysOverdue <= 0) and nil unconditionally
// when any unresolved reason is client-caused, regardless of how long the
// delay is. Otherwise the tier with the highest threshold not exceeding
// daysOverdue wins.
func CalculateCompensation(daysOverdue int, reasons []Reason) *CompensationPlan {
	return CalculateCompensationWith(DefaultCompensationTiers(), daysOverdue, reasons)
}

// CalculateCompensationWith is CalculateCompensation over a caller-supplied
// tier table (used when tiers are overridden from the rules file).
func CalculateCompensationWith(tiers []CompensationTier, daysOverdue int, reasons []Reason) *CompensationPlan {
	if daysOverdue <= 0 {
		return nil
	}
	for _, r := range reasons {
		if r.Type == ReasonClient && !r.IsResolved {
			return nil
		}
	}

	var best *CompensationTier
	for i := range tiers {
		t := tiers[i]
		if t.MinDelayDays > daysOverdue {
			continue
		}
		if best == nil || t.MinDelayDays > best.MinDelayDays {
			best = &tiers[i]
		}
	}
	if best == nil {
		return nil
	}
	plan := best.Plan
	plan.Conditions = append([]string(nil), best.Plan.Conditions...)
	return &plan
}

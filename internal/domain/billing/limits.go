package billing

// Limits is what a plan entitles an organization to.
type Limits struct {
	// MaxAnalysesPerMonth <= 0 means unlimited.
	MaxAnalysesPerMonth  int
	MaxDocumentSize      int64 // bytes
	HasExportAccess      bool
	HasPrioritySupport   bool
	HasAdvancedAnalytics bool
}

// Unlimited reports whether the plan has no monthly analysis cap.
func (l Limits) Unlimited() bool { return l.MaxAnalysesPerMonth <= 0 }

// Declarative plan table. Keeping this a plain map keeps tier changes out of
// orchestration code.
var planLimits = map[Plan]Limits{
	PlanPayPerContract: {
		MaxAnalysesPerMonth: 0, // pay per use
		MaxDocumentSize:     50 << 20,
		HasExportAccess:     true,
	},
	PlanProfessional: {
		MaxAnalysesPerMonth:  100,
		MaxDocumentSize:      100 << 20,
		HasExportAccess:      true,
		HasPrioritySupport:   true,
		HasAdvancedAnalytics: true,
	},
	PlanEnterprise: {
		MaxAnalysesPerMonth:  0, // unlimited
		MaxDocumentSize:      500 << 20,
		HasExportAccess:      true,
		HasPrioritySupport:   true,
		HasAdvancedAnalytics: true,
	},
}

// FreeLimits is the tier applied when no active subscription exists.
func FreeLimits() Limits {
	return Limits{
		MaxAnalysesPerMonth: 3,
		MaxDocumentSize:     10 << 20,
	}
}

// LimitsFor resolves a plan to its limits, falling back to the free tier for
// unknown plan identifiers.
func LimitsFor(p Plan) Limits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return FreeLimits()
}

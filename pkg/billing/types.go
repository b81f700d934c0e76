package billing

// Plan identifies a subscription tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	PlanTeam Plan = "team"
)

// Status represents the current state of a subscription as reported by the
// billing provider. Values mirror the provider's subscription statuses.
type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusUnpaid   Status = "unpaid"
)

// Feature represents a plan-specific capability that can be enabled/disabled.
type Feature string

const (
	FeatureAIAnalysis        Feature = "ai_analysis"
	FeatureAdvancedColors    Feature = "advanced_color_analysis"
	FeatureFontAnalysis      Feature = "font_analysis"
	FeatureUsageHistory      Feature = "usage_history"
	FeaturePremiumExports    Feature = "premium_exports"
	FeatureBatchProcessing   Feature = "batch_processing"
	FeatureAPIAccess         Feature = "api_access"
	FeatureTeamCollaboration Feature = "team_collaboration"
)

// Operation represents a metered operation subject to a usage quota.
type Operation string

const (
	OperationAIAnalyses      Operation = "ai_analyses"
	OperationExports         Operation = "exports"
	OperationBatchOperations Operation = "batch_operations"
)

const (
	// Unlimited indicates no quota for an operation (-1 chosen for SQL compatibility).
	Unlimited int64 = -1
)

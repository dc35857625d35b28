package risk

import "time"

// Status is the schedule-risk verdict for a project in flight.
type Status string

const (
	StatusOnTrack  Status = "on_track"
	StatusAtRisk   Status = "at_risk"
	StatusDelayed  Status = "delayed"
	StatusCritical Status = "critical"
)

// Milestone is one planned checkpoint. The first and last milestone target
// dates bound the expected-progress window.
type Milestone struct {
	TargetDate time.Time `json:"target_date" koanf:"target_date"`
	Weight     float64   `json:"weight" koanf:"weight"`
}

// Config is the assessor input: a snapshot of where a project stands.
type Config struct {
	ProjectID       string      `json:"project_id" koanf:"project_id"`
	PromisedDate    time.Time   `json:"promised_date" koanf:"promised_date"`
	CurrentPhase    string      `json:"current_phase" koanf:"current_phase"`
	CurrentProgress float64     `json:"current_progress" koanf:"current_progress"`
	Milestones      []Milestone `json:"milestones" koanf:"milestones"`
	Blockers        []string    `json:"blockers" koanf:"blockers"`
}

// ReasonType categorizes why a project is late. Blocker strings map to
// exactly one type via ordered keyword matching.
type ReasonType string

const (
	ReasonClient         ReasonType = "client"
	ReasonDependency     ReasonType = "dependency"
	ReasonResource       ReasonType = "resource"
	ReasonScope          ReasonType = "scope"
	ReasonTechnical      ReasonType = "technical"
	ReasonQuality        ReasonType = "quality"
	ReasonInfrastructure ReasonType = "infrastructure"
	ReasonExternal       ReasonType = "external"
	ReasonOther          ReasonType = "other"
)

// Reason is one categorized delay cause.
type Reason struct {
	Type        ReasonType `json:"type"`
	Description string     `json:"description"`
	IsResolved  bool       `json:"is_resolved"`
}

// Priority ranks recommended actions.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

func priorityRank(p Priority) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Action is one recommended mitigation. ID deduplicates actions produced by
// multiple matching rules.
type Action struct {
	ID          string   `json:"id"`
	Priority    Priority `json:"priority"`
	Description string   `json:"description"`
}

// Detection is the assessor output. It is recomputed on demand as a pure
// function of the config and "now"; it is never incrementally mutated.
type Detection struct {
	ProjectID        string    `json:"project_id"`
	Status           Status    `json:"status"`
	PromisedDate     time.Time `json:"promised_date"`
	EstimatedDate    time.Time `json:"estimated_date"`
	DaysOverdue      int       `json:"days_overdue"`
	DaysRemaining    int       `json:"days_remaining"`
	CurrentProgress  float64   `json:"current_progress"`
	ExpectedProgress float64   `json:"expected_progress"`
	ProgressGap      float64   `json:"progress_gap"`
	RiskScore        float64   `json:"risk_score"`
	RiskFactors      []string  `json:"risk_factors"`
	DelayReasons     []Reason  `json:"delay_reasons"`
	Recommended      []Action  `json:"recommended_actions"`
}

package cohort

import (
	"time"

	"biascope/domain/core"
)

// Definition records how a cohort was carved out of the clinical store.
type Definition struct {
	ID          core.CohortID  `json:"id" db:"id"`
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description,omitempty" db:"description"`
	CreatedAt   core.Timestamp `json:"created_at" db:"created_at"`

	// CreationQuery is the read-only selection query that produced the
	// membership, kept for provenance.
	CreationQuery string `json:"creation_query,omitempty" db:"creation_query"`
	CreatedBy     string `json:"created_by,omitempty" db:"created_by"`
}

// Member is one subject's enrollment window in a cohort.
type Member struct {
	SubjectID int64         `json:"subject_id" db:"subject_id"`
	CohortID  core.CohortID `json:"cohort_id" db:"cohort_definition_id"`
	StartDate time.Time     `json:"start_date" db:"cohort_start_date"`
	EndDate   time.Time     `json:"end_date" db:"cohort_end_date"`
}

// Stats summarizes cohort membership windows.
type Stats struct {
	TotalCount      int        `json:"total_count" db:"total_count"`
	EarliestStart   *time.Time `json:"earliest_start,omitempty" db:"earliest_start"`
	LatestStart     *time.Time `json:"latest_start,omitempty" db:"latest_start"`
	EarliestEnd     *time.Time `json:"earliest_end,omitempty" db:"earliest_end"`
	LatestEnd       *time.Time `json:"latest_end,omitempty" db:"latest_end"`
	MinDurationDays *float64   `json:"min_duration_days,omitempty" db:"min_duration_days"`
	MaxDurationDays *float64   `json:"max_duration_days,omitempty" db:"max_duration_days"`
	AvgDurationDays *float64   `json:"avg_duration_days,omitempty" db:"avg_duration_days"`
}

package model

import "time"

// AccountGradeSnapshot is the graded state of one account on one date.
// Natural key: (AccountID, SnapshotDate).
type AccountGradeSnapshot struct {
	AccountID          string    `json:"account_id"`
	TenantID           string    `json:"tenant_id"`
	SnapshotDate       time.Time `json:"snapshot_date"`
	TotalPublished     int       `json:"total_published"`
	DistinctKeywords   int       `json:"distinct_keywords"`
	ExposedKeywords    int       `json:"exposed_keywords"`
	ExposureRate       float64   `json:"exposure_rate"`
	WeightedExposure   float64   `json:"weighted_exposure"`
	ContentVolumeScore float64   `json:"content_volume_score"`
	AvgRank            float64   `json:"avg_rank"`
	Top3Count          int       `json:"top3_count"`
	Top10Count         int       `json:"top10_count"`
	Top3Ratio          float64   `json:"top3_ratio"`
	Top10Ratio         float64   `json:"top10_ratio"`
	Score              float64   `json:"score"`
	Grade              Grade     `json:"grade"`
	PreviousGrade      *Grade    `json:"previous_grade,omitempty"`
	ChangeReason       string    `json:"change_reason,omitempty"`
}

// KeywordDifficultySnapshot is the graded difficulty of one keyword on one date.
// Natural key: (KeywordID, SnapshotDate).
type KeywordDifficultySnapshot struct {
	KeywordID        string      `json:"keyword_id"`
	TenantID         string      `json:"tenant_id"`
	SnapshotDate     time.Time   `json:"snapshot_date"`
	SearchVolume     int         `json:"search_volume"`
	CompetitionLevel Competition `json:"competition_level"`
	OwnRank          *int        `json:"own_rank,omitempty"`
	MoRatio          float64     `json:"mo_ratio"`
	VolumeScore      float64     `json:"volume_score"`
	CompetitionScore float64     `json:"competition_score"`
	SerpScore        float64     `json:"serp_score"`
	DifficultyScore  float64     `json:"difficulty_score"`
	Grade            Grade       `json:"grade"`
	OpportunityScore float64     `json:"opportunity_score"`
}

// GradeChange is emitted when an account's grade differs from its prior snapshot.
type GradeChange struct {
	TenantID    string  `json:"tenant_id"`
	AccountID   string  `json:"account_id"`
	AccountName string  `json:"account_name"`
	Prev        Grade   `json:"prev"`
	Curr        Grade   `json:"curr"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason"`
}

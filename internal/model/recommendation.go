package model

import "time"

// RecommendationStatus is the consumption state of a recommendation. Only
// external consumers move it off pending.
type RecommendationStatus string

const (
	RecommendationPending  RecommendationStatus = "pending"
	RecommendationAccepted RecommendationStatus = "accepted"
	RecommendationRejected RecommendationStatus = "rejected"
)

// FeedbackResult is the observed outcome recorded after a recommendation was used.
type FeedbackResult string

const (
	FeedbackTop3     FeedbackResult = "top3"
	FeedbackTop10    FeedbackResult = "top10"
	FeedbackTop20    FeedbackResult = "top20"
	FeedbackTop50    FeedbackResult = "top50"
	FeedbackUnranked FeedbackResult = "unranked"
)

// Success reports whether the outcome reached the first results page.
func (f FeedbackResult) Success() bool {
	return f == FeedbackTop3 || f == FeedbackTop10
}

// BlockedCandidate records an account removed from ranking by a blocking rule.
type BlockedCandidate struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name,omitempty"`
	Reason      string `json:"reason"`
}

// Penalties is the audit payload stored with every recommendation row.
type Penalties struct {
	Blocked []BlockedCandidate `json:"blocked"`
}

// Recommendation pairs a keyword with a ranked candidate account.
// Natural key: (TenantID, KeywordID, AccountID, RecDate).
type Recommendation struct {
	TenantID       string               `json:"tenant_id"`
	KeywordID      string               `json:"keyword_id"`
	AccountID      string               `json:"account_id"`
	RecDate        time.Time            `json:"rec_date"`
	MatchScore     float64              `json:"match_score"`
	Rank           int                  `json:"rank"`
	AccountGrade   Grade                `json:"account_grade"`
	KeywordGrade   Grade                `json:"keyword_grade"`
	Bonuses        map[string]float64   `json:"bonuses"`
	Penalties      Penalties            `json:"penalties"`
	Reason         string               `json:"reason"`
	Status         RecommendationStatus `json:"status"`
	FeedbackResult *FeedbackResult      `json:"feedback_result,omitempty"`
}

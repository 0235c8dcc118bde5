package model

import "time"

// Competition is the advertiser competition level reported for a keyword.
type Competition string

const (
	CompetitionHigh   Competition = "high"
	CompetitionMedium Competition = "medium"
	CompetitionLow    Competition = "low"
)

// KeywordStatus is the tracking state of a keyword.
type KeywordStatus string

const (
	KeywordStatusActive   KeywordStatus = "active"
	KeywordStatusQueued   KeywordStatus = "queued"
	KeywordStatusRefresh  KeywordStatus = "refresh"
	KeywordStatusPaused   KeywordStatus = "paused"
	KeywordStatusArchived KeywordStatus = "archived"
)

// Tracked reports whether keywords in this status are graded.
func (s KeywordStatus) Tracked() bool {
	switch s {
	case KeywordStatusActive, KeywordStatusQueued, KeywordStatusRefresh:
		return true
	default:
		return false
	}
}

// Keyword is a tracked search keyword.
type Keyword struct {
	ID            string        `json:"id" yaml:"id"`
	TenantID      string        `json:"tenant_id" yaml:"tenant_id"`
	Text          string        `json:"text" yaml:"text"`
	VolumeDesktop int           `json:"volume_desktop" yaml:"volume_desktop"`
	VolumeMobile  int           `json:"volume_mobile" yaml:"volume_mobile"`
	Competition   Competition   `json:"competition" yaml:"competition"`
	OwnRank       *int          `json:"own_rank,omitempty" yaml:"own_rank,omitempty"` // nil = not ranked
	Status        KeywordStatus `json:"status" yaml:"status"`

	// VolumeMissing is set when the roster had no volume figures; both
	// volumes then read as 0.
	VolumeMissing bool `json:"-" yaml:"-"`
}

// TotalVolume returns the combined monthly desktop and mobile search volume.
func (k *Keyword) TotalVolume() int {
	return max(k.VolumeDesktop, 0) + max(k.VolumeMobile, 0)
}

// Ranked reports whether the tenant's own content currently holds a rank.
func (k *Keyword) Ranked() bool {
	return k.OwnRank != nil && *k.OwnRank > 0
}

// SerpObservation is one measured SERP position.
type SerpObservation struct {
	KeywordID  string    `json:"keyword_id" yaml:"keyword_id"`
	AccountID  *string   `json:"account_id,omitempty" yaml:"account_id,omitempty"` // nil = competitor
	Rank       *int      `json:"rank,omitempty" yaml:"rank,omitempty"`
	ObservedAt time.Time `json:"observed_at" yaml:"observed_at"`
	IsOwn      bool      `json:"is_own" yaml:"is_own"`
}

// AccountKeyword identifies an account↔keyword pair.
type AccountKeyword struct {
	AccountID string
	KeywordID string
}

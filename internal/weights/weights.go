// Package weights holds the tunable weight, threshold and tier configuration
// shared by the account grader, keyword grader and recommendation matcher.
package weights

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/sells-group/rankwise/internal/model"
)

// Config is one weight document. A run loads it once and passes it to every
// stage explicitly.
type Config struct {
	Account AccountWeights `yaml:"account" json:"account"`
	Keyword KeywordWeights `yaml:"keyword" json:"keyword"`
	Match   MatchWeights   `yaml:"match" json:"match"`

	AccountThresholds Thresholds `yaml:"account_thresholds" json:"account_thresholds"`
	KeywordThresholds Thresholds `yaml:"keyword_thresholds" json:"keyword_thresholds"`

	ContentVolumeTiers Tiers `yaml:"content_volume_tiers" json:"content_volume_tiers"`
	SearchVolumeTiers  Tiers `yaml:"search_volume_tiers" json:"search_volume_tiers"`

	// OwnRankBonus adjusts the SERP baseline of 50 when the tenant already
	// ranks in the top 10. Usually negative.
	OwnRankBonus float64 `yaml:"own_rank_bonus" json:"own_rank_bonus"`

	// GradeMatch is keyed by account grade, then keyword grade.
	GradeMatch map[model.Grade]map[model.Grade]float64 `yaml:"grade_match" json:"grade_match"`
	// FreshnessCurve[n] scores an account with n recent publishes; the last
	// entry applies to every larger count.
	FreshnessCurve []float64   `yaml:"freshness_curve" json:"freshness_curve"`
	FreshnessDays  int         `yaml:"freshness_days" json:"freshness_days"`
	Relevance      Relevance   `yaml:"relevance" json:"relevance"`
	VolumeBands    VolumeBands `yaml:"volume_bands" json:"volume_bands"`

	Blocking Blocking `yaml:"blocking" json:"blocking"`
}

// AccountWeights weighs the three account-grade components.
type AccountWeights struct {
	WeightedExposure float64 `yaml:"weighted_exposure" json:"weighted_exposure"`
	ExposureRate     float64 `yaml:"exposure_rate" json:"exposure_rate"`
	ContentVolume    float64 `yaml:"content_volume" json:"content_volume"`
}

// Sum returns the total of the account weights.
func (w AccountWeights) Sum() float64 {
	return w.WeightedExposure + w.ExposureRate + w.ContentVolume
}

// KeywordWeights weighs the three keyword-difficulty components.
type KeywordWeights struct {
	Volume      float64 `yaml:"volume" json:"volume"`
	Competition float64 `yaml:"competition" json:"competition"`
	Serp        float64 `yaml:"serp" json:"serp"`
}

// Sum returns the total of the keyword weights.
func (w KeywordWeights) Sum() float64 {
	return w.Volume + w.Competition + w.Serp
}

// MatchWeights weighs the four recommendation components.
type MatchWeights struct {
	GradeMatch float64 `yaml:"grade_match" json:"grade_match"`
	Freshness  float64 `yaml:"freshness" json:"freshness"`
	Relevance  float64 `yaml:"relevance" json:"relevance"`
	VolumeFit  float64 `yaml:"volume_fit" json:"volume_fit"`
}

// Sum returns the total of the match weights.
func (w MatchWeights) Sum() float64 {
	return w.GradeMatch + w.Freshness + w.Relevance + w.VolumeFit
}

// Relevance scores whether an account has ever reached the top 3.
type Relevance struct {
	Top3    float64 `yaml:"top3" json:"top3"`
	Default float64 `yaml:"default" json:"default"`
}

// Blocking holds the hard exclusion rules of the matcher.
type Blocking struct {
	// RecentDays is the trailing window in which a prior publish for the same
	// keyword blocks an account. Always enforced.
	RecentDays     int  `yaml:"recent_days" json:"recent_days"`
	AlreadyExposed bool `yaml:"already_exposed" json:"already_exposed"`
}

// Thresholds are the minimum scores for each grade.
type Thresholds struct {
	S float64 `yaml:"S" json:"S"`
	A float64 `yaml:"A" json:"A"`
	B float64 `yaml:"B" json:"B"`
	C float64 `yaml:"C" json:"C"`
}

// Grade returns the first grade, scanned S→A→B→C, whose threshold the score
// meets. Scores below every threshold grade C.
func (t Thresholds) Grade(score float64) model.Grade {
	switch {
	case score >= t.S:
		return model.GradeS
	case score >= t.A:
		return model.GradeA
	case score >= t.B:
		return model.GradeB
	default:
		return model.GradeC
	}
}

// Tier maps values at or above Min to Score.
type Tier struct {
	Min   float64 `yaml:"min" json:"min"`
	Score float64 `yaml:"score" json:"score"`
}

// Tiers is a monotonic step function.
type Tiers []Tier

// Lookup returns the score of the highest tier whose Min is <= v, or 0 when v
// is below every tier.
func (ts Tiers) Lookup(v float64) float64 {
	sorted := make(Tiers, len(ts))
	copy(sorted, ts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	var score float64
	for _, t := range sorted {
		if v < t.Min {
			break
		}
		score = t.Score
	}
	return score
}

// VolumeBand scores account grades for keywords at or above MinVolume.
type VolumeBand struct {
	MinVolume int                     `yaml:"min_volume" json:"min_volume"`
	Scores    map[model.Grade]float64 `yaml:"scores" json:"scores"`
}

// VolumeBands is the volume-fit table.
type VolumeBands []VolumeBand

// Lookup returns the score for an account grade on a keyword of the given
// monthly volume. The highest band whose MinVolume is <= volume applies.
func (bs VolumeBands) Lookup(volume int, g model.Grade) float64 {
	var band *VolumeBand
	for i := range bs {
		if volume >= bs[i].MinVolume && (band == nil || bs[i].MinVolume > band.MinVolume) {
			band = &bs[i]
		}
	}
	if band == nil {
		return 0
	}
	return band.Scores[g]
}

// Freshness returns the freshness-curve score for a recent publish count.
func (c *Config) Freshness(recent int) float64 {
	if len(c.FreshnessCurve) == 0 {
		return 0
	}
	if recent < 0 {
		recent = 0
	}
	if recent >= len(c.FreshnessCurve) {
		return c.FreshnessCurve[len(c.FreshnessCurve)-1]
	}
	return c.FreshnessCurve[recent]
}

// GradeMatchScore returns the grade-match matrix cell for a pairing.
func (c *Config) GradeMatchScore(account, keyword model.Grade) float64 {
	return c.GradeMatch[account][keyword]
}

// Hash returns a short SHA-256 of the document for run reproducibility.
func Hash(c *Config) string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16])
}

// Clamp bounds v to [0, 100].
func Clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

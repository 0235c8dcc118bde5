package weights

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rankwise/internal/model"
)

// sumTolerance is how far a weight group may drift from 1 before a warning.
const sumTolerance = 0.01

// Validate checks a document. Weight-sum drift, negative weights and
// out-of-order thresholds are returned as warnings so a misconfiguration
// never halts the batch. A document the stages cannot compute with at all
// returns an error.
func Validate(c *Config) ([]string, error) {
	var warnings []string

	groups := []struct {
		name    string
		weights map[string]float64
	}{
		{"account", map[string]float64{
			"weighted_exposure": c.Account.WeightedExposure,
			"exposure_rate":     c.Account.ExposureRate,
			"content_volume":    c.Account.ContentVolume,
		}},
		{"keyword", map[string]float64{
			"volume":      c.Keyword.Volume,
			"competition": c.Keyword.Competition,
			"serp":        c.Keyword.Serp,
		}},
		{"match", map[string]float64{
			"grade_match": c.Match.GradeMatch,
			"freshness":   c.Match.Freshness,
			"relevance":   c.Match.Relevance,
			"volume_fit":  c.Match.VolumeFit,
		}},
	}
	for _, g := range groups {
		var sum float64
		for name, w := range g.weights {
			if w < 0 {
				warnings = append(warnings, fmt.Sprintf("%s.%s must be >= 0", g.name, name))
			}
			sum += w
		}
		if math.Abs(sum-1) > sumTolerance {
			warnings = append(warnings, fmt.Sprintf("%s weights should sum to 1, got %.3f", g.name, sum))
		}
	}

	for name, t := range map[string]Thresholds{"account": c.AccountThresholds, "keyword": c.KeywordThresholds} {
		if !(t.S >= t.A && t.A >= t.B && t.B >= t.C) {
			warnings = append(warnings, fmt.Sprintf("%s thresholds should descend S>=A>=B>=C", name))
		}
	}

	if c.Blocking.RecentDays <= 0 {
		warnings = append(warnings, "blocking.recent_days must be > 0; the recent-publish block stays on with the default window")
	}

	var errs []string
	if len(c.FreshnessCurve) == 0 {
		errs = append(errs, "freshness_curve is empty")
	}
	if len(c.VolumeBands) == 0 {
		errs = append(errs, "volume_bands is empty")
	}
	for _, a := range model.Grades {
		for _, k := range model.Grades {
			if _, ok := c.GradeMatch[a][k]; !ok {
				errs = append(errs, fmt.Sprintf("grade_match[%s][%s] is missing", a, k))
			}
		}
	}
	for g := range c.GradeMatch {
		if !g.Valid() {
			errs = append(errs, fmt.Sprintf("grade_match has unknown grade %q", g))
		}
	}

	if len(errs) > 0 {
		return warnings, eris.Errorf("weights: invalid document: %s", strings.Join(errs, "; "))
	}
	return warnings, nil
}

// RecentDays returns the recent-publish block window, falling back to the
// legacy window when the document disables it.
func (c *Config) RecentDays() int {
	if c.Blocking.RecentDays <= 0 {
		return Legacy().Blocking.RecentDays
	}
	return c.Blocking.RecentDays
}

// FreshnessWindow returns the freshness-signal window in days.
func (c *Config) FreshnessWindow() int {
	if c.FreshnessDays <= 0 {
		return Legacy().FreshnessDays
	}
	return c.FreshnessDays
}

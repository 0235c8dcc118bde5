package matcher

import (
	"time"

	"github.com/sells-group/rankwise/internal/model"
)

// Signals are the per-tenant block sets and freshness/relevance inputs,
// computed once per run date.
type Signals struct {
	// Exposed holds pairs whose latest own observation carries a rank.
	Exposed map[model.AccountKeyword]bool
	// RecentlyPublished holds pairs published within the blocking window.
	RecentlyPublished map[model.AccountKeyword]bool
	// RecentCounts counts publishes per account within the freshness window.
	RecentCounts map[string]int
	// HasTop3 marks accounts that have ever held an own rank of 3 or better.
	HasTop3 map[string]bool
}

// BuildSignals derives Signals from the tenant's content and own SERP
// observations. Nothing after the as-of date is considered.
func BuildSignals(contents []model.PublishedContent, observations []model.SerpObservation, asOf time.Time, recentDays, freshnessDays int) *Signals {
	asOf = model.Day(asOf)
	cutoff := asOf.AddDate(0, 0, 1)
	recentFrom := asOf.AddDate(0, 0, -recentDays)
	freshFrom := asOf.AddDate(0, 0, -freshnessDays)

	s := &Signals{
		Exposed:           make(map[model.AccountKeyword]bool),
		RecentlyPublished: make(map[model.AccountKeyword]bool),
		RecentCounts:      make(map[string]int),
		HasTop3:           make(map[string]bool),
	}

	for _, c := range contents {
		at := c.PublishedAt
		if !at.Before(cutoff) {
			continue
		}
		if !at.Before(recentFrom) {
			s.RecentlyPublished[model.AccountKeyword{AccountID: c.AccountID, KeywordID: c.KeywordID}] = true
		}
		if !at.Before(freshFrom) {
			s.RecentCounts[c.AccountID]++
		}
	}

	latest := make(map[model.AccountKeyword]model.SerpObservation)
	for _, o := range observations {
		if !o.IsOwn || o.AccountID == nil || !o.ObservedAt.Before(cutoff) {
			continue
		}
		key := model.AccountKeyword{AccountID: *o.AccountID, KeywordID: o.KeywordID}
		if prev, ok := latest[key]; !ok || !o.ObservedAt.Before(prev.ObservedAt) {
			latest[key] = o
		}
		if o.Rank != nil && *o.Rank >= 1 && *o.Rank <= 3 {
			s.HasTop3[*o.AccountID] = true
		}
	}
	for key, o := range latest {
		if o.Rank != nil && *o.Rank >= 1 {
			s.Exposed[key] = true
		}
	}
	return s
}

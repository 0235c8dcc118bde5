package weights

import "github.com/sells-group/rankwise/internal/model"

// Legacy returns the frozen constants of the original standalone grading
// script. Every loaded document is merged over these values.
func Legacy() *Config {
	return &Config{
		Account: AccountWeights{
			WeightedExposure: 0.5,
			ExposureRate:     0.3,
			ContentVolume:    0.2,
		},
		Keyword: KeywordWeights{
			Volume:      0.4,
			Competition: 0.35,
			Serp:        0.25,
		},
		Match: MatchWeights{
			GradeMatch: 0.4,
			Freshness:  0.2,
			Relevance:  0.2,
			VolumeFit:  0.2,
		},

		AccountThresholds: Thresholds{S: 75, A: 55, B: 35, C: 0},
		KeywordThresholds: Thresholds{S: 70, A: 50, B: 30, C: 0},

		ContentVolumeTiers: Tiers{
			{Min: 1, Score: 20},
			{Min: 5, Score: 40},
			{Min: 10, Score: 60},
			{Min: 20, Score: 80},
			{Min: 50, Score: 100},
		},
		SearchVolumeTiers: Tiers{
			{Min: 0, Score: 10},
			{Min: 100, Score: 25},
			{Min: 500, Score: 40},
			{Min: 1_000, Score: 55},
			{Min: 5_000, Score: 75},
			{Min: 10_000, Score: 90},
			{Min: 50_000, Score: 100},
		},
		OwnRankBonus: -20,

		GradeMatch: map[model.Grade]map[model.Grade]float64{
			model.GradeS: {model.GradeS: 100, model.GradeA: 80, model.GradeB: 55, model.GradeC: 30},
			model.GradeA: {model.GradeS: 75, model.GradeA: 100, model.GradeB: 80, model.GradeC: 55},
			model.GradeB: {model.GradeS: 45, model.GradeA: 75, model.GradeB: 100, model.GradeC: 80},
			model.GradeC: {model.GradeS: 20, model.GradeA: 45, model.GradeB: 75, model.GradeC: 100},
		},
		FreshnessCurve: []float64{100, 85, 70, 55, 40, 25, 10},
		FreshnessDays:  30,
		Relevance:      Relevance{Top3: 100, Default: 30},
		VolumeBands: VolumeBands{
			{MinVolume: 0, Scores: map[model.Grade]float64{model.GradeS: 90, model.GradeA: 95, model.GradeB: 100, model.GradeC: 100}},
			{MinVolume: 1_000, Scores: map[model.Grade]float64{model.GradeS: 90, model.GradeA: 90, model.GradeB: 70, model.GradeC: 50}},
			{MinVolume: 5_000, Scores: map[model.Grade]float64{model.GradeS: 100, model.GradeA: 80, model.GradeB: 50, model.GradeC: 20}},
		},

		Blocking: Blocking{
			RecentDays:     30,
			AlreadyExposed: true,
		},
	}
}

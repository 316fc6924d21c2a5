package projection

// TaperBand maps a minutes rank cutoff to a bench-taper multiplier.
type TaperBand struct {
	MaxRank    int
	Multiplier float64
}

// ModelConfig carries every tunable constant of the projection model. The
// defaults were tuned empirically against historical slates; treat them as
// knobs, not truths.
type ModelConfig struct {
	ModelVersion string

	// Eligibility
	MinGameLogs            int
	RecentWindowGames      int
	RecentWindowMinMinutes float64
	RoleChangeDays         int
	RoleChangeMinGames     int
	RoleChangeMinMinutes   float64

	// Minutes blending
	SeasonWindowGames    int
	BlendClampBand       float64
	MaxMinutes           float64
	DayToDayMinutesScale float64

	// Per-minute rate baselines
	RateWindowGames int

	// Injury redistribution
	MinutesTransferFraction float64
	UsageTransferFraction   float64
	ReboundTransferFraction float64
	AssistTransferFraction  float64
	SamePositionShare       float64
	OnOffLookbackGames      int
	OnOffWeightPerGame      float64
	OnOffWeightCap          float64
	UsageDeltaCap           float64
	ReboundPctDeltaCap      float64
	AssistPctDeltaCap       float64

	// Team minutes normalization
	TeamMinutesBudget   float64
	RotationKeepTop     int
	RotationLast5Floor  float64
	RotationSeasonFloor float64
	RotationPreFloor    float64
	TaperBands          []TaperBand
	TopFloorCount       int
	TopFloorMin         float64
	TopFloorLast5Offset float64
	StarFloorBands      []float64
	BoostCap            float64
	NormalizePasses     int

	// Matchup adjustment
	RankMinMultiplier    float64
	RankMaxMultiplier    float64
	PointsMatchupDamping float64

	// Stat projection
	UsageAnchor        float64
	ReboundPctAnchor   float64
	AssistPctAnchor    float64
	UsageSwing         float64
	ReboundSwing       float64
	AssistSwing        float64
	MicroVariance      float64
	PointsPerMinuteCap float64
}

// DefaultModelConfig returns the canonical model configuration.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		ModelVersion: "blended_minutes_v2",

		MinGameLogs:            5,
		RecentWindowGames:      10,
		RecentWindowMinMinutes: 12,
		RoleChangeDays:         14,
		RoleChangeMinGames:     2,
		RoleChangeMinMinutes:   10,

		SeasonWindowGames:    30,
		BlendClampBand:       3.0,
		MaxMinutes:           38.0,
		DayToDayMinutesScale: 0.9,

		RateWindowGames: 8,

		MinutesTransferFraction: 0.75,
		UsageTransferFraction:   0.65,
		ReboundTransferFraction: 0.60,
		AssistTransferFraction:  0.60,
		SamePositionShare:       0.70,
		OnOffLookbackGames:      25,
		OnOffWeightPerGame:      0.15,
		OnOffWeightCap:          0.80,
		UsageDeltaCap:           3.0,
		ReboundPctDeltaCap:      2.0,
		AssistPctDeltaCap:       2.0,

		TeamMinutesBudget:   240.0,
		RotationKeepTop:     9,
		RotationLast5Floor:  10.0,
		RotationSeasonFloor: 12.0,
		RotationPreFloor:    12.0,
		TaperBands: []TaperBand{
			{MaxRank: 8, Multiplier: 1.00},
			{MaxRank: 10, Multiplier: 0.85},
			{MaxRank: 12, Multiplier: 0.70},
			{MaxRank: 1 << 30, Multiplier: 0.55},
		},
		TopFloorCount:       5,
		TopFloorMin:         20.0,
		TopFloorLast5Offset: 2.0,
		StarFloorBands:      []float64{31, 33, 35},
		BoostCap:            3.5,
		NormalizePasses:     4,

		RankMinMultiplier:    0.8,
		RankMaxMultiplier:    1.2,
		PointsMatchupDamping: 0.6,

		UsageAnchor:        20.0,
		ReboundPctAnchor:   10.0,
		AssistPctAnchor:    15.0,
		UsageSwing:         0.25,
		ReboundSwing:       0.25,
		AssistSwing:        0.20,
		MicroVariance:      0.04,
		PointsPerMinuteCap: 1.25,
	}
}

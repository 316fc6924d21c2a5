package simulation

import "time"

// Config carries the simulation model's tunables.
type Config struct {
	ModelVersion string

	// Final team points blend player-model sums against the pace/efficiency
	// environment estimate.
	PlayerPointsWeight float64
	EnvPointsWeight    float64

	// Offense and defense pull on points-per-possession relative to league
	// average.
	OffWeight float64
	DefWeight float64

	HomePPPBonus float64

	// Monte Carlo noise and clamps.
	PossSD     float64
	PPPSD      float64
	PossMin    float64
	PossMax    float64
	PPPMin     float64
	PPPMax     float64
	MCPointsSD float64

	DefaultSims int
	Workers     int

	CacheTTL       time.Duration
	LeagueCacheTTL time.Duration
}

// DefaultConfig returns the canonical simulation configuration.
func DefaultConfig() Config {
	return Config{
		ModelVersion: "sim_v1_from_projections",

		PlayerPointsWeight: 0.55,
		EnvPointsWeight:    0.45,

		OffWeight: 0.60,
		DefWeight: 0.40,

		HomePPPBonus: 0.010,

		PossSD:     4.0,
		PPPSD:      0.032,
		PossMin:    90.0,
		PossMax:    110.0,
		PPPMin:     0.95,
		PPPMax:     1.30,
		MCPointsSD: 10.0,

		DefaultSims: 10000,
		Workers:     4,

		CacheTTL:       15 * time.Minute,
		LeagueCacheTTL: time.Hour,
	}
}

// DistributionModelVersion keys the Monte Carlo rows separately from the
// deterministic single-run rows.
func (c Config) DistributionModelVersion() string {
	return c.ModelVersion + "_mc_v1"
}

package simulation

import (
	"fmt"
	"hash/crc32"
	"math"
	"math/rand"
	"time"
)

// seedFor derives a deterministic seed from the simulation identity. The same
// (date, model version, game, team, tag) always yields the same seed, which
// makes every noise draw reproducible.
func seedFor(date time.Time, modelVersion string, gameID, teamID uint, tag string) int64 {
	key := fmt.Sprintf("%s-%s-%d-%d-%s", date.Format("2006-01-02"), modelVersion, gameID, teamID, tag)
	return int64(crc32.ChecksumIEEE([]byte(key)))
}

// normalNoise draws one Gaussian sample with the given standard deviation
// using the Box-Muller transform over a seeded source. No shared RNG state.
func normalNoise(sd float64, seed int64) float64 {
	rng := rand.New(rand.NewSource(seed))
	u1 := math.Max(rng.Float64(), 1e-12)
	u2 := rng.Float64()
	z0 := math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
	return z0 * sd
}

package normalize

import (
	"hash/fnv"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// Randomizer supplies the randomness used for synthetic values. *rand.Rand satisfies it.
type Randomizer interface {
	Float64() float64
	IntN(n int) int
}

// globalRandom uses the auto-seeded, concurrency-safe top-level generator.
type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }
func (globalRandom) IntN(n int) int   { return rand.IntN(n) }

// IDGenerator synthesizes an identifier for items whose source has none.
type IDGenerator interface {
	Generate(sourceKey string) string
}

// HashIDGenerator builds ids from a hash of the source key, the current time
// and a random salt. Results are always exactly 10 characters.
type HashIDGenerator struct {
	Now    func() time.Time
	Random Randomizer
}

// Generate implements IDGenerator.
func (g HashIDGenerator) Generate(sourceKey string) string {
	now, rnd := g.Now, g.Random
	if now == nil {
		now = time.Now
	}
	if rnd == nil {
		rnd = globalRandom{}
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(sourceKey))

	combined := strconv.FormatUint(h.Sum64(), 10) +
		strconv.FormatInt(now().UnixMilli(), 10) +
		strconv.Itoa(rnd.IntN(1000))

	if len(combined) > 10 {
		combined = combined[len(combined)-10:]
	}
	return strings.Repeat("0", 10-len(combined)) + combined
}

package board

import (
	"math"
	"math/rand"

	"github.com/samber/lo"

	models "github.com/anuragn091/memory-game-cautio/internal/models"
)

// Size describes the square grid derived from an icon count. TotalTiles is
// the full grid cell count (side squared), which can exceed the 2*iconCount
// tiles actually available; Create reconciles the two by truncation.
type Size struct {
	Rows       int
	Cols       int
	TotalTiles int
}

// CalculateSize derives the grid for iconCount distinct icons at two tiles
// each. The side length is ceil(sqrt(2*iconCount)), so 8 icons yield a 4x4
// grid.
func CalculateSize(iconCount int) Size {
	totalTiles := iconCount * 2
	side := int(math.Ceil(math.Sqrt(float64(totalTiles))))
	return Size{
		Rows:       side,
		Cols:       side,
		TotalTiles: side * side,
	}
}

// Shuffle permutes s in place with a Fisher-Yates pass over the injected
// source: for each index i from last down to 1, swap with a uniform index in
// [0, i]. Deterministic for a fixed seed.
func Shuffle[T any](rng *rand.Rand, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// Create builds a fresh board from the icon alphabet: each icon twice, the
// pool truncated to the grid size, shuffled, then IDs assigned in final
// order. All tiles start face-down and unmatched.
//
// When the grid is larger than the pool (2*iconCount is not a perfect
// square), the slice is shorter than the grid and some cells go unused. That
// mismatch is deliberate; callers render whatever length they get.
func Create(rng *rand.Rand, icons []string) []models.Tile {
	size := CalculateSize(len(icons))

	pool := make([]string, 0, len(icons)*2)
	pool = append(pool, icons...)
	pool = append(pool, icons...)

	if size.TotalTiles < len(pool) {
		pool = pool[:size.TotalTiles]
	}

	Shuffle(rng, pool)

	return lo.Map(pool, func(icon string, i int) models.Tile {
		return models.Tile{
			ID:        i,
			Icon:      icon,
			IsFlipped: false,
			IsMatched: false,
		}
	})
}

// CheckMatch reports whether two tiles carry the same icon. Pure value
// equality; callers never compare a tile against itself.
func CheckMatch(a, b models.Tile) bool {
	return a.Icon == b.Icon
}

// AllMatched reports whether a non-empty board is fully resolved.
func AllMatched(tiles []models.Tile) bool {
	if len(tiles) == 0 {
		return false
	}
	return lo.EveryBy(tiles, func(t models.Tile) bool { return t.IsMatched })
}

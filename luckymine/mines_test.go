package luckymine

import (
	"math"
	"math/bits"
	"testing"

	"gamecore/gamerand"

	"github.com/stretchr/testify/require"
)

func popcount(mask [16]byte) int {
	n := 0
	for _, b := range mask {
		n += bits.OnesCount8(b)
	}
	return n
}

func TestPlaceMinesExactCountInRange(t *testing.T) {
	for _, tc := range []struct{ tiles, mines int }{
		{10, 1}, {25, 5}, {64, 20}, {128, 127},
	} {
		mask := PlaceMines(gamerand.CryptoSource{}, tc.tiles, tc.mines)
		require.Equal(t, tc.mines, popcount(mask), "tiles=%d mines=%d", tc.tiles, tc.mines)
		for i := tc.tiles; i < MaxTiles; i++ {
			require.Zero(t, mask[i/8]&(1<<uint(i%8)), "mine outside [0, totalTiles) at %d", i)
		}
	}
}

// TestPlaceMinesUniformMarginal checks the fairness property: over N
// independent setups every tile carries a mine with probability
// mines/tiles. The tolerance is five binomial standard deviations, so
// a correct placement fails this roughly once per 3.5 million runs.
func TestPlaceMinesUniformMarginal(t *testing.T) {
	const (
		n     = 20000
		tiles = 10
		mines = 3
	)
	var counts [tiles]int
	for i := 0; i < n; i++ {
		mask := PlaceMines(gamerand.CryptoSource{}, tiles, mines)
		for tile := 0; tile < tiles; tile++ {
			if mask[tile/8]&(1<<uint(tile%8)) != 0 {
				counts[tile]++
			}
		}
	}

	p := float64(mines) / float64(tiles)
	mean := float64(n) * p
	tolerance := 5 * math.Sqrt(float64(n)*p*(1-p))
	for tile, c := range counts {
		require.InDelta(t, mean, float64(c), tolerance, "tile %d drifted from uniform", tile)
	}
}

func TestPayoutCompoundsAndExhausts(t *testing.T) {
	// tiles=25 mines=5 entry=100: floor(100 * 25/20 * 0.97) = 121.
	require.Equal(t, uint64(121), payout(100, 25, 5, 1, DefaultRewardSlope))
	// Scenario value: k=3 over the same board.
	require.Equal(t, uint64(195), payout(100, 25, 5, 3, DefaultRewardSlope))
	// Beyond the last safe tile the formula returns zero.
	require.Equal(t, uint64(0), payout(100, 25, 5, 21, DefaultRewardSlope))
	require.Equal(t, uint64(0), payout(100, 25, 5, 0, DefaultRewardSlope))
}

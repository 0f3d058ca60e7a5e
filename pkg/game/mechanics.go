package game

import (
	"math"

	"mapembed/pkg/types"
)

// --- Production ---

func ShipGenerationPerRound(industry, manufacturing int) int {
	return industry * (manufacturing + 5)
}

// ShipGenerationPerTick spreads a round's production across its ticks.
func ShipGenerationPerTick(industry, manufacturing, productionRate int) float64 {
	if productionRate <= 0 {
		return 0
	}
	return float64(ShipGenerationPerRound(industry, manufacturing)) / float64(productionRate)
}

// --- Physics & Logistics ---

func DistanceBetween(a, b *types.Star) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// --- Research ---

func PointsNeededForTechLevel(targetLevel int) int {
	return 144 * (targetLevel - 1)
}

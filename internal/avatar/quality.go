package avatar

import (
	"math"

	"github.com/iranverse/avatar-engine/internal/domain"
)

// Score rates the completeness of an avatar record on a 0-100 scale.
// Weights: base model 20, thumbnail coverage 20, optimized-variant
// coverage 30, secondary formats 20 (10 each), configuration and
// customizations 10. Adding an asset never lowers the score.
func Score(state *domain.AvatarState) int {
	if state == nil {
		return 0
	}

	var score float64

	if state.GLB != "" || state.RPMURL != "" {
		score += 20
	}

	score += 20 * coverage(state.Thumbnails.Slots())
	score += 30 * coverage(state.Optimized.Slots())

	if state.USDZ != "" {
		score += 10
	}
	if state.FBX != "" {
		score += 10
	}

	if state.Configuration != nil {
		score += 5
	}
	if c := state.Customizations; c != nil && (c.Face != nil || c.Hair != nil || c.Outfit != nil || c.Body != nil) {
		score += 5
	}

	rounded := int(math.Round(score))
	if rounded > 100 {
		rounded = 100
	}
	if rounded < 0 {
		rounded = 0
	}
	return rounded
}

func coverage(slots []string) float64 {
	if len(slots) == 0 {
		return 0
	}
	filled := 0
	for _, s := range slots {
		if s != "" {
			filled++
		}
	}
	return float64(filled) / float64(len(slots))
}

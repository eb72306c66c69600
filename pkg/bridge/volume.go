package bridge

import (
	"fmt"
	"math"
)

// Attenuation is the fixed factor applied on top of the caller's volume
// scale. Full scale on the engine is far too loud, so every request is
// played at half of it.
const Attenuation = 0.5

// EffectiveVolume maps a caller volume scale onto the engine's volume range:
// maxVolume × scale × Attenuation. Scales outside [0, 1] are clamped, so the
// result never exceeds maxVolume/2. Non-finite scales are rejected.
func EffectiveVolume(maxVolume, scale float64) (float64, error) {
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidVolume, scale)
	}
	scale = math.Max(0, math.Min(1, scale))
	return maxVolume * scale * Attenuation, nil
}

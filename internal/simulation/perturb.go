package simulation

import (
	"math/rand/v2"

	"github.com/couchcryptid/water-reuse-sim/internal/domain"
)

// Perturber applies ambient drift to zone readings before detection.
type Perturber interface {
	Perturb(w *domain.World)
}

// NoisePerturber adds bounded uniform noise to every zone's flow and pressure.
// It is deterministic for a given seed.
type NoisePerturber struct {
	bounds domain.NoiseBounds
	rng    *rand.Rand
}

// NewNoisePerturber creates a perturber drawing from a PCG source seeded with seed.
func NewNoisePerturber(bounds domain.NoiseBounds, seed uint64) *NoisePerturber {
	return &NoisePerturber{
		bounds: bounds,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Perturb shifts each reading by a draw from [-bound, bound] and re-clamps to the floors.
func (p *NoisePerturber) Perturb(w *domain.World) {
	for i := range w.Zones {
		z := &w.Zones[i]
		z.Flow += p.uniform(p.bounds.Flow)
		z.Pressure += p.uniform(p.bounds.Pressure)
		w.Floors.Apply(z)
	}
}

func (p *NoisePerturber) uniform(bound float64) float64 {
	if bound <= 0 {
		return 0
	}
	return (p.rng.Float64()*2 - 1) * bound
}

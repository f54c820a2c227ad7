package economy

import (
	"math/bits"
	"time"

	"github.com/botforge/botforge/internal/domain"
)

// RegenerateEnergy returns p with the energy recovered since its last tap.
// Recovery is floor(elapsed * rate / 1m), capped at settings.MaxEnergy. A
// progress record that never tapped, or that already sits at or above the
// cap, is returned unchanged.
func RegenerateEnergy(p domain.UserProgress, s domain.MiningSettings, now time.Time) domain.UserProgress {
	if p.LastTapTime == nil || s.EnergyRechargeRate <= 0 {
		return p
	}

	needed := s.MaxEnergy - p.Energy
	if needed <= 0 {
		return p
	}

	elapsed := now.Sub(*p.LastTapTime)
	if elapsed <= 0 {
		return p
	}

	p.Energy += recovered(elapsed, s.EnergyRechargeRate, needed)
	return p
}

// recovered computes min(floor(elapsed*rate/time.Minute), limit) without overflow.
func recovered(elapsed time.Duration, rate, limit int64) int64 {
	hi, lo := bits.Mul64(uint64(elapsed), uint64(rate))
	if hi >= uint64(time.Minute) {
		return limit
	}

	units, _ := bits.Div64(hi, lo, uint64(time.Minute))
	if units >= uint64(limit) {
		return limit
	}
	return int64(units)
}

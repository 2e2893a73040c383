package components

import "github.com/yohamta/donburi"

// StatusEffectsData tracks timed conditions that alter locomotion.
type StatusEffectsData struct {
	ImmobilizedTicks int // avatar cannot start moves while positive
	SlowTicks        int
	SlowFactor       float64 // speed multiplier while SlowTicks is positive
}

// Tick advances the timers by one simulation tick.
func (s *StatusEffectsData) Tick() {
	if s.ImmobilizedTicks > 0 {
		s.ImmobilizedTicks--
	}
	if s.SlowTicks > 0 {
		s.SlowTicks--
	}
}

// SpeedScale is the locomotion speed multiplier for the current tick.
func (s *StatusEffectsData) SpeedScale() float64 {
	if s.ImmobilizedTicks > 0 {
		return 0
	}
	if s.SlowTicks > 0 && s.SlowFactor > 0 {
		return s.SlowFactor
	}
	return 1
}

var StatusEffects = donburi.NewComponentType[StatusEffectsData]()

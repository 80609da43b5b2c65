package app

import (
	"fmt"
	"time"
)

// Settings is a read snapshot of the runtime-adjustable thresholds. The
// authoritative values live inside their owning components; this struct
// only carries them across the API boundary.
type Settings struct {
	VolatilityThreshold float64
	FusionThreshold     int64
	RewardCooldown      time.Duration
	MaxMintsPerHour     int64
	SubmissionWindow    time.Duration
	MaxPerWindow        int64
}

// ConfigUpdate carries a partial threshold update. Nil fields leave the
// current value untouched; applying the same update twice is a no-op.
type ConfigUpdate struct {
	VolatilityThreshold *float64
	FusionThreshold     *int64
	RewardCooldown      *time.Duration
	MaxMintsPerHour     *int64
	SubmissionWindow    *time.Duration
	MaxPerWindow        *int64
}

func (u ConfigUpdate) validate() error {
	if u.VolatilityThreshold != nil && (*u.VolatilityThreshold <= 0 || *u.VolatilityThreshold > 1) {
		return fmt.Errorf("volatility threshold must be in (0, 1], got %v", *u.VolatilityThreshold)
	}
	if u.FusionThreshold != nil && *u.FusionThreshold < 0 {
		return fmt.Errorf("fusion threshold must be non-negative, got %d", *u.FusionThreshold)
	}
	if u.RewardCooldown != nil && *u.RewardCooldown < 0 {
		return fmt.Errorf("reward cooldown must be non-negative, got %v", *u.RewardCooldown)
	}
	if u.MaxMintsPerHour != nil && *u.MaxMintsPerHour < 1 {
		return fmt.Errorf("max mints per hour must be at least 1, got %d", *u.MaxMintsPerHour)
	}
	if u.SubmissionWindow != nil && *u.SubmissionWindow <= 0 {
		return fmt.Errorf("submission window must be positive, got %v", *u.SubmissionWindow)
	}
	if u.MaxPerWindow != nil && *u.MaxPerWindow < 1 {
		return fmt.Errorf("max per window must be at least 1, got %d", *u.MaxPerWindow)
	}
	return nil
}

// Settings returns the current runtime thresholds.
func (s *Service) Settings() Settings {
	window, limit := s.intake.Throttle()
	return Settings{
		VolatilityThreshold: s.engine.VolatilityThreshold(),
		FusionThreshold:     s.coordinator.EligibilityThreshold(),
		RewardCooldown:      s.agent.Cooldown(),
		MaxMintsPerHour:     s.agent.MaxPerHour(),
		SubmissionWindow:    window,
		MaxPerWindow:        limit,
	}
}

// UpdateConfig applies a partial threshold update and returns the
// resulting settings. The whole update is validated before any field is
// applied, so a bad value changes nothing.
func (s *Service) UpdateConfig(u ConfigUpdate) (Settings, error) {
	if err := u.validate(); err != nil {
		return s.Settings(), err
	}

	if u.VolatilityThreshold != nil {
		s.engine.SetVolatilityThreshold(*u.VolatilityThreshold)
	}
	if u.FusionThreshold != nil {
		s.coordinator.SetEligibilityThreshold(*u.FusionThreshold)
	}
	if u.RewardCooldown != nil {
		s.agent.SetCooldown(*u.RewardCooldown)
	}
	if u.MaxMintsPerHour != nil {
		s.agent.SetMaxPerHour(*u.MaxMintsPerHour)
	}
	if u.SubmissionWindow != nil || u.MaxPerWindow != nil {
		window, limit := s.intake.Throttle()
		if u.SubmissionWindow != nil {
			window = *u.SubmissionWindow
		}
		if u.MaxPerWindow != nil {
			limit = *u.MaxPerWindow
		}
		s.intake.SetThrottle(window, limit)
	}

	return s.Settings(), nil
}

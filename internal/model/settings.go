package model

import (
	"errors"
	"fmt"
)

// ErrInvalidSettings is returned for a settings patch that cannot be applied
var ErrInvalidSettings = errors.New("invalid settings")

// PriceStrategy selects how aggressively the suggested price is set
type PriceStrategy string

const (
	StrategyRecommended PriceStrategy = "recommended"
	StrategyFast        PriceStrategy = "fast"   // sell quickly, below market
	StrategyProfit      PriceStrategy = "profit" // hold out, above market
)

// Valid reports whether s is a known strategy
func (s PriceStrategy) Valid() bool {
	switch s {
	case StrategyRecommended, StrategyFast, StrategyProfit:
		return true
	}
	return false
}

// Theme is the dashboard color scheme
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is a known theme
func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// Settings is the complete user settings record
type Settings struct {
	DefaultCategory        string        `json:"defaultCategory"`
	ConfidenceThreshold    int           `json:"confidenceThreshold"` // 0-100
	PreferredPriceStrategy PriceStrategy `json:"preferredPriceStrategy"`
	ShowMarketInsights     bool          `json:"showMarketInsights"`
	NotifyPriceDrops       bool          `json:"notifyPriceDrops"`
	EbayAPIKey             string        `json:"ebayApiKey"`
	Theme                  Theme         `json:"theme"`
	Language               string        `json:"language"`
}

// DefaultSettings returns the settings used when nothing has been stored
func DefaultSettings() Settings {
	return Settings{
		DefaultCategory:        "",
		ConfidenceThreshold:    70,
		PreferredPriceStrategy: StrategyRecommended,
		ShowMarketInsights:     true,
		NotifyPriceDrops:       true,
		EbayAPIKey:             "",
		Theme:                  ThemeLight,
		Language:               "zh-TW",
	}
}

// Normalize clamps out-of-range values and replaces unknown enum values with
// defaults. It repairs persisted records; patches are checked with Validate instead.
func (s Settings) Normalize() Settings {
	def := DefaultSettings()

	if s.ConfidenceThreshold < 0 {
		s.ConfidenceThreshold = 0
	} else if s.ConfidenceThreshold > 100 {
		s.ConfidenceThreshold = 100
	}
	if !s.PreferredPriceStrategy.Valid() {
		s.PreferredPriceStrategy = def.PreferredPriceStrategy
	}
	if !s.Theme.Valid() {
		s.Theme = def.Theme
	}
	if s.Language == "" {
		s.Language = def.Language
	}
	return s
}

// SettingsPatch is a partial settings update; nil fields are left untouched
type SettingsPatch struct {
	DefaultCategory        *string        `json:"defaultCategory,omitempty"`
	ConfidenceThreshold    *int           `json:"confidenceThreshold,omitempty"`
	PreferredPriceStrategy *PriceStrategy `json:"preferredPriceStrategy,omitempty"`
	ShowMarketInsights     *bool          `json:"showMarketInsights,omitempty"`
	NotifyPriceDrops       *bool          `json:"notifyPriceDrops,omitempty"`
	EbayAPIKey             *string        `json:"ebayApiKey,omitempty"`
	Theme                  *Theme         `json:"theme,omitempty"`
	Language               *string        `json:"language,omitempty"`
}

// PatchFrom builds a patch that sets every field of s
func PatchFrom(s Settings) SettingsPatch {
	return SettingsPatch{
		DefaultCategory:        &s.DefaultCategory,
		ConfidenceThreshold:    &s.ConfidenceThreshold,
		PreferredPriceStrategy: &s.PreferredPriceStrategy,
		ShowMarketInsights:     &s.ShowMarketInsights,
		NotifyPriceDrops:       &s.NotifyPriceDrops,
		EbayAPIKey:             &s.EbayAPIKey,
		Theme:                  &s.Theme,
		Language:               &s.Language,
	}
}

// Validate reports the first field of p that cannot be applied
func (p SettingsPatch) Validate() error {
	if p.ConfidenceThreshold != nil && (*p.ConfidenceThreshold < 0 || *p.ConfidenceThreshold > 100) {
		return fmt.Errorf("%w: confidenceThreshold %d out of range 0..100", ErrInvalidSettings, *p.ConfidenceThreshold)
	}
	if p.PreferredPriceStrategy != nil && !p.PreferredPriceStrategy.Valid() {
		return fmt.Errorf("%w: unknown preferredPriceStrategy %q", ErrInvalidSettings, *p.PreferredPriceStrategy)
	}
	if p.Theme != nil && !p.Theme.Valid() {
		return fmt.Errorf("%w: unknown theme %q", ErrInvalidSettings, *p.Theme)
	}
	if p.Language != nil && *p.Language == "" {
		return fmt.Errorf("%w: language must not be empty", ErrInvalidSettings)
	}
	return nil
}

// Merge applies the non-nil fields of p onto s. Callers validate p first.
func (s Settings) Merge(p SettingsPatch) Settings {
	if p.DefaultCategory != nil {
		s.DefaultCategory = *p.DefaultCategory
	}
	if p.ConfidenceThreshold != nil {
		s.ConfidenceThreshold = *p.ConfidenceThreshold
	}
	if p.PreferredPriceStrategy != nil {
		s.PreferredPriceStrategy = *p.PreferredPriceStrategy
	}
	if p.ShowMarketInsights != nil {
		s.ShowMarketInsights = *p.ShowMarketInsights
	}
	if p.NotifyPriceDrops != nil {
		s.NotifyPriceDrops = *p.NotifyPriceDrops
	}
	if p.EbayAPIKey != nil {
		s.EbayAPIKey = *p.EbayAPIKey
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	return s
}

// Empty reports whether the patch changes nothing
func (p SettingsPatch) Empty() bool {
	return p.DefaultCategory == nil && p.ConfidenceThreshold == nil &&
		p.PreferredPriceStrategy == nil && p.ShowMarketInsights == nil &&
		p.NotifyPriceDrops == nil && p.EbayAPIKey == nil &&
		p.Theme == nil && p.Language == nil
}

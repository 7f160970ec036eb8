package config

import (
	"fmt"
	"time"
)

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Person constraints
	MaxNameLength  int
	MaxDateLength  int
	MaxColorLength int
	MinRadius      float64
	MaxRadius      float64
	DefaultRadius  float64
	DefaultColor   string
	IDPrefix       string
	RequireGender  bool
	RequireName    bool

	// History
	MaxUndoSize  int
	DragDebounce time.Duration

	// Persistence
	MaxSnapshotBytes int
	BackupsToKeep    int

	// Layout
	GenerationSpacing float64
	SiblingSpacing    float64
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxNameLength:  100,
		MaxDateLength:  50,
		MaxColorLength: 32,
		MinRadius:      10,
		MaxRadius:      200,
		DefaultRadius:  50,
		DefaultColor:   "#3498db",
		IDPrefix:       "p",
		RequireGender:  true,
		RequireName:    true,

		MaxUndoSize:  50,
		DragDebounce: 300 * time.Millisecond,

		MaxSnapshotBytes: 5 * 1024 * 1024,
		BackupsToKeep:    3,

		GenerationSpacing: 160,
		SiblingSpacing:    130,
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MaxNameLength <= 0 {
		return fmt.Errorf("max name length must be positive, got %d", c.MaxNameLength)
	}
	if c.MaxUndoSize <= 0 {
		return fmt.Errorf("max undo size must be positive, got %d", c.MaxUndoSize)
	}
	if c.MaxSnapshotBytes <= 0 {
		return fmt.Errorf("max snapshot bytes must be positive, got %d", c.MaxSnapshotBytes)
	}
	if c.BackupsToKeep < 0 {
		return fmt.Errorf("backups to keep cannot be negative, got %d", c.BackupsToKeep)
	}
	if c.MinRadius > c.MaxRadius {
		return fmt.Errorf("min radius %.1f exceeds max radius %.1f", c.MinRadius, c.MaxRadius)
	}
	return nil
}

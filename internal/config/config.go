// Package config loads the application configuration. Values come from code
// defaults, then YAML or JSON files (base, environment, local), then
// FAMILYTREE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"familytree/domain/config"
	"familytree/pkg/validation"
)

// Environment represents the deployment environment
type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	Production  Environment = "production"
)

// ParseEnvironment falls back to development for anything unknown
func ParseEnvironment(raw string) Environment {
	switch env := Environment(strings.ToLower(strings.TrimSpace(raw))); env {
	case Test, Production:
		return env
	}
	return Development
}

// Storage kinds
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// Config is the complete application configuration
type Config struct {
	Environment Environment `yaml:"environment" json:"environment"`
	Storage     Storage     `yaml:"storage" json:"storage"`
	Tree        Tree        `yaml:"tree" json:"tree"`
	Autosave    Autosave    `yaml:"autosave" json:"autosave"`
	Breaker     Breaker     `yaml:"breaker" json:"breaker"`
	Logging     Logging     `yaml:"logging" json:"logging"`
	Metrics     Metrics     `yaml:"metrics" json:"metrics"`
	Tracing     Tracing     `yaml:"tracing" json:"tracing"`

	// Metadata
	LoadedFrom []string `yaml:"-" json:"-"`
}

// Storage selects the durable key/value backend
type Storage struct {
	Kind         string `yaml:"kind" json:"kind" validate:"oneof=memory file sqlite"`
	Path         string `yaml:"path" json:"path"`
	Quota        int    `yaml:"quota" json:"quota" validate:"gte=0"`
	PrimaryKey   string `yaml:"primaryKey" json:"primaryKey" validate:"required"`
	BackupPrefix string `yaml:"backupPrefix" json:"backupPrefix" validate:"required"`
}

// Tree holds the domain rules of a tree
type Tree struct {
	IDPrefix          string        `yaml:"idPrefix" json:"idPrefix" validate:"required,max=8"`
	RequireName       bool          `yaml:"requireName" json:"requireName"`
	RequireGender     bool          `yaml:"requireGender" json:"requireGender"`
	DefaultColor      string        `yaml:"defaultColor" json:"defaultColor" validate:"color"`
	DefaultRadius     float64       `yaml:"defaultRadius" json:"defaultRadius" validate:"gt=0"`
	MaxUndoSize       int           `yaml:"maxUndoSize" json:"maxUndoSize" validate:"gte=1,lte=1000"`
	DragDebounce      time.Duration `yaml:"dragDebounce" json:"dragDebounce" validate:"gte=0"`
	MaxSnapshotBytes  int           `yaml:"maxSnapshotBytes" json:"maxSnapshotBytes" validate:"gt=0"`
	BackupsToKeep     int           `yaml:"backupsToKeep" json:"backupsToKeep" validate:"gte=0"`
	GenerationSpacing float64       `yaml:"generationSpacing" json:"generationSpacing" validate:"gt=0"`
	SiblingSpacing    float64       `yaml:"siblingSpacing" json:"siblingSpacing" validate:"gt=0"`
}

// Autosave controls the background saver
type Autosave struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Interval time.Duration `yaml:"interval" json:"interval" validate:"gte=0"`
	MinGap   time.Duration `yaml:"minGap" json:"minGap" validate:"gte=0"`
}

// Breaker configures the circuit breaker around store writes
type Breaker struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
	FailureThreshold float64       `yaml:"failureThreshold" json:"failureThreshold" validate:"gte=0,lte=1"`
	MinRequests      uint32        `yaml:"minRequests" json:"minRequests"`
}

// Logging configures zap
type Logging struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=json console"`
}

// Metrics configures the prometheus collector
type Metrics struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace" validate:"required"`
}

// Tracing configures spans. With an endpoint they are exported over OTLP gRPC,
// otherwise they are written to the log.
type Tracing struct {
	Enabled    bool    `yaml:"enabled" json:"enabled"`
	SampleRate float64 `yaml:"sampleRate" json:"sampleRate" validate:"gte=0,lte=1"`
	Endpoint   string  `yaml:"endpoint" json:"endpoint" validate:"omitempty,hostname_port"`
	Insecure   bool    `yaml:"insecure" json:"insecure"`
}

// Default returns the configuration used when nothing else is set
func Default(env Environment) *Config {
	domain := config.DefaultDomainConfig()
	cfg := &Config{
		Environment: env,
		Storage: Storage{
			Kind:         StorageFile,
			Path:         "./data",
			PrimaryKey:   "familyTreeData",
			BackupPrefix: "familyTreeData_backup_",
		},
		Tree: Tree{
			IDPrefix:          domain.IDPrefix,
			RequireName:       domain.RequireName,
			RequireGender:     domain.RequireGender,
			DefaultColor:      domain.DefaultColor,
			DefaultRadius:     domain.DefaultRadius,
			MaxUndoSize:       domain.MaxUndoSize,
			DragDebounce:      domain.DragDebounce,
			MaxSnapshotBytes:  domain.MaxSnapshotBytes,
			BackupsToKeep:     domain.BackupsToKeep,
			GenerationSpacing: domain.GenerationSpacing,
			SiblingSpacing:    domain.SiblingSpacing,
		},
		Autosave: Autosave{
			Enabled:  true,
			Interval: 30 * time.Second,
			MinGap:   2 * time.Second,
		},
		Breaker: Breaker{
			Enabled:          true,
			Timeout:          30 * time.Second,
			FailureThreshold: 0.6,
			MinRequests:      3,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: "familytree",
		},
		Tracing: Tracing{
			SampleRate: 1,
		},
	}
	cfg.applyEnvironmentDefaults()
	return cfg
}

// applyEnvironmentDefaults adjusts defaults that differ per environment
func (c *Config) applyEnvironmentDefaults() {
	switch c.Environment {
	case Development:
		c.Logging.Format = "console"
		if c.Logging.Level == "info" {
			c.Logging.Level = "debug"
		}
	case Test:
		c.Storage.Kind = StorageMemory
		c.Autosave.Enabled = false
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if c.Storage.Kind != StorageMemory && strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage path is required for %s storage", c.Storage.Kind)
	}
	if strings.HasPrefix(c.Storage.PrimaryKey, c.Storage.BackupPrefix) {
		return fmt.Errorf("primary key %q must not start with backup prefix %q", c.Storage.PrimaryKey, c.Storage.BackupPrefix)
	}
	return c.DomainConfig().Validate()
}

// DomainConfig converts the tree section into domain rules
func (c *Config) DomainConfig() *config.DomainConfig {
	domain := config.DefaultDomainConfig()
	domain.IDPrefix = c.Tree.IDPrefix
	domain.RequireName = c.Tree.RequireName
	domain.RequireGender = c.Tree.RequireGender
	domain.DefaultColor = c.Tree.DefaultColor
	domain.DefaultRadius = c.Tree.DefaultRadius
	domain.MaxUndoSize = c.Tree.MaxUndoSize
	domain.DragDebounce = c.Tree.DragDebounce
	domain.MaxSnapshotBytes = c.Tree.MaxSnapshotBytes
	domain.BackupsToKeep = c.Tree.BackupsToKeep
	domain.GenerationSpacing = c.Tree.GenerationSpacing
	domain.SiblingSpacing = c.Tree.SiblingSpacing
	return domain
}

package schema

import (
	"fmt"
	"time"
)

// FormatVersion identifies one historical snapshot layout
type FormatVersion string

const (
	FormatUnknown      FormatVersion = ""
	FormatLegacyPeople FormatVersion = "legacy-people"
	FormatV1           FormatVersion = "1.0"
	FormatV2           FormatVersion = "2.0"
)

// CurrentFormat is the layout every load is migrated to
const CurrentFormat = FormatV2

// formatOrder is the upgrade chain, oldest first
var formatOrder = []FormatVersion{FormatLegacyPeople, FormatV1, FormatV2}

func (v FormatVersion) rank() int {
	for i, f := range formatOrder {
		if f == v {
			return i
		}
	}
	return -1
}

// IsKnown reports whether the version takes part in the upgrade chain
func (v FormatVersion) IsKnown() bool {
	return v.rank() >= 0
}

// Document is a decoded snapshot prior to typing
type Document map[string]interface{}

// MigrationFunc upgrades a document in place
type MigrationFunc func(doc Document) error

// Migration represents a snapshot layout migration
type Migration struct {
	FromVersion FormatVersion
	ToVersion   FormatVersion
	Description string
	Up          MigrationFunc
}

// AppliedMigration records one executed step
type AppliedMigration struct {
	FromVersion FormatVersion
	ToVersion   FormatVersion
	Description string
	AppliedAt   time.Time
}

// SchemaEvolution manages snapshot layout evolution
type SchemaEvolution struct {
	migrations []Migration
}

// NewSchemaEvolution creates an evolution manager with the built-in migrations registered
func NewSchemaEvolution() *SchemaEvolution {
	s := &SchemaEvolution{migrations: []Migration{}}
	for _, m := range builtinMigrations() {
		if err := s.RegisterMigration(m); err != nil {
			panic(err)
		}
	}
	return s
}

// RegisterMigration registers a new migration
func (s *SchemaEvolution) RegisterMigration(migration Migration) error {
	if !migration.FromVersion.IsKnown() || !migration.ToVersion.IsKnown() {
		return fmt.Errorf("invalid migration: unknown version %q -> %q", migration.FromVersion, migration.ToVersion)
	}
	if migration.FromVersion.rank() >= migration.ToVersion.rank() {
		return fmt.Errorf("invalid migration: from_version must be older than to_version")
	}
	if migration.Up == nil {
		return fmt.Errorf("migration %s -> %s has no up function", migration.FromVersion, migration.ToVersion)
	}

	for _, existing := range s.migrations {
		if existing.FromVersion == migration.FromVersion &&
			existing.ToVersion == migration.ToVersion {
			return fmt.Errorf("migration from %s to %s already exists",
				migration.FromVersion, migration.ToVersion)
		}
	}

	s.migrations = append(s.migrations, migration)
	return nil
}

// Migrate upgrades doc from one version to the current one, step by step
func (s *SchemaEvolution) Migrate(doc Document, from FormatVersion) ([]AppliedMigration, error) {
	if !from.IsKnown() {
		return nil, fmt.Errorf("cannot migrate unknown format %q", from)
	}

	var history []AppliedMigration
	current := from
	for current != CurrentFormat {
		next := formatOrder[current.rank()+1]
		migration := s.findMigration(current, next)
		if migration == nil {
			return history, fmt.Errorf("no migration found from version %s to %s", current, next)
		}

		if err := migration.Up(doc); err != nil {
			return history, fmt.Errorf("migration %s->%s failed: %w",
				migration.FromVersion, migration.ToVersion, err)
		}

		history = append(history, AppliedMigration{
			FromVersion: migration.FromVersion,
			ToVersion:   migration.ToVersion,
			Description: migration.Description,
			AppliedAt:   time.Now(),
		})
		current = migration.ToVersion
	}
	return history, nil
}

// findMigration finds a migration between two versions
func (s *SchemaEvolution) findMigration(from, to FormatVersion) *Migration {
	for i := range s.migrations {
		if s.migrations[i].FromVersion == from && s.migrations[i].ToVersion == to {
			return &s.migrations[i]
		}
	}
	return nil
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads
const EnvPrefix = "FAMILYTREE_"

// Loader handles loading configuration from multiple sources.
type Loader struct {
	// basePath is the directory holding the configuration files
	basePath string

	// environment is the current deployment environment
	environment Environment

	// lookupEnv reads environment variables; replaced in tests
	lookupEnv func(string) (string, bool)

	fileLoaders map[string]FileLoader
}

// FileLoader decodes one configuration file format
type FileLoader interface {
	Load(reader io.Reader, target interface{}) error
	Extension() string
}

// NewLoader creates a loader reading files from basePath
func NewLoader(basePath string, env Environment) *Loader {
	if basePath == "" {
		basePath = "config"
	}
	loader := &Loader{
		basePath:    basePath,
		environment: env,
		lookupEnv:   os.LookupEnv,
		fileLoaders: make(map[string]FileLoader),
	}
	loader.RegisterLoader(&YAMLLoader{})
	loader.RegisterLoader(&JSONLoader{})
	return loader
}

// RegisterLoader registers a file loader for its extension
func (l *Loader) RegisterLoader(loader FileLoader) {
	l.fileLoaders[loader.Extension()] = loader
}

// BasePath returns the directory the loader reads
func (l *Loader) BasePath() string {
	return l.basePath
}

// Load builds the configuration. Later sources override earlier ones:
//  1. defaults in code
//  2. base.{yaml,json}
//  3. <environment>.{yaml,json}
//  4. local.{yaml,json}, development only
//  5. FAMILYTREE_* environment variables
func (l *Loader) Load() (*Config, error) {
	cfg := Default(l.environment)
	sources := []string{"defaults"}

	names := []string{"base", string(l.environment)}
	if l.environment == Development {
		names = append(names, "local")
	}
	for _, name := range names {
		path, err := l.loadFile(name, cfg)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", name, err)
		}
		sources = append(sources, path)
	}

	if err := l.loadEnvironmentVariables(cfg); err != nil {
		return nil, err
	}
	sources = append(sources, "environment")

	// a file may not move the deployment environment
	cfg.Environment = l.environment
	cfg.LoadedFrom = sources

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the first existing file named name with a known extension
func (l *Loader) loadFile(name string, cfg *Config) (string, error) {
	exts := make([]string, 0, len(l.fileLoaders))
	for ext := range l.fileLoaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	for _, ext := range exts {
		path := filepath.Join(l.basePath, name+"."+ext)
		file, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		err = l.fileLoaders[ext].Load(file, cfg)
		file.Close()
		if err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return path, nil
	}
	return "", fs.ErrNotExist
}

// loadEnvironmentVariables overlays FAMILYTREE_* variables on cfg
func (l *Loader) loadEnvironmentVariables(cfg *Config) error {
	var errs []error
	str := func(name string, target *string) {
		if val, ok := l.lookupEnv(EnvPrefix + name); ok && val != "" {
			*target = val
		}
	}
	num := func(name string, target *int) {
		if val, ok := l.lookupEnv(EnvPrefix + name); ok && val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*target = n
		}
	}
	flag := func(name string, target *bool) {
		if val, ok := l.lookupEnv(EnvPrefix + name); ok && val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*target = b
		}
	}
	duration := func(name string, target *time.Duration) {
		if val, ok := l.lookupEnv(EnvPrefix + name); ok && val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*target = d
		}
	}

	str("STORAGE_KIND", &cfg.Storage.Kind)
	str("STORAGE_PATH", &cfg.Storage.Path)
	num("STORAGE_QUOTA", &cfg.Storage.Quota)
	str("ID_PREFIX", &cfg.Tree.IDPrefix)
	num("MAX_UNDO_SIZE", &cfg.Tree.MaxUndoSize)
	num("BACKUPS_TO_KEEP", &cfg.Tree.BackupsToKeep)
	flag("AUTOSAVE_ENABLED", &cfg.Autosave.Enabled)
	duration("AUTOSAVE_INTERVAL", &cfg.Autosave.Interval)
	flag("BREAKER_ENABLED", &cfg.Breaker.Enabled)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	flag("METRICS_ENABLED", &cfg.Metrics.Enabled)
	flag("TRACING_ENABLED", &cfg.Tracing.Enabled)
	str("TRACING_ENDPOINT", &cfg.Tracing.Endpoint)
	flag("TRACING_INSECURE", &cfg.Tracing.Insecure)

	cfg.Storage.Kind = strings.ToLower(cfg.Storage.Kind)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	return errors.Join(errs...)
}

// YAMLLoader loads configuration from YAML files
type YAMLLoader struct{}

func (y *YAMLLoader) Load(reader io.Reader, target interface{}) error {
	err := yaml.NewDecoder(reader).Decode(target)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (y *YAMLLoader) Extension() string {
	return "yaml"
}

// JSONLoader loads configuration from JSON files. Durations are nanoseconds.
type JSONLoader struct{}

func (j *JSONLoader) Load(reader io.Reader, target interface{}) error {
	return json.NewDecoder(reader).Decode(target)
}

func (j *JSONLoader) Extension() string {
	return "json"
}

// Load reads the configuration for the environment named by FAMILYTREE_ENV
// from dir.
func Load(dir string) (*Config, error) {
	env := ParseEnvironment(os.Getenv(EnvPrefix + "ENV"))
	return NewLoader(dir, env).Load()
}

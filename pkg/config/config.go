// Package config loads the service configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chazu/boxfit/pkg/store"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendFile  = "file"
	BackendMinio = "minio"
)

// Environment variables that override the MinIO credentials from the file.
const (
	EnvMinioAccessKey = "BOXFIT_MINIO_ACCESS_KEY"
	EnvMinioSecretKey = "BOXFIT_MINIO_SECRET_KEY"
)

// Config is the service configuration.
type Config struct {
	Listen   string  `yaml:"listen"`
	LogLevel string  `yaml:"log_level"`
	Storage  Storage `yaml:"storage"`
	Fit      Fit     `yaml:"fit"`
	Eval     Eval    `yaml:"eval"`
}

// Storage selects and configures the snapshot store.
type Storage struct {
	Backend string            `yaml:"backend"`
	Dir     string            `yaml:"dir"`
	Minio   store.MinioConfig `yaml:"minio"`
}

// Fit configures box fitting.
type Fit struct {
	// MeshCells is the marching cubes resolution used for solids.
	MeshCells int `yaml:"mesh_cells"`
	// AccumulateCenter adds each fitted offset to the previous center
	// instead of replacing it.
	AccumulateCenter bool `yaml:"accumulate_center"`
}

// Eval configures script evaluation.
type Eval struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:   ":8080",
		LogLevel: "info",
		Storage: Storage{
			Backend: BackendFile,
			Dir:     "./data",
		},
		Fit:  Fit{MeshCells: 64},
		Eval: Eval{Timeout: 5 * time.Second},
	}
}

// Load reads the YAML file at path over the defaults. An empty path yields
// the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvMinioAccessKey); v != "" {
		c.Storage.Minio.AccessKeyID = v
	}
	if v := os.Getenv(EnvMinioSecretKey); v != "" {
		c.Storage.Minio.SecretAccessKey = v
	}
}

// Validate checks that c is usable.
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for the file backend"))
		}
	case BackendMinio:
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			errs = append(errs, errors.New("storage.minio.endpoint and storage.minio.bucket are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	if c.Fit.MeshCells < 1 {
		errs = append(errs, fmt.Errorf("fit.mesh_cells must be positive, got %d", c.Fit.MeshCells))
	}
	if c.Eval.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("eval.timeout must be positive, got %s", c.Eval.Timeout))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return l, nil
}

// OpenStore builds the configured snapshot store.
func (c Config) OpenStore() (store.Store, error) {
	if c.Storage.Backend == BackendMinio {
		s, err := store.NewMinioStore(c.Storage.Minio)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := store.NewFileStore(c.Storage.Dir)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Package testutil provides test utilities and helpers for tpmops tests.
//
// This package contains shared test infrastructure: a tpmops.yaml builder,
// a capturing logger, environment helpers and redaction assertions.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/systmms/tpmops/internal/config"
	"gopkg.in/yaml.v3"
)

// TestConfigBuilder provides a fluent API for building tpmops.yaml files.
//
// Example usage:
//
//	path := NewTestConfig(t).
//	    WithProfile("prod", config.Profile{Host: "tpm.example.com", Username: "ansible"}).
//	    WithDefaultProfile("prod").
//	    Write()
type TestConfigBuilder struct {
	config  *config.Definition
	tempDir string
	t       *testing.T
}

// NewTestConfig creates a builder with no profiles.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		config: &config.Definition{
			Profiles: make(map[string]config.Profile),
		},
		tempDir: t.TempDir(),
		t:       t,
	}
}

// WithProfile adds or replaces a profile.
func (b *TestConfigBuilder) WithProfile(name string, p config.Profile) *TestConfigBuilder {
	b.config.Profiles[name] = p
	return b
}

// WithDefaultProfile sets default_profile.
func (b *TestConfigBuilder) WithDefaultProfile(name string) *TestConfigBuilder {
	b.config.DefaultProfile = name
	return b
}

// Build returns the definition without writing it.
func (b *TestConfigBuilder) Build() *config.Definition {
	return b.config
}

// Write writes tpmops.yaml to a temporary directory and returns its path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.config)
	if err != nil {
		b.t.Fatalf("Failed to marshal test config: %v", err)
	}

	path := filepath.Join(b.tempDir, config.DefaultPath)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		b.t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// WriteTestConfig writes raw YAML to a temporary tpmops.yaml.
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultPath)
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

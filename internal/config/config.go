package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	dserrors "github.com/systmms/tpmops/internal/errors"
	"github.com/systmms/tpmops/internal/logging"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "tpmops.yaml"

// DefaultProfileName is used when neither --profile nor default_profile is set.
const DefaultProfileName = "default"

// Config holds the runtime configuration
type Config struct {
	Path           string
	Profile        string
	Logger         *logging.Logger
	NonInteractive bool
	Definition     *Definition
}

// Definition represents the tpmops.yaml structure
type Definition struct {
	Version        int                `yaml:"version"`
	DefaultProfile string             `yaml:"default_profile,omitempty"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile holds the connection settings for one TPM instance. Secrets may
// be set here but are better kept in the environment or the OS keyring.
type Profile struct {
	Host       string        `yaml:"host"`
	PublicKey  string        `yaml:"public_key,omitempty"`
	PrivateKey string        `yaml:"private_key,omitempty"`
	Username   string        `yaml:"username,omitempty"`
	Password   string        `yaml:"password,omitempty"`
	SSLVerify  *bool         `yaml:"ssl_verify,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	MaxPages   int           `yaml:"max_pages,omitempty"`
	Retries    int           `yaml:"retries,omitempty"`

	PreservePasswordOnUpdate bool `yaml:"preserve_password_on_update,omitempty"`
	StrictUpdateErrors       bool `yaml:"strict_update_errors,omitempty"`
	StrictField              bool `yaml:"strict_field,omitempty"`
}

// Load reads and parses the tpmops.yaml file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create it with a 'profiles:' section or drop --config to use flags and TPM_* variables",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if def.Version != 0 {
		return dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your tpmops.yaml file",
		}
	}

	c.Definition = &def
	return nil
}

// LoadOptional is Load that treats a missing file as an empty definition.
func (c *Config) LoadOptional() error {
	if _, err := os.Stat(c.Path); os.IsNotExist(err) {
		c.Definition = &Definition{}
		return nil
	}
	return c.Load()
}

// ActiveProfile returns the selected profile. An explicitly requested
// profile must exist; the implicit default may be absent.
func (c *Config) ActiveProfile() (Profile, error) {
	def := c.Definition
	if def == nil {
		def = &Definition{}
	}

	name := c.Profile
	explicit := name != ""
	if name == "" {
		name = def.DefaultProfile
		explicit = name != ""
	}
	if name == "" {
		name = DefaultProfileName
	}

	p, ok := def.Profiles[name]
	if !ok && explicit {
		return Profile{}, dserrors.ConfigError{
			Field:      "profile",
			Value:      name,
			Message:    "profile not found in " + c.Path,
			Suggestion: fmt.Sprintf("Available profiles: %s", strings.Join(def.profileNames(), ", ")),
		}
	}
	return p, nil
}

func (d *Definition) profileNames() []string {
	names := make([]string, 0, len(d.Profiles))
	for name := range d.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return []string{"(none)"}
	}
	return names
}

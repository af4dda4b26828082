package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/systmms/tpmops/internal/config"
	dserrors "github.com/systmms/tpmops/internal/errors"
	"github.com/systmms/tpmops/internal/logging"
	"github.com/systmms/tpmops/internal/metrics"
	"github.com/systmms/tpmops/pkg/tpm"
)

// connectionFlags are the flags shared by every command that talks to a
// TPM instance.
type connectionFlags struct {
	host       string
	publicKey  string
	privateKey string
	username   string
	password   string
	sslVerify  bool
	timeout    time.Duration
	maxPages   int
	retries    int
	envFile    string

	preservePassword   bool
	strictUpdateErrors bool
}

func addConnectionFlags(cmd *cobra.Command, f *connectionFlags) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&f.host, "host", "", "TPM host[:port][/path] without scheme (env "+config.EnvHost+")")
	flags.StringVar(&f.publicKey, "public-key", "", "HMAC public key (env "+config.EnvPublicKey+")")
	flags.StringVar(&f.privateKey, "private-key", "", "HMAC private key (env "+config.EnvPrivateKey+")")
	flags.StringVar(&f.username, "username", "", "Basic auth username (env "+config.EnvUser+")")
	flags.StringVar(&f.password, "password", "", "Basic auth password (env "+config.EnvPass+")")
	flags.BoolVar(&f.sslVerify, "ssl-verify", true, "Verify the server certificate (env "+config.EnvSSLVerify+")")
	flags.DurationVar(&f.timeout, "timeout", 0, "Timeout for a single request (default 30s)")
	flags.IntVar(&f.maxPages, "max-pages", 0, "Maximum number of result pages to follow (default 100)")
	flags.IntVar(&f.retries, "retries", 0, "Retries for failed reads on 429/502/503/504")
	flags.StringVar(&f.envFile, "env-file", ".env", "File read for TPM_* values missing from the environment")
}

func addPolicyFlags(cmd *cobra.Command, f *connectionFlags) {
	cmd.Flags().BoolVar(&f.preservePassword, "preserve-password", false, "Keep the stored password on update instead of generating a new one")
	cmd.Flags().BoolVar(&f.strictUpdateErrors, "strict-update-errors", false, "Report project update failures as update errors")
}

func (f *connectionFlags) options(cmd *cobra.Command) config.Options {
	opts := config.Options{
		Host:                     f.host,
		PublicKey:                f.publicKey,
		PrivateKey:               f.privateKey,
		Username:                 f.username,
		Password:                 f.password,
		Timeout:                  f.timeout,
		MaxPages:                 f.maxPages,
		Retries:                  f.retries,
		PreservePasswordOnUpdate: f.preservePassword,
		StrictUpdateErrors:       f.strictUpdateErrors,
	}
	if cmd.Flags().Changed("ssl-verify") {
		verify := f.sslVerify
		opts.SSLVerify = &verify
	}
	return opts
}

// sources loads the profile and .env file consulted after flags.
func (f *connectionFlags) sources(cfg *config.Config) (config.Sources, error) {
	profile, err := loadProfile(cfg)
	if err != nil {
		return config.Sources{}, err
	}

	dotenv, err := config.ReadDotEnv(f.envFile)
	if err != nil {
		return config.Sources{}, dserrors.UserError{
			Message:    fmt.Sprintf("Failed to read %s", f.envFile),
			Details:    err.Error(),
			Suggestion: "Fix the file syntax (KEY=value per line) or point --env-file elsewhere",
			Err:        err,
		}
	}

	return config.DefaultSources(profile, dotenv), nil
}

// resolve builds the client config for this invocation.
func (f *connectionFlags) resolve(cmd *cobra.Command, cfg *config.Config) (tpm.Config, config.Profile, error) {
	src, err := f.sources(cfg)
	if err != nil {
		return tpm.Config{}, config.Profile{}, err
	}

	resolved, err := config.ResolveConfig(f.options(cmd), src)
	if err != nil {
		return tpm.Config{}, src.Profile, err
	}
	return resolved, src.Profile, nil
}

// connect resolves the config and returns a client for it.
func (f *connectionFlags) connect(cmd *cobra.Command, cfg *config.Config) (*tpm.Client, config.Profile, error) {
	resolved, profile, err := f.resolve(cmd, cfg)
	if err != nil {
		return nil, profile, err
	}
	client, err := newClient(cfg, resolved)
	return client, profile, err
}

// newClient returns a client reporting to the process-wide metrics
// recorder. Its secrets are scrubbed from all later log output.
func newClient(cfg *config.Config, resolved tpm.Config) (*tpm.Client, error) {
	logger := loggerFor(cfg)
	if resolved.HMAC != nil {
		logger.AddSecrets(resolved.HMAC.PrivateKey)
	}
	if resolved.Basic != nil {
		logger.AddSecrets(resolved.Basic.Password)
	}
	logger.Debug("connecting to %s with %s authentication", resolved.Host, resolved.AuthMode())

	client, err := tpm.New(resolved, tpm.WithLogger(logger), tpm.WithObserver(metrics.Default()))
	if err != nil {
		return nil, dserrors.UserError{
			Message:    "Failed to create TPM client",
			Details:    err.Error(),
			Suggestion: "Check --host and the timeout, page and retry settings",
			Err:        err,
		}
	}
	return client, nil
}

// loadProfile reads the config file and returns the active profile. The
// default config file is optional; an explicit one must exist.
func loadProfile(cfg *config.Config) (config.Profile, error) {
	if cfg.Path == "" {
		cfg.Path = config.DefaultPath
	}

	load := cfg.Load
	if cfg.Path == config.DefaultPath {
		load = cfg.LoadOptional
	}
	if err := load(); err != nil {
		return config.Profile{}, err
	}
	return cfg.ActiveProfile()
}

func loggerFor(cfg *config.Config) *logging.Logger {
	if cfg.Logger == nil {
		cfg.Logger = logging.New(false, false)
	}
	return cfg.Logger
}

// readParamsFile reads a YAML or JSON task file into an argument document.
func readParamsFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dserrors.UserError{
			Message:    "Failed to read params file",
			Details:    err.Error(),
			Suggestion: "Check the --params path",
			Err:        err,
		}
	}

	doc := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, dserrors.UserError{
			Message:    "Invalid params file",
			Details:    err.Error(),
			Suggestion: "The file must be a YAML or JSON mapping of module arguments",
			Err:        err,
		}
	}
	return doc, nil
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeValue writes strings as-is for use in scripts and anything else as
// JSON.
func writeValue(w io.Writer, v interface{}, asJSON bool) error {
	if s, ok := v.(string); ok && !asJSON {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	return writeJSON(w, v)
}

package config

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-multierror"

	dserrors "github.com/systmms/tpmops/internal/errors"
	"github.com/systmms/tpmops/pkg/tpm"
)

// Options are connection settings given on the command line. Zero values
// mean "not given".
type Options struct {
	Host       string
	PublicKey  string
	PrivateKey string
	Username   string
	Password   string
	SSLVerify  *bool
	Timeout    time.Duration
	MaxPages   int
	Retries    int

	PreservePasswordOnUpdate bool
	StrictUpdateErrors       bool
}

type resolved struct {
	Host     string        `json:"host"`
	Timeout  time.Duration `json:"timeout"`
	MaxPages int           `json:"max_pages"`
	Retries  int           `json:"retries"`
}

var suggestions = map[string]string{
	"host":      "Pass --host, set " + EnvHost + ", or add 'host' to the profile in tpmops.yaml",
	"timeout":   "Use a positive duration such as 30s",
	"max_pages": "Use a positive page count, or 0 for the default of 100",
	"retries":   "Use 0 to disable retries",
}

// ResolveConfig merges opts with src into a client config. Each value is
// taken from the first source that has it: flags, profile, process
// environment, .env file, and for secrets the OS keyring.
func ResolveConfig(opts Options, src Sources) (tpm.Config, error) {
	p := src.Profile

	r := resolved{
		Host:     ResolveHost(opts, src),
		Timeout:  firstDuration(opts.Timeout, p.Timeout),
		MaxPages: firstInt(opts.MaxPages, p.MaxPages),
		Retries:  firstInt(opts.Retries, p.Retries),
	}

	publicKey := first(opts.PublicKey, p.PublicKey, src.lookup(EnvPublicKey))
	privateKey := first(opts.PrivateKey, p.PrivateKey, src.lookup(EnvPrivateKey))
	username := first(opts.Username, p.Username, src.lookup(EnvUser))
	password := first(opts.Password, p.Password, src.lookup(EnvPass))

	if publicKey != "" && privateKey == "" {
		privateKey = src.keyring(r.Host, KeyringPrivateKey)
	}
	if username != "" && password == "" {
		password = src.keyring(r.Host, KeyringPassword)
	}

	var result *multierror.Error

	err := validation.ValidateStruct(&r,
		validation.Field(&r.Host, validation.Required),
		validation.Field(&r.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&r.MaxPages, validation.Min(0)),
		validation.Field(&r.Retries, validation.Min(0)),
	)
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for field := range fieldErrs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			result = multierror.Append(result, dserrors.ConfigError{
				Field:      field,
				Message:    fieldErrs[field].Error(),
				Suggestion: suggestions[field],
			})
		}
	} else if err != nil {
		result = multierror.Append(result, err)
	}

	sslVerify, err := resolveSSLVerify(opts, src)
	if err != nil {
		result = multierror.Append(result, err)
	}

	for _, pairErr := range checkPairs(publicKey, privateKey, username, password) {
		result = multierror.Append(result, pairErr)
	}

	if err := flatten(result); err != nil {
		return tpm.Config{}, err
	}

	cfg := tpm.Config{
		Host:       r.Host,
		SSLVerify:  sslVerify,
		Timeout:    r.Timeout,
		MaxPages:   r.MaxPages,
		MaxRetries: r.Retries,
		Policy: tpm.Policy{
			PreservePasswordOnUpdate: opts.PreservePasswordOnUpdate || p.PreservePasswordOnUpdate,
			StrictUpdateErrors:       opts.StrictUpdateErrors || p.StrictUpdateErrors,
		},
	}
	if publicKey != "" {
		cfg.HMAC = &tpm.HMACAuth{PublicKey: publicKey, PrivateKey: privateKey}
	}
	if username != "" {
		cfg.Basic = &tpm.BasicAuth{Username: username, Password: password}
	}
	return cfg, nil
}

// ResolveHost returns the host from the first source that sets it.
func ResolveHost(opts Options, src Sources) string {
	return strings.TrimSpace(first(opts.Host, src.Profile.Host, src.lookup(EnvHost)))
}

func checkPairs(publicKey, privateKey, username, password string) []error {
	var errs []error

	if (publicKey == "") != (privateKey == "") {
		missing, env := "private_key", EnvPrivateKey
		if publicKey == "" {
			missing, env = "public_key", EnvPublicKey
		}
		errs = append(errs, dserrors.ConfigError{
			Field:      missing,
			Message:    "HMAC authentication needs both the public and the private key",
			Suggestion: "Set " + env + ", or store the private key with 'tpmops login --public-key <key>'",
		})
	}

	if (username == "") != (password == "") {
		missing, env := "password", EnvPass
		if username == "" {
			missing, env = "username", EnvUser
		}
		errs = append(errs, dserrors.ConfigError{
			Field:      missing,
			Message:    "Basic authentication needs both the username and the password",
			Suggestion: "Set " + env + ", or store the password with 'tpmops login --username <user>'",
		})
	}

	if publicKey == "" && privateKey == "" && username == "" && password == "" {
		errs = append(errs, dserrors.ConfigError{
			Field:   "auth",
			Message: "no credentials configured",
			Suggestion: "Set " + EnvPublicKey + " and " + EnvPrivateKey + " for HMAC, or " +
				EnvUser + " and " + EnvPass + " for Basic authentication, or run 'tpmops login'",
		})
	}

	return errs
}

func resolveSSLVerify(opts Options, src Sources) (bool, error) {
	if opts.SSLVerify != nil {
		return *opts.SSLVerify, nil
	}
	if src.Profile.SSLVerify != nil {
		return *src.Profile.SSLVerify, nil
	}
	raw := src.lookup(EnvSSLVerify)
	if raw == "" {
		return true, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true, dserrors.ConfigError{
			Field:      "ssl_verify",
			Value:      raw,
			Message:    "invalid boolean in " + EnvSSLVerify,
			Suggestion: "Use true or false",
		}
	}
	return v, nil
}

func (s Sources) keyring(host, kind string) string {
	if s.Keyring == nil || host == "" {
		return ""
	}
	secret, err := s.Keyring(host, kind)
	if err != nil {
		return ""
	}
	return secret
}

// flatten returns the only error unwrapped, or the aggregate.
func flatten(result *multierror.Error) error {
	if result == nil || len(result.Errors) == 0 {
		return nil
	}
	if len(result.Errors) == 1 {
		return result.Errors[0]
	}
	return result
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstDuration(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

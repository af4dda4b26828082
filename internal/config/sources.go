package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

// Environment variable names.
const (
	EnvHost       = "TPM_HOST"
	EnvPublicKey  = "TPM_PUBLIC_KEY"
	EnvPrivateKey = "TPM_PRIVATE_KEY"
	EnvUser       = "TPM_USER"
	EnvPass       = "TPM_PASS"
	EnvSSLVerify  = "TPM_SSL_VERIFY"
)

// KeyringService is the service name secrets are stored under.
const KeyringService = "tpmops"

// Keyring accounts are "<host>/<kind>".
const (
	KeyringPrivateKey = "private_key"
	KeyringPassword   = "password"
)

// ErrSecretNotFound is returned by a keyring lookup with no stored value.
var ErrSecretNotFound = errors.New("secret not found in keyring")

// Sources are the lookups consulted after flags and the profile.
type Sources struct {
	Profile Profile

	// Env looks up the process environment, e.g. os.LookupEnv.
	Env func(key string) (string, bool)

	// DotEnv holds the values of a .env file. They are never exported to
	// the process environment.
	DotEnv map[string]string

	// Keyring looks up a secret for host and kind.
	Keyring func(host, kind string) (string, error)
}

// DefaultSources returns sources backed by the process environment, the
// given .env values and the OS keyring.
func DefaultSources(profile Profile, dotenv map[string]string) Sources {
	return Sources{
		Profile: profile,
		Env:     os.LookupEnv,
		DotEnv:  dotenv,
		Keyring: KeyringGet,
	}
}

func (s Sources) lookup(key string) string {
	if s.Env != nil {
		if v, ok := s.Env(key); ok && v != "" {
			return v
		}
	}
	return s.DotEnv[key]
}

// ReadDotEnv reads a .env file. A missing file yields no values.
func ReadDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	return godotenv.Read(path)
}

// KeyringGet reads a secret from the OS keyring.
func KeyringGet(host, kind string) (string, error) {
	secret, err := keyring.Get(KeyringService, keyringAccount(host, kind))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrSecretNotFound
		}
		return "", err
	}
	return secret, nil
}

// KeyringSet stores a secret in the OS keyring.
func KeyringSet(host, kind, secret string) error {
	return keyring.Set(KeyringService, keyringAccount(host, kind), secret)
}

// KeyringDelete removes a stored secret. Missing secrets are not an error.
func KeyringDelete(host, kind string) error {
	err := keyring.Delete(KeyringService, keyringAccount(host, kind))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func keyringAccount(host, kind string) string {
	return host + "/" + kind
}

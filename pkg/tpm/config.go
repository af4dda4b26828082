package tpm

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	// DefaultTimeout bounds a single HTTP round-trip.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPages bounds Link-header pagination on a single GET.
	DefaultMaxPages = 100

	// ContentType is sent on every request.
	ContentType = "application/json; charset=utf-8"
)

// AuthMode identifies which credential set a Config uses.
type AuthMode string

const (
	AuthNone  AuthMode = "none"
	AuthBasic AuthMode = "basic"
	AuthHMAC  AuthMode = "hmac"
)

// HMACAuth holds an API key pair.
type HMACAuth struct {
	PublicKey  string
	PrivateKey string
}

// BasicAuth holds user credentials sent as HTTP Basic auth.
type BasicAuth struct {
	Username string
	Password string
}

// Policy switches behaviours that callers may want stricter or looser than
// the defaults.
type Policy struct {
	// PreservePasswordOnUpdate keeps the stored password when Update is
	// called without one. By default a new password is generated.
	PreservePasswordOnUpdate bool

	// StrictUpdateErrors reports project update failures with OpUpdate.
	// By default they are reported with OpCreate.
	StrictUpdateErrors bool
}

// Config describes how to reach one TPM instance. It is built once per
// invocation and not modified afterwards.
type Config struct {
	// Host is host[:port][/path-prefix], without scheme.
	Host      string
	SSLVerify bool

	HMAC  *HMACAuth
	Basic *BasicAuth

	// Timeout for a single request; DefaultTimeout when zero.
	Timeout time.Duration
	// MaxPages bounds pagination; DefaultMaxPages when zero.
	MaxPages int
	// MaxRetries is the number of extra attempts for failed GETs.
	MaxRetries int

	Policy Policy
}

// AuthMode returns the active credential set. HMAC takes precedence.
func (c Config) AuthMode() AuthMode {
	if c.HMAC != nil && c.HMAC.PublicKey != "" && c.HMAC.PrivateKey != "" {
		return AuthHMAC
	}
	if c.Basic != nil && c.Basic.Username != "" && c.Basic.Password != "" {
		return AuthBasic
	}
	return AuthNone
}

// Validate checks that the config can be used to build a Transport.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxPages, validation.Min(0)),
		validation.Field(&c.MaxRetries, validation.Min(0)),
	)
}

// normalizeHost strips a scheme and trailing slashes from host.
func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimRight(host, "/")
}

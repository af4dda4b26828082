package secure

import (
	"github.com/awnumar/memguard"
)

// Secret is an immutable credential sealed in a memguard enclave.
// The zero value and nil are both valid and hold the empty string.
type Secret struct {
	enclave *memguard.Enclave
}

// NewSecret seals value. Empty values produce an empty Secret.
func NewSecret(value string) *Secret {
	if value == "" {
		return &Secret{}
	}
	// NewEnclave wipes its input, so hand it a private copy.
	return &Secret{enclave: memguard.NewEnclave([]byte(value))}
}

// Empty reports whether the secret holds no data.
func (s *Secret) Empty() bool {
	return s == nil || s.enclave == nil
}

// Use opens the enclave, passes the plaintext to fn and wipes it afterwards.
func (s *Secret) Use(fn func(plain []byte) error) error {
	if s.Empty() {
		return fn(nil)
	}

	locked, err := s.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// Reveal returns a plain copy of the secret. Only use it where an API
// insists on a string (net/http Basic auth, keyring writes).
func (s *Secret) Reveal() (string, error) {
	var out string
	err := s.Use(func(plain []byte) error {
		out = string(plain)
		return nil
	})
	return out, err
}

// String implements fmt.Stringer and never prints the value.
func (s *Secret) String() string {
	if s.Empty() {
		return ""
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v.
func (s *Secret) GoString() string {
	return s.String()
}

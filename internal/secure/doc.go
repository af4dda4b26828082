// Package secure keeps credential material sealed in memory.
//
// API keys and Basic-auth passwords live for the whole invocation, so they
// are held in memguard enclaves rather than plain Go strings:
//
//   - Encrypted at rest in memory (XSalsa20Poly1305)
//   - Protected from swapping via mlock
//   - Plaintext wiped as soon as the caller's closure returns
//
// # Usage
//
//	key := secure.NewSecret(privateKey)
//	err := key.Use(func(plain []byte) error {
//	    mac := hmac.New(sha256.New, plain)
//	    ...
//	    return nil
//	})
//
// The plaintext slice passed to Use must not escape the closure.
//
// # Platform Behavior
//
// On Linux memory locking requires RLIMIT_MEMLOCK to be large enough. When
// mlock fails memguard falls back to regular memory; the data is still
// encrypted at rest.
package secure

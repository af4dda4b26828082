package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/systmms/tpmops/internal/config"
	dserrors "github.com/systmms/tpmops/internal/errors"
)

// NewLoginCommand creates the login command
func NewLoginCommand(cfg *config.Config) *cobra.Command {
	var (
		conn   connectionFlags
		logout bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store TPM credentials in the OS keyring",
		Long: `Store the HMAC private key or the Basic auth password for a host in the
OS keyring, so it does not have to live in tpmops.yaml or the environment.

The secret is read from the terminal without echo, or from stdin when it
is not a terminal. It is used whenever the public key or username is
configured without its secret half.`,
		Example: `  tpmops login --host tpm.example.com --public-key 1a2b...
  tpmops login --host tpm.example.com --username ansible
  echo "$TPM_PRIVATE_KEY" | tpmops login --public-key 1a2b... --non-interactive
  tpmops login --host tpm.example.com --logout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := conn.sources(cfg)
			if err != nil {
				return err
			}

			host := config.ResolveHost(conn.options(cmd), src)
			if host == "" {
				return dserrors.ConfigError{
					Field:      "host",
					Message:    "no host to store credentials for",
					Suggestion: "Pass --host or set " + config.EnvHost,
				}
			}

			kind, secret, label := conn.loginTarget(src.Profile)
			logger := loggerFor(cfg)

			if logout {
				kinds := []string{kind}
				if kind == "" {
					kinds = []string{config.KeyringPrivateKey, config.KeyringPassword}
				}
				for _, k := range kinds {
					if err := config.KeyringDelete(host, k); err != nil {
						return keyringError(err)
					}
				}
				logger.Info("Removed stored credentials for %s", host)
				return nil
			}

			if kind == "" {
				return dserrors.UserError{
					Message:    "Nothing to log in with",
					Suggestion: "Pass --public-key to store an HMAC private key, or --username to store a password",
				}
			}

			if secret == "" {
				prompt := fmt.Sprintf("%s for %s on %s: ", secretName(kind), label, host)
				secret, err = readSecret(cmd, prompt, cfg.NonInteractive)
				if err != nil {
					return err
				}
			}
			if secret == "" {
				return dserrors.UserError{
					Message:    "Empty secret",
					Suggestion: "Enter the " + secretName(kind) + ", or pipe it on stdin",
				}
			}

			if err := config.KeyringSet(host, kind, secret); err != nil {
				return keyringError(err)
			}
			logger.Info("Stored %s for %s on %s in the OS keyring", secretName(kind), label, host)
			return nil
		},
	}

	addConnectionFlags(cmd, &conn)
	cmd.Flags().BoolVar(&logout, "logout", false, "Remove stored credentials instead")

	return cmd
}

// loginTarget picks the keyring entry to write. HMAC wins, as it does when
// connecting. The secret is set when it was given as a flag.
func (f *connectionFlags) loginTarget(profile config.Profile) (kind, secret, label string) {
	if publicKey := first(f.publicKey, profile.PublicKey); publicKey != "" {
		return config.KeyringPrivateKey, f.privateKey, "public key " + publicKey
	}
	if username := first(f.username, profile.Username); username != "" {
		return config.KeyringPassword, f.password, "user " + username
	}
	return "", "", ""
}

func secretName(kind string) string {
	if kind == config.KeyringPrivateKey {
		return "private key"
	}
	return "password"
}

// readSecret reads without echo from a terminal, or a line from any
// other input.
func readSecret(cmd *cobra.Command, prompt string, nonInteractive bool) (string, error) {
	in := cmd.InOrStdin()

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if nonInteractive {
			return "", dserrors.UserError{
				Message:    "Cannot prompt for the secret in non-interactive mode",
				Suggestion: "Pipe the secret on stdin or pass it as a flag",
			}
		}
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), prompt)
		data, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func keyringError(err error) error {
	return dserrors.UserError{
		Message:    "OS keyring unavailable",
		Details:    err.Error(),
		Suggestion: "Unlock the keyring (on Linux a Secret Service such as gnome-keyring must be running), or use TPM_* variables instead",
		Err:        err,
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

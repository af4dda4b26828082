package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/tpmops/internal/config"
	dserrors "github.com/systmms/tpmops/internal/errors"
	"github.com/systmms/tpmops/pkg/tpm"
)

// CheckResult is one line of the doctor report.
type CheckResult struct {
	Name    string
	Status  string // ok, error, skipped
	Message string
}

// NewDoctorCommand creates the doctor command
func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var conn connectionFlags

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and connectivity",
		Long: `Resolve the connection settings the other commands would use, report the
authentication mode and make one read-only request to the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			results, err := runChecks(cmd, cfg, &conn)
			displayCheckResults(cmd.OutOrStdout(), results)
			if err != nil {
				return err
			}
			cfg.Logger.Info("All checks passed")
			return nil
		},
	}

	addConnectionFlags(cmd, &conn)

	return cmd
}

func runChecks(cmd *cobra.Command, cfg *config.Config, conn *connectionFlags) ([]CheckResult, error) {
	resolved, _, err := conn.resolve(cmd, cfg)
	if err != nil {
		return []CheckResult{
			{Name: "config", Status: "error", Message: firstLine(err.Error())},
			{Name: "connectivity", Status: "skipped"},
		}, err
	}

	results := []CheckResult{
		{
			Name:    "config",
			Status:  "ok",
			Message: fmt.Sprintf("https://%s (ssl verify: %t)", resolved.Host, resolved.SSLVerify),
		},
		{Name: "auth", Status: "ok", Message: describeAuth(resolved)},
	}

	client, err := newClient(cfg, resolved)
	if err != nil {
		results = append(results, CheckResult{Name: "connectivity", Status: "error", Message: firstLine(err.Error())})
		return results, err
	}

	start := time.Now()
	if _, err := client.Passwords().Generate(cmd.Context()); err != nil {
		results = append(results, CheckResult{Name: "connectivity", Status: "error", Message: firstLine(err.Error())})
		return results, dserrors.TPMError("connectivity check", err)
	}
	results = append(results, CheckResult{
		Name:    "connectivity",
		Status:  "ok",
		Message: fmt.Sprintf("server answered in %s", time.Since(start).Round(time.Millisecond)),
	})
	return results, nil
}

func describeAuth(c tpm.Config) string {
	switch c.AuthMode() {
	case tpm.AuthHMAC:
		return fmt.Sprintf("HMAC with public key %s", c.HMAC.PublicKey)
	case tpm.AuthBasic:
		return fmt.Sprintf("Basic as %s", c.Basic.Username)
	}
	return "none"
}

// displayCheckResults shows the checks in a formatted table
func displayCheckResults(w io.Writer, results []CheckResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(tw, "CHECK\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(tw, "-----\t------\t-------\n")

	for _, result := range results {
		status := result.Status
		switch result.Status {
		case "ok":
			status = "✓ " + status
		case "error":
			status = "✗ " + status
		default:
			status = "- " + status
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", result.Name, status, result.Message)
	}

	_ = tw.Flush()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

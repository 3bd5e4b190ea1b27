package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
)

var errHighFindings = errors.New("configuration has high severity findings")

func newSecurityReportCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "security-report",
		Short: "Print the security posture of the loaded configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			report := goSession.ReportFor(cfg.EngineConfig())
			if err := printReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if strict && report.High() {
				return errHighFindings
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when a high severity finding is present")
	return cmd
}

func printReport(w io.Writer, r goSession.SecurityReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		k string
		v any
	}{
		{"production mode", r.ProductionMode},
		{"signing algorithm", r.SigningAlgorithm},
		{"access ttl", r.AccessTTL},
		{"refresh ttl", r.RefreshTTL},
		{"fingerprint required", r.FingerprintRequired},
		{"refresh rotation", r.RefreshRotationEnabled},
		{"session cap", r.SessionCapActive},
		{"idle timeout", r.IdleTimeout},
		{"rate limiting", r.RateLimitingActive},
		{"rate limit fail-open", r.RateLimitFailOpen},
		{"input screening", r.InputScreeningActive},
		{"audit", r.AuditEnabled},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%v\n", row.k, row.v)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Findings) == 0 {
		_, err := fmt.Fprintln(w, "\nno findings")
		return err
	}
	fmt.Fprintln(w, "\nfindings:")
	for _, f := range r.Findings {
		fmt.Fprintf(w, "  [%s] %s: %s\n", f.Severity, f.Code, f.Message)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gamecafe/panelsync/client"
	"github.com/gamecafe/panelsync/internal/config"
	"github.com/gamecafe/panelsync/internal/socket"
)

const doctorTimeout = 5 * time.Second

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration and connectivity",
		Long:  "Run diagnostic checks against config, the panel API and the socket endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

type checkResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
	Hint   string `json:"hint,omitempty"`
}

func doctorChecks(ctx context.Context) []checkResult {
	var results []checkResult

	cfgPath, _, fileErr := loadConfigFile()
	switch {
	case fileErr == nil:
		results = append(results, checkResult{Name: "Config file", Passed: true, Detail: cfgPath})
	case os.IsNotExist(fileErr):
		results = append(results, checkResult{Name: "Config file", Passed: true, Detail: "none, using environment"})
	default:
		results = append(results, checkResult{Name: "Config file", Detail: cfgPath, Hint: fileErr.Error()})
	}

	cfg, err := config.Load()
	if err != nil {
		return append(results, checkResult{
			Name: "Configuration",
			Hint: fmt.Sprintf("Set PANEL_SOCKET_URL and friends, or add a profile. Error: %v", err),
		})
	}
	results = append(results, checkResult{Name: "Configuration", Passed: true, Detail: "valid"})

	if endpoint, err := socket.Endpoint(cfg.SocketURL, cfg.SocketPath); err != nil {
		results = append(results, checkResult{Name: "Socket endpoint", Hint: err.Error()})
	} else {
		results = append(results, checkResult{Name: "Socket endpoint", Passed: true, Detail: endpoint})
	}

	if cfg.APIToken.Value() == "" {
		results = append(results, checkResult{Name: "API token", Hint: "Set PANEL_API_TOKEN or api_token in the profile"})
	} else {
		results = append(results, checkResult{Name: "API token", Passed: true, Detail: "configured"})
	}

	panel := client.New(cfg.APIURL, client.WithToken(cfg.APIToken.Value()), client.WithTimeout(doctorTimeout))

	health, err := panel.Health(ctx)
	if err != nil {
		return append(results, checkResult{
			Name:   "Panel API reachable",
			Detail: cfg.APIURL,
			Hint:   fmt.Sprintf("Is the panel API up? Error: %v", err),
		})
	}

	detail := cfg.APIURL
	if health.Version != "" {
		detail = fmt.Sprintf("%s (v%s)", cfg.APIURL, health.Version)
	}
	results = append(results, checkResult{Name: "Panel API reachable", Passed: true, Detail: detail})

	if _, err := panel.Me(ctx); err != nil {
		hint := err.Error()
		if client.IsUnauthorized(err) {
			hint = "Check the API token. " + hint
		}
		results = append(results, checkResult{Name: "Authentication", Hint: hint})
	} else {
		results = append(results, checkResult{Name: "Authentication", Passed: true, Detail: "valid"})
	}

	return results
}

func runDoctor(ctx context.Context, w io.Writer) error {
	results := doctorChecks(ctx)

	allPassed := true
	for _, r := range results {
		allPassed = allPassed && r.Passed
	}

	if flagFmt == "json" {
		if err := formatJSON(w, results); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w, "\npanelsync doctor")
		fmt.Fprintln(w, "================")
		fmt.Fprintln(w)

		for _, r := range results {
			mark := "✅"
			if !r.Passed {
				mark = "❌"
			}
			if r.Detail != "" {
				fmt.Fprintf(w, "%s %s: %s\n", mark, r.Name, r.Detail)
			} else {
				fmt.Fprintf(w, "%s %s\n", mark, r.Name)
			}
			if !r.Passed && r.Hint != "" {
				fmt.Fprintf(w, "   Hint: %s\n", r.Hint)
			}
		}
		fmt.Fprintln(w)
	}

	if !allPassed {
		return fmt.Errorf("doctor found issues")
	}

	if flagFmt != "json" {
		fmt.Fprintln(w, "✅ All checks passed!")
	}

	return nil
}

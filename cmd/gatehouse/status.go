// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/control"
)

// ProcessStatus holds the reported status of the server process.
type ProcessStatus struct {
	Component string `json:"component"`
	Running   bool   `json:"running"`
	Health    string `json:"health,omitempty"`
	Error     string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status subcommand.
type statusConfig struct {
	controlAddr string
	jsonOutput  bool
	timeout     time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of the running Gatehouse server",
		Long:  `Query the control endpoint of a running Gatehouse server and report its health.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.controlAddr, "control-addr", config.DefaultControlAddr, "control gRPC address to query")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "query timeout")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	status := queryProcessStatus(ctx, cfg.controlAddr)

	var output string
	var err error

	if cfg.jsonOutput {
		output, err = formatStatusJSON(status)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
	} else {
		output = formatStatusTable(status)
	}

	cmd.Println(output)
	return nil
}

// queryProcessStatus queries the control endpoint and returns the status.
func queryProcessStatus(ctx context.Context, addr string) ProcessStatus {
	status := ProcessStatus{
		Component: "gatehouse",
	}

	serving, err := control.CheckHealth(ctx, addr, "gatehouse")
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}

	status.Running = serving == healthpb.HealthCheckResponse_SERVING
	status.Health = strings.ToLower(serving.String())
	return status
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ProcessStatus) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROCESS\tSTATUS\tHEALTH")
	_, _ = fmt.Fprintln(w, "-------\t------\t------")

	if status.Running {
		_, _ = fmt.Fprintf(w, "%s\trunning\t%s\n", status.Component, status.Health)
	} else {
		reason := "not running"
		if status.Error != "" {
			reason = status.Error
		}
		_, _ = fmt.Fprintf(w, "%s\tstopped\t%s\n", status.Component, reason)
	}

	_ = w.Flush()
	return sb.String()
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status ProcessStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}

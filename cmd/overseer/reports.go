package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/ternarybob/overseer/internal/models"
)

var (
	healthReport       bool
	statsPeriod        string
	workflowAlertsOnly bool
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the latest health check of every component",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job statistics per period",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "Show last run, next run and success rate per workflow",
	Args:  cobra.NoArgs,
	RunE:  runWorkflows,
}

func init() {
	healthCmd.Flags().BoolVar(&healthReport, "report", false, "Include the overall health level")
	statsCmd.Flags().StringVar(&statsPeriod, "period", "", "One of last_hour, last_24h, last_week, last_month (default all)")
	workflowsCmd.Flags().BoolVar(&workflowAlertsOnly, "alerts", false, "Show only the performance alerts of the review window")
}

func runHealth(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if healthReport {
		report, err := client.HealthReport(ctx)
		if err != nil {
			return err
		}
		return renderHealthReport(cmd.OutOrStdout(), report)
	}

	checks, err := client.LatestHealth(ctx)
	if err != nil {
		return err
	}
	return renderHealthChecks(cmd.OutOrStdout(), checks)
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	stats, err := client.Statistics(ctx, models.StatsPeriod(statsPeriod))
	if err != nil {
		return err
	}
	return renderStatistics(cmd.OutOrStdout(), stats)
}

func runWorkflows(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if workflowAlertsOnly {
		report, err := client.WorkflowPerformance(ctx)
		if err != nil {
			return err
		}
		return renderPerformanceAlerts(cmd.OutOrStdout(), report.Alerts)
	}

	workflows, err := client.Workflows(ctx)
	if err != nil {
		return err
	}
	return renderWorkflows(cmd.OutOrStdout(), workflows)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ternarybob/overseer/internal/httpclient"
)

var (
	triggerParams []string
	jobsLimit     int
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <job_type>",
	Short: "Queue a job now",
	Long: `Queue a job of the given type now. Refused while a job of the same type is
scheduled or running.

Examples:
  overseer trigger health_check
  overseer trigger linkedin_scraping --param max_results=10`,
	Args: cobra.ExactArgs(1),
	RunE: runTrigger,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

var jobCmd = &cobra.Command{
	Use:   "job <id>",
	Short: "Show one job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJob,
}

func init() {
	triggerCmd.Flags().StringArrayVar(&triggerParams, "param", nil, "Job parameter as key=value (repeatable)")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "Number of jobs to show")
}

func runTrigger(cmd *cobra.Command, args []string) error {
	params, err := parseParams(triggerParams)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	resp, err := client.TriggerJob(ctx, args[0], params)
	if httpclient.IsConflict(err) {
		return fmt.Errorf("a %s job is already scheduled or running", args[0])
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s queued as %s\n", statusColor(resp.Status), resp.JobType, resp.JobID)
	return nil
}

func runJobs(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	jobs, err := client.ListRecentJobs(ctx, jobsLimit)
	if err != nil {
		return err
	}
	return renderJobs(cmd.OutOrStdout(), jobs)
}

func runJob(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	job, err := client.GetJob(ctx, args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// parseParams turns key=value pairs into job parameters. Values that parse as JSON keep their type.
func parseParams(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		var typed interface{}
		if err := json.Unmarshal([]byte(value), &typed); err == nil {
			params[key] = typed
		} else {
			params[key] = value
		}
	}
	return params, nil
}

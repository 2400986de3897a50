package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/celestiaorg/maasprov/internal/types"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultWaitTimeout  = 30 * time.Minute
)

func newProvisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Submit a provisioning job",
		Long: `Submit a provisioning job either for named machines (--machines) or for
machines selected by tags (--tags with --count).`,
		Example: `  maasprov provision --machines node-1,node-2 --distro jammy
  maasprov provision --tags gpu,nvme --count 2 --match all --wait`,
		RunE: runProvision,
	}

	cmd.Flags().StringSlice("machines", nil, "Hostnames or system IDs to deploy")
	cmd.Flags().StringSlice("tags", nil, "Tags for automatic machine selection")
	cmd.Flags().Int("count", 0, "Number of machines to auto-select")
	cmd.Flags().String("match", "", "Tag match mode: all (default) or any")
	cmd.Flags().String("pool", "", "Restrict auto-selection to a resource pool")
	cmd.Flags().String("distro", types.DefaultDistroSeries, "Distro series to deploy")
	cmd.Flags().String("user-data-file", "", "File with the cloud-init user-data template")
	cmd.Flags().Bool("wait", false, "Wait until the job reaches a terminal status")
	cmd.Flags().Duration("poll-interval", defaultPollInterval, "Status polling interval with --wait")
	cmd.Flags().Duration("wait-timeout", defaultWaitTimeout, "Maximum time to wait with --wait")
	return cmd
}

func runProvision(cmd *cobra.Command, _ []string) error {
	machines, _ := cmd.Flags().GetStringSlice("machines")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	count, _ := cmd.Flags().GetInt("count")
	match, _ := cmd.Flags().GetString("match")
	pool, _ := cmd.Flags().GetString("pool")
	distro, _ := cmd.Flags().GetString("distro")
	userDataFile, _ := cmd.Flags().GetString("user-data-file")

	if len(machines) > 0 && len(tags) > 0 {
		return fmt.Errorf("--machines and --tags are mutually exclusive")
	}

	req := types.ProvisionRequest{
		Machines:     machines,
		DistroSeries: distro,
		AutoSelect:   len(tags) > 0,
		Tags:         tags,
		Count:        count,
		TagMatchMode: match,
		Pool:         pool,
	}
	if userDataFile != "" {
		data, err := os.ReadFile(userDataFile)
		if err != nil {
			return fmt.Errorf("error reading user-data file: %w", err)
		}
		req.UserData = string(data)
	}

	resp, err := apiClient.Provision(cmd.Context(), req)
	if err != nil {
		// 400 and 409 bodies carry the examples and available machines
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), fiberErr.Message)
			return fmt.Errorf("provisioning rejected with status %d", fiberErr.Code)
		}
		return fmt.Errorf("error submitting provisioning job: %w", err)
	}

	if wait, _ := cmd.Flags().GetBool("wait"); !wait {
		return printJSON(cmd.OutOrStdout(), resp)
	}

	interval, _ := cmd.Flags().GetDuration("poll-interval")
	timeout, _ := cmd.Flags().GetDuration("wait-timeout")
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Job %s accepted, waiting for completion...\n", resp.JobID)
	return waitForJob(cmd, resp.JobID, interval, timeout)
}

// waitForJob polls the job until it reaches a terminal status and prints it
func waitForJob(cmd *cobra.Command, jobID string, interval, timeout time.Duration) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := apiClient.GetJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("error fetching job: %w", err)
		}
		if job.Status.IsTerminal() {
			return printJSON(cmd.OutOrStdout(), job)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for job %s (last status: %s)", jobID, job.Status)
		case <-ticker.C:
		}
	}
}

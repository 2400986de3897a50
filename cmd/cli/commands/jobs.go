package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/maasprov/internal/db/models"
)

// jobOutput represents the filtered output for a job
type jobOutput struct {
	ID                    string     `json:"id"`
	Status                string     `json:"status"`
	CreatedAt             time.Time  `json:"created_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	TotalMachines         int        `json:"total_machines"`
	SuccessfulDeployments int        `json:"successful_deployments"`
	FailedDeployments     int        `json:"failed_deployments"`
	Error                 string     `json:"error,omitempty"`
}

// jobListOutput represents the filtered output for a list of jobs
type jobListOutput struct {
	Jobs  []jobOutput `json:"jobs"`
	Total int         `json:"total"`
}

func newJobOutput(job *models.ProvisioningJob) jobOutput {
	return jobOutput{
		ID:                    job.ID,
		Status:                job.Status.String(),
		CreatedAt:             job.CreatedAt,
		CompletedAt:           job.CompletedAt,
		TotalMachines:         job.TotalMachines,
		SuccessfulDeployments: job.SuccessfulDeployments,
		FailedDeployments:     job.FailedDeployments,
		Error:                 job.Error,
	}
}

func newJobsCmd() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect provisioning jobs",
	}

	listJobsCmd := &cobra.Command{
		Use:   "list",
		Short: "List provisioning jobs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			status, _ := cmd.Flags().GetString("status")

			opts := &models.ListOptions{Limit: limit}
			if status != "" {
				jobStatus, err := models.ParseJobStatus(status)
				if err != nil {
					return err
				}
				if jobStatus == models.JobStatusUnknown {
					return fmt.Errorf("invalid job status: %s", status)
				}
				opts.Status = jobStatus
			}

			response, err := apiClient.ListJobs(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("error fetching jobs: %w", err)
			}

			output := jobListOutput{
				Jobs:  make([]jobOutput, len(response.Jobs)),
				Total: response.Total,
			}
			for i, job := range response.Jobs {
				output.Jobs[i] = newJobOutput(job)
			}
			return printJSON(cmd.OutOrStdout(), output)
		},
	}
	listJobsCmd.Flags().IntP("limit", "l", models.DefaultLimit, "Limit the number of jobs returned")
	listJobsCmd.Flags().String("status", "", "Filter jobs by status")

	getJobCmd := &cobra.Command{
		Use:   "get",
		Short: "Get the full record of a provisioning job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobID, _ := cmd.Flags().GetString("id")

			job, err := apiClient.GetJob(cmd.Context(), jobID)
			if err != nil {
				return fmt.Errorf("error fetching job: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
	getJobCmd.Flags().StringP("id", "i", "", "Job ID to fetch")
	_ = getJobCmd.MarkFlagRequired("id")

	jobsCmd.AddCommand(listJobsCmd, getJobCmd)
	return jobsCmd
}

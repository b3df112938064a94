package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docnerd/internal/job"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and control running scrape/refresh jobs",
}

var jobsStatusFilter string

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked jobs",
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show one job's current status and progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel [job-id]",
	Short: "Cancel a running or queued job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

var jobsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove completed/failed/cancelled jobs from the in-memory job table",
	RunE:  runJobsClear,
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsStatusFilter, "status", "", "Filter by status (queued, running, completed, failed, cancelled)")
	jobsCmd.AddCommand(jobsListCmd, jobsStatusCmd, jobsCancelCmd, jobsClearCmd)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	jobs := manager.GetJobs(job.Status(jobsStatusFilter))
	if len(jobs) == 0 {
		fmt.Println("no jobs")
		return nil
	}
	for _, j := range jobs {
		fmt.Printf("%s\t%s\t%s@%s\t%s\n", j.ID, j.Status, j.Library, j.Version, j.Options.URL)
	}
	return nil
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	j, ok := manager.GetJob(args[0])
	if !ok {
		return fmt.Errorf("unknown job %s", args[0])
	}
	fmt.Printf("id:       %s\n", j.ID)
	fmt.Printf("library:  %s@%s\n", j.Library, j.Version)
	fmt.Printf("status:   %s\n", j.Status)
	if j.ErrorMessage != "" {
		fmt.Printf("error:    %s\n", j.ErrorMessage)
	}
	fmt.Printf("progress: %d/%d pages (%s)\n", j.Progress.PagesScraped, j.Progress.TotalPages, j.Progress.CurrentURL)
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	manager.CancelJob(args[0])
	fmt.Printf("cancellation requested for %s\n", args[0])
	return nil
}

func runJobsClear(cmd *cobra.Command, args []string) error {
	n := manager.ClearCompletedJobs()
	fmt.Printf("cleared %d completed job(s)\n", n)
	return nil
}

package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// schedulerCmd represents the scheduler command group.
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the refresh schedule without the API",
	Long: `Runs the recurring series refresh (backfill pass + live
reconciliation) headless, without serving HTTP.

Subcommands:
  start - start the schedule and block
  list  - list registered jobs

Example:
  go run ./cmd/covidtrack scheduler start`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the refresh schedule",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	application, err := initApp()
	if err != nil {
		return err
	}

	application.sched.Start()

	fmt.Println("Scheduler started")
	for _, jobName := range application.sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down scheduler...")
	application.sched.Stop()

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	application, err := initApp()
	if err != nil {
		return err
	}

	fmt.Println("Registered jobs:")
	for _, jobName := range application.sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	return nil
}

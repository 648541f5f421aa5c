package cmd

import (
	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [job_id]",
	Short: "Cancel a verification job",
	Long: `Request cancellation of a job. Cancellation is honored at the next stage
boundary, so a job may briefly keep its current state before moving to FAILED.
Jobs already in a terminal state cannot be cancelled.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(baseURL())

		if err := client.CancelJob(args[0]); err != nil {
			cmd.Printf("Cancel failed: %v\n", err)
			return
		}
		cmd.Printf("%s Cancellation requested for %s\n", colorGreen+"✓"+colorReset, args[0])
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

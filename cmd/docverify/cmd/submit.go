package cmd

import (
	"github.com/spf13/cobra"
)

var (
	submitSource  string
	submitRuleSet string
	submitJobID   string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a document for verification",
	Long: `Submit a document to the verification pipeline. The source reference is
a path relative to the daemon's document root. Submission returns immediately;
use "docverify status" to track progress.

Passing --id makes the submission idempotent: resubmitting the same id with
the same source and rule-set returns the existing job.`,
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(baseURL())

		resp, err := client.SubmitJob(submitRequest{
			JobID:     submitJobID,
			SourceRef: submitSource,
			RuleSetID: submitRuleSet,
		})
		if err != nil {
			cmd.Printf("Submission failed: %v\n", err)
			return
		}

		cmd.Printf("%s Job accepted\n", colorGreen+"✓"+colorReset)
		cmd.Printf("%sJob ID:%s  %s\n", colorDim, colorReset, resp.JobID)
		cmd.Printf("%sStatus:%s  %s\n", colorDim, colorReset, colorizeStatus(resp.Status))
		cmd.Printf("\nTrack it with: docverify status %s\n", resp.JobID)
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitSource, "source", "", "document path under the daemon's document root (required)")
	submitCmd.Flags().StringVar(&submitRuleSet, "ruleset", "", "rule-set id to extract with (required)")
	submitCmd.Flags().StringVar(&submitJobID, "id", "", "client-chosen job UUID for idempotent submission")
	submitCmd.MarkFlagRequired("source")
	submitCmd.MarkFlagRequired("ruleset")
	rootCmd.AddCommand(submitCmd)
}

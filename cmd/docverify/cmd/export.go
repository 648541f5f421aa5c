package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export jobs awaiting manual review",
	Long: `Download an XLSX workbook of all jobs in NEEDS_REVIEW state, one row per
extracted field with recognized and normalized values and confidence scores.`,
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(baseURL())

		data, err := client.ExportReview()
		if err != nil {
			cmd.Printf("Export failed: %v\n", err)
			return
		}
		if err := os.WriteFile(exportOut, data, 0o644); err != nil {
			cmd.Printf("Failed to write %s: %v\n", exportOut, err)
			return
		}
		cmd.Printf("%s Wrote %s (%d bytes)\n", colorGreen+"✓"+colorReset, exportOut, len(data))
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "review.xlsx", "output file path")
	rootCmd.AddCommand(exportCmd)
}

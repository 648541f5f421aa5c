package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var apiURL string

var rootCmd = &cobra.Command{
	Use:   "docverify",
	Short: "docverify is a command line tool for the document verification pipeline",
	Long: `docverify submits documents to the verification daemon and tracks them
through fetch, conversion, recognition, extraction and persistence.

Common workflows:

  Submit a document for verification:
    docverify submit --source invoices/2026/scan-041.pdf --ruleset income-certificate-v1

  Check job status:
    docverify status <job-id>

  Cancel a running job:
    docverify cancel <job-id>

  Export jobs awaiting manual review:
    docverify export --out review.xlsx

Configuration:
  DOCVERIFY_API_URL sets the daemon endpoint (default: http://localhost:8080),
  or pass --url on any command.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func baseURL() string {
	if apiURL != "" {
		return apiURL
	}
	if v := os.Getenv("DOCVERIFY_API_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", "", "daemon API URL (default: $DOCVERIFY_API_URL or http://localhost:8080)")
}

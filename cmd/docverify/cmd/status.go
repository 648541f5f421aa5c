package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Get status of a verification job",
	Long: `Retrieve a job snapshot, including its current state, per-stage attempt
counts, extracted fields with confidence scores, and the last error if any.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(baseURL())

		job, err := client.GetJob(args[0])
		if err != nil {
			cmd.Printf("Status lookup failed: %v\n", err)
			return
		}
		printJob(cmd, job)
	},
}

func printJob(cmd *cobra.Command, job *jobResponse) {
	cmd.Printf("%s %sJob Details%s\n", statusIcon(job.Status), colorBold, colorReset)
	cmd.Println("──────────────────────────────")
	cmd.Printf("%sID:%s         %s\n", colorDim, colorReset, job.JobID)
	cmd.Printf("%sSource:%s     %s\n", colorDim, colorReset, job.SourceRef)
	cmd.Printf("%sRule-set:%s   %s\n", colorDim, colorReset, job.RuleSetID)
	cmd.Printf("%sStatus:%s     %s\n", colorDim, colorReset, colorizeStatus(job.Status))

	if len(job.Attempts) > 0 {
		stages := make([]string, 0, len(job.Attempts))
		for s := range job.Attempts {
			stages = append(stages, s)
		}
		sort.Strings(stages)
		cmd.Printf("%sAttempts:%s   ", colorDim, colorReset)
		for i, s := range stages {
			if i > 0 {
				cmd.Printf(", ")
			}
			cmd.Printf("%s=%d", s, job.Attempts[s])
		}
		cmd.Println()
	}

	if job.LastError != nil {
		cmd.Printf("%sError:%s      %s[%s] %s%s\n", colorDim, colorReset, colorRed, job.LastError.Kind, job.LastError.Message, colorReset)
	}

	if len(job.Fields) > 0 {
		cmd.Printf("\n%sExtracted fields%s (overall confidence %.2f)\n", colorBold, colorReset, job.OverallConfidence)
		names := make([]string, 0, len(job.Fields))
		for n := range job.Fields {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			f := job.Fields[n]
			cmd.Printf("  %s%-20s%s %-30q %s(%.2f)%s\n", colorDim, n+":", colorReset, f.Normalized, colorCyan, f.Confidence, colorReset)
		}
	}

	cmd.Printf("\n%sSubmitted:%s  %s\n", colorDim, colorReset, formatTime(job.CreatedAt))
	if job.CompletedAt != nil && job.CreatedAt != nil {
		cmd.Printf("%sFinished:%s   %s %s(%s)%s\n", colorDim, colorReset,
			formatTime(job.CompletedAt), colorCyan, formatDuration(job.CompletedAt.Sub(*job.CreatedAt)), colorReset)
	} else {
		cmd.Printf("%sFinished:%s   %s\n", colorDim, colorReset, formatTime(job.CompletedAt))
	}
}

// ANSI color codes
const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorAmber = "\033[33m"
	colorCyan  = "\033[36m"
)

func statusIcon(status string) string {
	switch status {
	case "COMPLETE":
		return colorGreen + "✓" + colorReset
	case "FAILED":
		return colorRed + "✗" + colorReset
	case "NEEDS_REVIEW":
		return colorAmber + "!" + colorReset
	case "PENDING":
		return colorCyan + "◯" + colorReset
	default:
		return colorAmber + "⏳" + colorReset
	}
}

func colorizeStatus(status string) string {
	icon := statusIcon(status)
	switch status {
	case "COMPLETE":
		return icon + " " + colorGreen + status + colorReset
	case "FAILED":
		return icon + " " + colorRed + status + colorReset
	case "NEEDS_REVIEW":
		return icon + " " + colorAmber + status + colorReset
	case "PENDING":
		return icon + " " + colorCyan + status + colorReset
	default:
		return icon + " " + colorAmber + status + colorReset
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("Mon, 02 Jan 2006 15:04:05 MST")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

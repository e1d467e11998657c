package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/automated-mda/backend/internal/stage"
)

var statusCmd = &cobra.Command{
	Use:   "status [jobId]",
	Short: "Show the processing status of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	job, err := newClient(serverURL).Job(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get job %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", styles.Title.Render("Job "+job.ID), styles.Muted.Render(job.FileName))

	st := stage.Build(job.Stage)
	for _, step := range st.Steps {
		switch step.State {
		case stage.StateComplete:
			fmt.Fprintln(out, styles.Complete.Render("  ✓ "+step.Label))
		case stage.StateActive:
			fmt.Fprintln(out, styles.Active.Render("  "+strconv.Itoa(step.Number)+" "+step.Label))
		default:
			fmt.Fprintln(out, styles.Pending.Render("  "+strconv.Itoa(step.Number)+" "+step.Label))
		}
	}
	fmt.Fprintf(out, "%s %.0f%%\n", styles.Muted.Render("Progress:"), st.Percent)

	if job.Error != "" {
		fmt.Fprintln(out, styles.Tone("error").Render(job.Stage+": "+job.Error))
	}
	if job.ResultID != "" {
		fmt.Fprintf(out, "%s mdactl results %s\n", styles.Muted.Render("Results:"), job.ResultID)
	}
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/automated-mda/backend/internal/dropzone"
	"github.com/automated-mda/backend/internal/flow"
	"github.com/automated-mda/backend/internal/stage"
)

var (
	uploadDrop bool
	uploadMode string
)

// ErrDropRejected is returned when --drop is given a file whose type the
// drop zone does not accept.
var ErrDropRejected = errors.New("file type not accepted: drop a .csv or .xlsx file")

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload a statement file and follow processing",
	Long: `Uploads a CSV or XLSX statement extract and follows the processing
stages until the results are ready.

With --drop the file goes through the drop zone filter, which only accepts
CSV and XLSX types. Without it the file is handled like a picker selection.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadDrop, "drop", false, "apply the drop zone type filter")
	uploadCmd.Flags().StringVarP(&uploadMode, "mode", "m", string(flow.ModeTracked), "stage mode (tracked or simulated)")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	mode, err := flow.ParseMode(uploadMode)
	if err != nil {
		return err
	}

	file, err := dropzone.FileFromPath(args[0])
	if err != nil {
		return err
	}

	var selected *dropzone.File
	dz := dropzone.New(func(f dropzone.File) { selected = &f })
	if uploadDrop {
		dz.Drop([]dropzone.File{file})
	} else {
		dz.Pick([]dropzone.File{file})
	}
	if selected == nil {
		return ErrDropRejected
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := newClient(serverURL)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, styles.Title.Render("Uploading "+selected.Name))

	var target string
	lastStage := ""
	f := flow.New(c,
		flow.NavigatorFunc(func(_ context.Context, path string) error {
			target = path
			return nil
		}),
		flow.WithMode(mode),
		flow.WithTracker(c),
		flow.WithSleeper(sleeper),
		flow.WithOnChange(func(s flow.Snapshot) {
			if s.Stage == lastStage {
				return
			}
			lastStage = s.Stage
			fmt.Fprintln(out, renderStageLine(s.Stage))
		}),
	)

	if err := f.HandleFileUpload(ctx, *selected); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s%s\n", styles.Muted.Render("Results:"), strings.TrimRight(serverURL, "/"), target)
	return nil
}

// renderStageLine shows the active stage with its step number and the
// progress percentage.
func renderStageLine(label string) string {
	idx := stage.Index(label)
	if idx < 0 {
		if label == stage.Failed {
			return styles.Tone("error").Render("✗ " + label)
		}
		return styles.Pending.Render(label)
	}
	marker := fmt.Sprintf("[%d/%d]", idx+1, stage.Len())
	if label == stage.Complete {
		return styles.Complete.Render("✓ " + label)
	}
	return fmt.Sprintf("%s %s %s", styles.Muted.Render(marker), styles.Active.Render(label),
		styles.Muted.Render(fmt.Sprintf("%.0f%%", stage.Percent(idx))))
}

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/automated-mda/backend/internal/web"
)

var (
	resultsSection  int
	resultsMarkdown bool
)

var resultsCmd = &cobra.Command{
	Use:   "results [jobId|demo]",
	Short: "Print the KPIs and MD&A sections of a result",
	Long: `Prints the KPI cards, the section list and the selected MD&A section.
Use "demo" for the sample result. --markdown prints the full Markdown
document instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runResults,
}

func init() {
	resultsCmd.Flags().IntVar(&resultsSection, "section", 0, "index of the section to show")
	resultsCmd.Flags().BoolVar(&resultsMarkdown, "markdown", false, "print the Markdown document")
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	c := newClient(serverURL)
	out := cmd.OutOrStdout()

	if resultsMarkdown {
		md, err := c.Markdown(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to download markdown: %w", err)
		}
		_, err = out.Write(md)
		return err
	}

	bundle, err := c.Results(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get results %s: %w", args[0], err)
	}
	view := web.NewResultsView(bundle, strconv.Itoa(resultsSection))

	fmt.Fprintln(out, styles.Muted.Render("Processing Complete"))
	fmt.Fprintln(out, styles.Title.Render(view.Company))
	fmt.Fprintln(out, styles.Muted.Render(view.Period+" • "+view.FileName))
	fmt.Fprintln(out)

	cards := make([]string, 0, len(view.KPIs))
	for _, k := range view.KPIs {
		cards = append(cards, styles.Card.Render(
			styles.Muted.Render(k.Label)+"\n"+styles.Tone(k.ToneName).Render(k.Value+" "+k.Arrow)))
	}
	fmt.Fprintln(out, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	fmt.Fprintln(out)

	for _, s := range view.Sections {
		if s.Selected {
			fmt.Fprintln(out, styles.Accent.Render("▸ "+s.Title))
		} else {
			fmt.Fprintln(out, styles.Muted.Render("  "+s.Title))
		}
	}

	if len(bundle.MDASections) > 0 {
		section := bundle.MDASections[view.Selected]
		body := section.Title + "\n\n" + strings.TrimSpace(section.Content)
		if len(section.Sources) > 0 {
			body += "\n\nSources:\n→ " + strings.Join(section.Sources, "\n→ ")
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, styles.Card.Width(80).Render(body))
	}
	return nil
}

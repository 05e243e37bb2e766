package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/cassava-api/internal/catalog"
	"github.com/Brownie44l1/cassava-api/internal/stats"
	"github.com/Brownie44l1/cassava-api/internal/store"
)

var (
	historyLimit int
	historyOwner string
	showOut      string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored scans, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		runHistory(cmd.Context(), store.Filter{Owner: historyOwner, Limit: historyLimit})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the scan history",
	Run: func(cmd *cobra.Command, args []string) {
		runStats(cmd.Context(), store.Filter{Owner: historyOwner})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <scan-id>",
	Short: "Print one stored scan, optionally writing its photo",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			die("Invalid scan ID", err)
		}
		if err := runShow(cmd.Context(), id, showOut); err != nil {
			die("Failed to show scan", err)
		}
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of scans to show (0 for all)")
	for _, c := range []*cobra.Command{historyCmd, statsCmd} {
		c.Flags().StringVar(&historyOwner, "owner", "", "Only include scans from this owner, e.g. telegram:<chat id>")
	}
	showCmd.Flags().StringVarP(&showOut, "out", "o", "", "Write the stored photo to this PNG file")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(showCmd)
}

func runHistory(ctx context.Context, f store.Filter) {
	records, err := Scans.List(ctx, f)
	if err != nil {
		die("Failed to list scans", err)
	}

	if len(records) == 0 {
		fmt.Println("No scans found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tDISEASE\tCONFIDENCE\tSCANNED")
	fmt.Fprintln(w, "--\t-------\t----------\t-------")

	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%s\n", rec.ID, catalog.Abbreviation(rec.Label),
			rec.Confidence*100, rec.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func runStats(ctx context.Context, f store.Filter) {
	labels, err := Scans.Labels(ctx, f)
	if err != nil {
		die("Failed to list scans", err)
	}

	summary := stats.Summarize(labels)
	fmt.Printf("Total scans: %d\nMost common: %s\n", summary.Total, summary.MostCommon)
	if summary.Total == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "\nDISEASE\tCOUNT")
	for _, c := range summary.Counts {
		fmt.Fprintf(w, "%s\t%d\n", c.Abbreviation, c.Count)
	}
	w.Flush()

	fmt.Printf("\n💡 %s\n", catalog.Tip(summary.Total))
}

func runShow(ctx context.Context, id uuid.UUID, out string) error {
	rec, err := Scans.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("ID:         %s\nDisease:    %s\nConfidence: %.1f%%\nScanned:    %s\n",
		rec.ID, rec.Label, rec.Confidence*100, rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if rec.Owner != "" {
		fmt.Printf("Owner:      %s\n", rec.Owner)
	}

	if out == "" {
		return nil
	}
	if len(rec.Image) == 0 {
		return fmt.Errorf("scan %s has no stored photo", id)
	}
	if err := os.WriteFile(out, rec.Image, 0o644); err != nil {
		return err
	}
	fmt.Printf("Photo written to %s\n", out)
	return nil
}

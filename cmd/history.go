package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/toyinlola/warden/pkg/cli"
	"github.com/toyinlola/warden/pkg/history"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "Show recorded scores for a directory",
	Long: `History lists past scan scores for a directory (default: the current
directory), newest first, with the change from each previous run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print entries as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if cfg.History.Backend == cli.HistoryNone {
		return fmt.Errorf("history: disabled (history.backend is none)")
	}

	store, err := openHistory(ctx, cfg.History)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer store.Close()

	// One extra entry gives the delta for the oldest row shown.
	fetch := historyLimit
	if fetch > 0 {
		fetch++
	}
	entries, err := store.List(ctx, abs, fetch)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	slog.Debug("history loaded", "target", abs, "entries", len(entries))

	rows := make([]historyRow, 0, len(entries))
	for i, e := range entries {
		if historyLimit > 0 && i == historyLimit {
			break
		}
		var prev *history.Entry
		if i+1 < len(entries) {
			prev = &entries[i+1]
		}
		rows = append(rows, historyRow{Entry: e, Trend: history.Compute(prev, e)})
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintf(out, "No recorded runs for %s\n", abs)
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSCORE\tGRADE\tDELTA\tTREND\tCRIT\tHIGH\tMED")
	for _, r := range rows {
		delta := "-"
		if r.Trend.Label != history.TrendFirstRun {
			delta = fmt.Sprintf("%+d", r.Trend.Delta)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.Entry.Timestamp.Local().Format("2006-01-02 15:04"),
			r.Entry.Score, r.Entry.Grade, delta, r.Trend.Label,
			r.Entry.Critical, r.Entry.High, r.Entry.Medium)
	}
	return tw.Flush()
}

// historyRow is one entry with its change from the run before it.
type historyRow struct {
	Entry history.Entry `json:"entry"`
	Trend history.Trend `json:"trend"`
}

package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/agupredict/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats [operation]",
	Short: "Show script invocation statistics",
	Long: `Query the server for invocation statistics per operation: counts,
failures by kind and moving averages of duration and peak memory.

Examples:
  agupredict stats          # all operations
  agupredict stats predict  # one operation`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"train", "predict"},
	RunE:      runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	path := "/stats"
	if len(args) > 0 {
		path += "?operation=" + url.QueryEscape(args[0])
	}

	data, status, err := NewClient().Get(path)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	if status == http.StatusNotFound {
		return fmt.Errorf("unknown operation: %s", args[0])
	}
	if status != http.StatusOK {
		return apiError(data, status)
	}

	if jsonOut {
		fmt.Println(string(data))
		return nil
	}

	if len(args) > 0 {
		var s stats.OperationStats
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		printOperationStats(&s)
		return nil
	}

	var all stats.AllStats
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	fmt.Printf("=== Invocation Statistics ===\n")
	fmt.Printf("Total invocations: %d\n\n", all.Invocations)

	if len(all.Operations) == 0 {
		fmt.Println("No invocations recorded yet.")
		return nil
	}

	names := make([]string, 0, len(all.Operations))
	for name := range all.Operations {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		printOperationStats(all.Operations[name])
		fmt.Println()
	}

	return nil
}

func printOperationStats(s *stats.OperationStats) {
	fmt.Printf("Operation: %s\n", s.Operation)
	fmt.Printf("  Invocations:  %d (%d succeeded)\n", s.Count, s.Succeeded)

	kinds := make([]string, 0, len(s.Failed))
	for kind := range s.Failed {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Printf("  Failed (%s): %d\n", kind, s.Failed[kind])
	}

	if s.Count == 0 {
		return
	}
	fmt.Printf("  Avg duration: %s\n", time.Duration(s.AvgDurationMS*float64(time.Millisecond)).Round(time.Millisecond))
	if s.AvgPeakRSSBytes > 0 {
		fmt.Printf("  Avg peak RSS: %.1f MiB\n", s.AvgPeakRSSBytes/(1<<20))
	}
	fmt.Printf("  Last run:     %s\n", s.LastInvocationAt.Format(time.RFC3339))
}

package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/agupredict/internal/config"
	"github.com/haskel/agupredict/internal/invoker"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <script> [args...]",
	Short: "Run any script through the invoker and show the selected line",
	Long: `Run a script from the scripts directory exactly as the server would,
with the configured interpreter, timeout and output selection, and print
the line the server would return. Meant for script authors checking the
output contract.

Examples:
  agupredict invoke TrainingModule.py '[1, 2]' '[10, 20]' --marker '"coefficients"'
  agupredict invoke check.py --no-validate -v`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInvoke,
}

var (
	invokeMarkers    []string
	invokeSelection  string
	invokeNoValidate bool
)

func init() {
	invokeCmd.Flags().StringArrayVar(&invokeMarkers, "marker", nil, "token the selected line must contain (repeatable)")
	invokeCmd.Flags().StringVar(&invokeSelection, "selection", "", "output selection: last_line or first_marker (default from config)")
	invokeCmd.Flags().BoolVar(&invokeNoValidate, "no-validate", false, "skip the marker check")
	rootCmd.AddCommand(invokeCmd)
}

type invokeOutput struct {
	ID           string `json:"id"`
	OK           bool   `json:"ok"`
	Payload      string `json:"payload,omitempty"`
	Kind         string `json:"kind,omitempty"`
	ExitCode     int    `json:"exit_code"`
	Diagnostic   string `json:"diagnostic,omitempty"`
	Lines        int    `json:"lines,omitempty"`
	DurationMS   int64  `json:"duration_ms,omitempty"`
	PeakRSSBytes uint64 `json:"peak_rss_bytes,omitempty"`
}

func runInvoke(cmd *cobra.Command, args []string) error {
	cfg, err := config.Resolve(cfgFile)
	if err != nil {
		return err
	}

	opts := invoker.OptionsFromConfig(cfg.Scripts)
	switch invoker.Selection(invokeSelection) {
	case "":
	case invoker.SelectLastLine, invoker.SelectFirstMarker:
		opts.Selection = invoker.Selection(invokeSelection)
	default:
		return fmt.Errorf("unknown selection %q", invokeSelection)
	}
	if invokeNoValidate {
		opts.Validate = false
	}
	if opts.Selection == invoker.SelectFirstMarker && len(invokeMarkers) == 0 {
		return errors.New("first_marker selection needs at least one --marker")
	}

	inv := invoker.New(opts, localLogger())
	res, err := inv.Invoke(commandContext(cmd), invoker.Request{
		Operation: "invoke",
		Script:    args[0],
		Args:      args[1:],
		Markers:   invokeMarkers,
	})

	if err != nil {
		var invErr *invoker.Error
		if !errors.As(err, &invErr) {
			return err
		}
		if jsonOut {
			if perr := printJSON(invokeOutput{
				Kind:       string(invErr.Kind),
				ExitCode:   invErr.ExitCode,
				Diagnostic: invErr.Diagnostic,
			}); perr != nil {
				return perr
			}
		}
		return describeFailure(args[0], err)
	}

	if jsonOut {
		return printJSON(invokeOutput{
			ID:           res.ID,
			OK:           true,
			Payload:      res.Payload,
			ExitCode:     res.ExitCode,
			Lines:        res.Lines,
			DurationMS:   res.Duration.Milliseconds(),
			PeakRSSBytes: res.Usage.PeakRSSBytes,
		})
	}

	fmt.Println(res.Payload)
	if verbose {
		fmt.Printf("# %d lines, %s, peak RSS %d bytes\n", res.Lines, res.Duration.Round(time.Millisecond), res.Usage.PeakRSSBytes)
	}
	return nil
}

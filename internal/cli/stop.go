package cli

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running agupredict server",
	Long: `Stop the server by sending SIGTERM to the process in the PID file.
Requests in flight are allowed to finish.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&pidFile, "pid-file", "", "PID file path (overrides config)")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	pid, err := signalServer(syscall.SIGTERM)
	if err != nil {
		return err
	}

	if jsonOut {
		fmt.Printf(`{"status":"stopping","pid":%d}`+"\n", pid)
	} else {
		fmt.Printf("Sent SIGTERM to process %d\n", pid)
	}

	return nil
}

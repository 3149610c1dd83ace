package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is up and its scripts are runnable",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

type readyStatus struct {
	Ready    bool     `json:"ready"`
	Message  string   `json:"message,omitempty"`
	Problems []string `json:"problems,omitempty"`
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := NewClient()

	if err := client.Health(); err != nil {
		return fmt.Errorf("server is not healthy: %w", err)
	}

	data, status, err := client.Get("/ready")
	if err != nil {
		return err
	}

	var ready readyStatus
	if err := json.Unmarshal(data, &ready); err != nil {
		return fmt.Errorf("failed to decode readiness: %w", err)
	}

	if jsonOut {
		fmt.Println(string(data))
	} else if ready.Ready {
		fmt.Println("Server is healthy and ready")
	} else {
		fmt.Printf("Server is up but not ready: %s\n", ready.Message)
		for _, p := range ready.Problems {
			fmt.Printf("  - %s\n", p)
		}
	}

	if status != http.StatusOK {
		return fmt.Errorf("server not ready")
	}
	return nil
}

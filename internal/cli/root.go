package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile  string
	host     string
	port     int
	jsonOut  bool
	verbose  bool
	user     string
	password string
	timeout  time.Duration

	// Version info (set from main)
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "agupredict",
	Short: "HTTP front end for AGU consumption training and prediction scripts",
	Long: `agupredict accepts temperature and consumption series over HTTP and
hands them to external training and prediction scripts, one child process
per request. The result line printed by the script is returned to the
caller.

Run "agupredict start" for the server. The other commands talk to a
running server, or run the scripts locally with --local.`,
	SilenceUsage: true,
}

// Execute runs the root command. An interrupt cancels the command's
// context, which kills any script started with --local.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&host, "host", "localhost", "server host")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 8080, "server port")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&user, "user", "", "auth username")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "auth password")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "request timeout (default: server write timeout from config plus 30s)")
}

func SetVersion(v string) {
	Version = v
	rootCmd.Version = v
}

// GetServerURL returns the server URL based on flags
func GetServerURL() string {
	return fmt.Sprintf("http://%s:%d", host, port)
}

func GetConfigFile() string {
	return cfgFile
}

func IsJSON() bool {
	return jsonOut
}

func IsVerbose() bool {
	return verbose
}

func GetAuth() (string, string) {
	return user, password
}

// Command censorlyctl is a small operator CLI for a running censorlyd:
// submit jobs, inspect status, cancel runs, and trigger the admin
// wordlist reload — generalizing the teacher pack's cobra-based
// transcription CLI into an admin/debug client for this service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := &cobra.Command{
		Use:           "censorlyctl",
		Short:         "Operator CLI for a running censorlyd",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().String("server", envOr("CENSORLYD_URL", "http://localhost:8080"), "censorlyd base URL")

	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(cancelCmd())
	rootCmd.AddCommand(wordlistReloadCmd())
	rootCmd.AddCommand(detectorStatsCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func serverURL(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("server")
	return v
}

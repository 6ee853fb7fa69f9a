package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"mlstudio/internal/client"
	"mlstudio/internal/common"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mlctl",
		Short: "Command line client for the mlstudio API",
		Long: `mlctl drives a running mlstudio server over its JSON API.
Query commands print the server response as indented JSON.`,
		SilenceUsage: true,
	}

	defaultURL := os.Getenv(common.EnvServerURL)
	if defaultURL == "" {
		defaultURL = common.DefaultServerURL
	}
	rootCmd.PersistentFlags().String("server", defaultURL, "mlstudio base URL")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		newDatasetsCmd(),
		newSelectCmd(),
		newFeaturesCmd(),
		newHistogramCmd(),
		newTrainCmd(),
		newHistoryCmd(),
		newModelsCmd(),
		newActivateCmd(),
		newArchiveCmd(),
		newRollbackCmd(),
		newEvaluationCmd(),
		newPredictCmd(),
		newRunsCmd(),
		newPredictionsCmd(),
		newStatusCmd(),
	)
	return rootCmd
}

func apiClient(cmd *cobra.Command) *client.Client {
	base, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return client.New(base, timeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/jnicheck/internal/http"
)

var (
	// serverURL is the base URL of a running jnicheck serve
	serverURL string
	statsJSON bool
)

func init() {
	statsCmd.Flags().StringVar(&serverURL, "server", "http://127.0.0.1:9464", "jnicheck server URL")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print the raw response")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-site call counts from a running server",
	Long: `Fetch the call statistics of the run published by jnicheck serve.
Counting requires checker.method_count (JNICHECK_CHECKER_METHOD_COUNT=true).

Examples:
  jnicheck stats
  jnicheck stats --server http://127.0.0.1:9500 --json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	url := strings.TrimSuffix(serverURL, "/") + "/api/v1/stats"

	client := &http.Client{
		Timeout: 5 * time.Second,
	}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if statsJSON {
		_, err := cmd.OutOrStdout().Write(body)
		return err
	}
	var stats httpserver.StatsResponse
	if err := json.Unmarshal(body, &stats); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats.RunID, stats.Calls))
	return nil
}

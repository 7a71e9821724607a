// Package main implements the deployctl CLI for operator tasks against the
// deployd HTTP server: credential management, deployment history, session
// inspection, and pipeline control (cancel, veto).
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	version   = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "deployctl",
	Short: "CLI for deployd server operations",
	Long: `deployctl is a command-line interface for the deployd daemon.
It manages per-session cloud credentials, lists deployment history, and
controls running pipelines.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "deployd server URL")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(credentialsCmd)
	rootCmd.AddCommand(deploymentsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(vetoCmd)
}

func client() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// getJSON performs a GET and decodes the response into out.
func getJSON(path string, out any) error {
	resp, err := client().Get(serverURL + path)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", serverURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// sendJSON performs a method+body request and returns the response.
func sendJSON(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, serverURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", serverURL, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check deployd server health",
	RunE: func(cmd *cobra.Command, args []string) error {
		var health struct {
			Status string `json:"status"`
		}
		if err := getJSON("/health", &health); err != nil {
			return err
		}
		fmt.Printf("Server Status: %s\n", health.Status)
		fmt.Printf("Server URL: %s\n", serverURL)
		return nil
	},
}

package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage per-session cloud credentials",
}

func init() {
	credentialsCmd.AddCommand(credentialsStatusCmd)
	credentialsCmd.AddCommand(credentialsSetCmd)
}

var credentialsStatusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show credential status for a session (never the secret)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var status struct {
			State       string `json:"status"`
			KeyLastFour string `json:"access_key_last_four,omitempty"`
			LastUpdated string `json:"updated_at,omitempty"`
		}
		if err := getJSON("/api/v1/sessions/"+args[0]+"/credentials", &status); err != nil {
			return err
		}
		fmt.Printf("Status:   %s\n", status.State)
		if status.KeyLastFour != "" {
			fmt.Printf("Key:      ****%s\n", status.KeyLastFour)
		}
		if status.LastUpdated != "" {
			fmt.Printf("Updated:  %s\n", status.LastUpdated)
		}
		return nil
	},
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <session-id>",
	Short: "Store credentials for a session",
	Long: `Store cloud credentials for a session. The access key ID and secret
are read from stdin (one per line) so they never appear in shell history
or the process list.

Example:
  deployctl credentials set sess-1 < creds.txt
  printf '%s\n%s\n' "$ACCESS_KEY_ID" "$SECRET_ACCESS_KEY" | deployctl credentials set sess-1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := bufio.NewScanner(os.Stdin)
		readLine := func(name string) (string, error) {
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return "", fmt.Errorf("failed to read %s: %w", name, err)
				}
				return "", fmt.Errorf("%s is required on stdin", name)
			}
			value := strings.TrimSpace(scanner.Text())
			if value == "" {
				return "", fmt.Errorf("%s cannot be empty", name)
			}
			return value, nil
		}

		accessKey, err := readLine("access key id")
		if err != nil {
			return err
		}
		secretKey, err := readLine("secret access key")
		if err != nil {
			return err
		}
		// Optional third line: session token.
		var sessionToken string
		if scanner.Scan() {
			sessionToken = strings.TrimSpace(scanner.Text())
		}

		body := map[string]string{
			"access_key_id":     accessKey,
			"secret_access_key": secretKey,
		}
		if sessionToken != "" {
			body["session_token"] = sessionToken
		}

		resp, err := sendJSON(http.MethodPut, "/api/v1/sessions/"+args[0]+"/credentials", body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			return statusError(resp)
		}
		fmt.Fprintf(os.Stderr, "Credentials stored for session %s\n", args[0])
		return nil
	},
}

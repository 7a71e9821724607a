package main

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var deploymentsLimit int

var deploymentsCmd = &cobra.Command{
	Use:   "deployments [session-id]",
	Short: "List deployment history, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fmt.Sprintf("/api/v1/deployments?limit=%d", deploymentsLimit)
		if len(args) == 1 {
			path += "&session_id=" + args[0]
		}

		var records []struct {
			DeploymentID string    `json:"deployment_id"`
			SessionID    string    `json:"session_id"`
			Target       string    `json:"target"`
			Status       string    `json:"status"`
			CreatedAt    time.Time `json:"created_at"`
		}
		if err := getJSON(path, &records); err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No deployments found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEPLOYMENT\tSESSION\tTARGET\tSTATUS\tCREATED")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				rec.DeploymentID, rec.SessionID, rec.Target, rec.Status,
				rec.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List live sessions and their pipeline stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		var statuses []struct {
			SessionID    string    `json:"session_id"`
			Stage        string    `json:"stage"`
			ActivePlanID string    `json:"active_plan_id,omitempty"`
			Turns        int       `json:"turns"`
			LastActivity time.Time `json:"last_activity"`
		}
		if err := getJSON("/api/v1/sessions", &statuses); err != nil {
			return err
		}
		if len(statuses) == 0 {
			fmt.Println("No live sessions.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tSTAGE\tPLAN\tTURNS\tLAST ACTIVITY")
		for _, s := range statuses {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				s.SessionID, s.Stage, s.ActivePlanID, s.Turns,
				s.LastActivity.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Request cancellation of a session's pipeline run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := sendJSON(http.MethodPost, "/api/v1/sessions/"+args[0]+"/cancel", nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			return statusError(resp)
		}
		fmt.Printf("Cancellation requested for session %s\n", args[0])
		return nil
	},
}

var vetoReason string

var vetoCmd = &cobra.Command{
	Use:   "veto <session-id>",
	Short: "Submit a compliance veto against the session's active plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if vetoReason == "" {
			return fmt.Errorf("--reason is required")
		}
		resp, err := sendJSON(http.MethodPost, "/api/v1/sessions/"+args[0]+"/veto",
			map[string]string{"reason": vetoReason})
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			return statusError(resp)
		}
		fmt.Printf("Veto submitted for session %s\n", args[0])
		return nil
	},
}

func init() {
	deploymentsCmd.Flags().IntVar(&deploymentsLimit, "limit", 20, "maximum records to list")
	vetoCmd.Flags().StringVar(&vetoReason, "reason", "", "reason for the veto (required)")
}

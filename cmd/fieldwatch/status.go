package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/phonginreallife/fieldwatch/db"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of a running monitor",
	Long: `Query a running fieldwatch instance and print its session summary.

Examples:
  fieldwatch status
  fieldwatch status --server http://monitor.internal:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := fetchStatus(serverURL)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), formatStatus(snap))
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the fieldwatch API")
}

func fetchStatus(baseURL string) (db.StatusSnapshot, error) {
	var snap db.StatusSnapshot

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/monitor/status")
	if err != nil {
		return snap, fmt.Errorf("failed to reach monitor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("monitor returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("failed to decode status: %w", err)
	}
	return snap, nil
}

func formatStatus(snap db.StatusSnapshot) string {
	var b strings.Builder
	state := color.New(color.FgYellow).Sprint("stopped")
	if snap.Running {
		state = color.New(color.FgGreen).Sprint("running")
	}
	overdue := fmt.Sprint(snap.Overdue)
	if snap.Overdue > 0 {
		overdue = color.New(color.FgRed).Sprint(snap.Overdue)
	}
	fmt.Fprintf(&b, "Monitor:     %s\n", state)
	fmt.Fprintf(&b, "Total:       %d\n", snap.Total)
	fmt.Fprintf(&b, "Checked in:  %d\n", snap.CheckedIn)
	fmt.Fprintf(&b, "Overdue:     %s\n", overdue)
	fmt.Fprintf(&b, "Upcoming:    %d\n", snap.Upcoming)
	if snap.LastTickAt != nil {
		fmt.Fprintf(&b, "Last tick:   %s\n", snap.LastTickAt.Format(time.RFC3339))
	}
	if snap.LastLoadError != "" {
		fmt.Fprintf(&b, "Load error:  %s\n", color.New(color.FgRed).Sprint(snap.LastLoadError))
	}
	return b.String()
}

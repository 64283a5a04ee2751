package main

import (
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/DevArk-AI/devark/internal/config"
	"github.com/DevArk-AI/devark/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the worker is running and what it sees",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	port := config.Get().WorkerPort
	client := &http.Client{Timeout: 2 * time.Second}
	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := getJSON(client, base+"/api/health", &health); err != nil {
		fmt.Printf("Worker: not running (port %d)\n", port)
		return nil
	}
	fmt.Printf("Worker: running (port %d, version %s)\n", port, health.Version)

	var snapshot state.State
	if err := getJSON(client, base+"/api/state", &snapshot); err != nil {
		return nil
	}

	fmt.Printf("Analyzed today: %d prompt(s)\n", snapshot.AnalyzedToday)
	for sourceID, status := range snapshot.AdapterStatus {
		readiness := "unavailable"
		switch {
		case status.IsWatching:
			readiness = "watching"
		case status.IsReady:
			readiness = "ready"
		}
		fmt.Printf("  %-12s %s, %d prompt(s) detected\n", sourceID+":", readiness, status.PromptsDetected)
	}
	if snapshot.Auth.LoggedIn {
		fmt.Println("Backend: logged in")
	} else {
		fmt.Println("Backend: not logged in")
	}
	return nil
}

func getJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

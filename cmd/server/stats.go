package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/Kunal-Gupta28/Connectly/internal/signaling"
)

var flagStatsURL string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show live rooms and connections of a running server",
	Long: `Query the /stats endpoint of a running signaling server and print the
open rooms with their participant counts.

Examples:
  connectly-signal stats
  connectly-signal stats --url http://meet.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := fetchStats(cmd.Context(), flagStatsURL)
		if err != nil {
			return err
		}
		renderStats(os.Stdout, stats)
		return nil
	},
}

func fetchStats(ctx context.Context, base string) (*signaling.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/stats", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch stats: unexpected status %s", resp.Status)
	}

	var stats signaling.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &stats, nil
}

func renderStats(w io.Writer, stats *signaling.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.SetTitle("Connectly rooms")
	t.AppendHeader(table.Row{"Room", "Participants"})

	participants := 0
	for _, r := range stats.Rooms {
		t.AppendRow(table.Row{r.RoomID, r.Members})
		participants += r.Members
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d rooms, %d connections", len(stats.Rooms), stats.Connections),
		participants,
	})
	t.SetCaption("up since %s", stats.StartedAt.Format(time.RFC1123))
	t.Render()
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVarP(&flagStatsURL, "url", "u", "http://localhost:8080", "server base URL")
}

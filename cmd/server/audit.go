package main

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Kunal-Gupta28/Connectly/internal/audit"
	"github.com/Kunal-Gupta28/Connectly/internal/config"
)

var (
	flagAuditRoom  string
	flagAuditLimit int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Print recorded room lifecycle events",
	Long: `Read the room audit database configured with --audit-driver and
--audit-dsn (or CONNECTLY_AUDIT_DRIVER / CONNECTLY_AUDIT_DSN) and print the
latest events, optionally for a single room.

Examples:
  connectly-signal audit --audit-driver sqlite3 --audit-dsn ./audit.db
  connectly-signal audit --room abc123 --limit 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadServer(v, cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		if cfg.AuditDriver == "" {
			return errors.New("no audit database configured")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		store, err := audit.Open(ctx, cfg.AuditDriver, cfg.AuditDSN)
		if err != nil {
			return err
		}
		defer store.Close()

		var entries []audit.Entry
		if flagAuditRoom != "" {
			entries, err = store.RoomHistory(ctx, flagAuditRoom, flagAuditLimit)
		} else {
			entries, err = store.Recent(ctx, flagAuditLimit)
		}
		if err != nil {
			return err
		}
		renderAudit(os.Stdout, entries)
		return nil
	},
}

func renderAudit(w io.Writer, entries []audit.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Time", "Event", "Room", "Connection", "Members"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.ID, e.At.Format("2006-01-02 15:04:05"), e.Kind, e.RoomID, e.ConnID, e.Members})
	}
	if len(entries) == 0 {
		t.SetCaption("no events recorded")
	}
	t.Render()
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().StringVarP(&flagAuditRoom, "room", "r", "", "only show this room")
	auditCmd.Flags().IntVarP(&flagAuditLimit, "limit", "n", 50, "number of events to show")
}

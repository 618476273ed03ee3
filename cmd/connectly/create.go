package main

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/Kunal-Gupta28/Connectly/internal/roomcode"
	"github.com/Kunal-Gupta28/Connectly/internal/ui"
)

var flagCopy bool

var createCmd = &cobra.Command{
	Use:     "create [room-code]",
	Aliases: []string{"c", "host"},
	Short:   "Create a room and wait for others to join",
	Long: `Create a room on the signaling server and enter it. Without a code a
memorable one such as "otter-ramen-maple" is generated.

Examples:
  connectly create
  connectly create standup --copy
  connectly create --server wss://meet.example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		roomID := roomcode.Generate()
		if len(args) == 1 {
			roomID = args[0]
		}

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		s, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		if err := s.Enter(ctx, roomID, true); err != nil {
			s.Close()
			return err
		}

		copied := false
		if flagCopy {
			if err := clipboard.WriteAll(roomID); err != nil {
				ui.PrintWarning(fmt.Sprintf("could not copy room code: %v", err))
			} else {
				copied = true
			}
		}
		fmt.Println(ui.RoomInfoView(roomID, cfg.ServerURL, copied))

		return runRoom(s, cfg)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().BoolVar(&flagCopy, "copy", false, "copy the room code to the clipboard")
}

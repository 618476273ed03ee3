package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kunal-Gupta28/Connectly/internal/session"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-code>",
	Aliases: []string{"j"},
	Short:   "Join an existing room",
	Long: `Join a room someone has already created.

Examples:
  connectly join otter-ramen-maple
  connectly join standup --name alice --relay`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		roomID := strings.TrimSpace(args[0])

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		s, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		if err := s.Enter(ctx, roomID, false); err != nil {
			s.Close()
			if errors.Is(err, session.ErrRoomNotFound) {
				return errors.New("room " + roomID + " does not exist, check the code or create it with: connectly create " + roomID)
			}
			return err
		}
		return runRoom(s, cfg)
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
}

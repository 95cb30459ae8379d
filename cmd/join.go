package cmd

import (
	"github.com/spf13/cobra"

	"github.com/krishangoyal12/Video-Chat-Application/internal/roomid"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id|link>",
	Aliases: []string{"j"},
	Short:   "Join a video call",
	Long: `Join an existing room. The argument may be a room id or a room link.

Examples:
  videochat join sleepy-otter-comet
  videochat join https://meet.example.com/room/sleepy-otter-comet
  videochat join sleepy-otter-comet --video cam.ivf --audio mic.ogg
  videochat join sleepy-otter-comet --server wss://meet.example.com/ws --relay --turn turn:turn.example.com:3478`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := roomid.Parse(args[0])
		if err != nil {
			return err
		}
		return joinRoom(cmd, id)
	},
}

func init() {
	addClientFlags(joinCmd)
	rootCmd.AddCommand(joinCmd)
}

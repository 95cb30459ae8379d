package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/krishangoyal12/Video-Chat-Application/internal/roomid"
	"github.com/krishangoyal12/Video-Chat-Application/internal/ui"
)

var newCmd = &cobra.Command{
	Use:     "new",
	Aliases: []string{"n"},
	Short:   "Create a room and print its link",
	Long: `Create a new room id and print the link to share. Rooms exist on the
server once somebody joins them.

Examples:
  videochat new
  videochat new --join --video cam.ivf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := roomid.Generate()
		if err != nil {
			return err
		}

		fmt.Println(ui.RoomInfo{
			RoomID:   id,
			RoomLink: roomid.Link(cfg.Client.WebBase, id),
			JoinCmd:  "videochat join " + id,
		}.View())

		join, _ := cmd.Flags().GetBool("join")
		if !join {
			return nil
		}
		return joinRoom(cmd, id)
	},
}

func init() {
	newCmd.Flags().Bool("join", false, "Join the new room right away")
	addClientFlags(newCmd)
	rootCmd.AddCommand(newCmd)
}

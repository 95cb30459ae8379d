package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// bindings maps config keys to flag names per command. Several commands
// share keys, and viper keeps one binding per key, so flags are bound only
// for the command that actually runs.
var bindings = map[*cobra.Command]map[string]string{}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if bindings[cmd] == nil {
		bindings[cmd] = map[string]string{}
	}
	bindings[cmd][key] = flag
}

func bindFlags(cmd *cobra.Command) error {
	for c := cmd; c != nil; c = c.Parent() {
		for key, name := range bindings[c] {
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				return fmt.Errorf("flag --%s is not defined on %s", name, cmd.Name())
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return err
			}
		}
	}
	return nil
}

// addClientFlags defines the flags shared by commands that join a call.
func addClientFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("server", "", "Signaling websocket URL (default ws://localhost:8000/ws)")
	flags.String("codec", "", "Wire codec: json or msgpack")
	flags.String("video", "", "IVF (VP8) file played as the camera")
	flags.String("audio", "", "Ogg (Opus) file played as the microphone")
	flags.StringSlice("stun", nil, "STUN server URL, repeatable")
	flags.StringSlice("turn", nil, "TURN server URL, repeatable")
	flags.String("turn-user", "", "TURN username")
	flags.String("turn-pass", "", "TURN password")
	flags.Bool("relay", false, "Only use TURN relay candidates")
	flags.Bool("headless", false, "Log to the console instead of showing the call view")

	bindFlag(cmd, "client.url", "server")
	bindFlag(cmd, "client.codec", "codec")
	bindFlag(cmd, "media.video_file", "video")
	bindFlag(cmd, "media.audio_file", "audio")
	bindFlag(cmd, "ice.stun", "stun")
	bindFlag(cmd, "ice.turn", "turn")
	bindFlag(cmd, "ice.turn_user", "turn-user")
	bindFlag(cmd, "ice.turn_pass", "turn-pass")
	bindFlag(cmd, "ice.force_relay", "relay")
}

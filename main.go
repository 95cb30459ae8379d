package main

import "github.com/krishangoyal12/Video-Chat-Application/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/timvw/muxtrack/cmd"

func main() {
	cmd.Execute()
}

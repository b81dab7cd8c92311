package main

import "github.com/crowdcast/presenced/cmd/presenced/commands"

func main() {
	commands.Execute()
}

// Command omadsctl is the CLI client for the omads sync daemon's admin
// plane (spec §6).
package main

import "github.com/go-omads/omads/cmd/omadsctl/commands"

func main() {
	commands.Execute()
}

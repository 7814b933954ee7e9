// buddy is a terminal AI assistant with tmux-backed shell execution.
package main

import (
	"os"

	"github.com/0xfe/buddy-sub001/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}

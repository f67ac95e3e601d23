// Command chatter is the terminal chat client.
package main

import "github.com/johndosdos/chatterfeed/internal/cli"

func main() {
	cli.Execute()
}

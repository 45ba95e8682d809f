// Command zenginctl is the operator CLI for the zengin bank-master sync.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"os"

	"github.com/heartmarshall/zengin-sync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

// Command townnews collects and normalizes TownNews search feeds.
package main

import (
	"github.com/greg-randall/townnews/cmd"
)

func main() {
	cmd.Execute()
}

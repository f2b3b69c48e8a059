// The main package for the harvester executable.
package main

import (
	"github.com/pmorrell/setlist-harvester/cmd"
)

func main() {
	cmd.Execute()
}

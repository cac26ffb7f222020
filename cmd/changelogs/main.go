// Command changelogs loads release history into a documentation site.
package main

import (
	"os"

	"github.com/kilupskalvis/changelogs/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// Sitesentry - site management connector with update self-healing
package main

import (
	"github.com/rcavanagh/sitesentry/internal/cli"
	"github.com/rcavanagh/sitesentry/internal/logging"
)

const version = "0.2.0"

func main() {
	defer func() { _ = logging.Sync() }()

	cli.SetVersion(version)
	cli.Execute()
}

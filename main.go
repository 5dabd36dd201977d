// osparc-tables - browse and export the paginated osparc list endpoints.
//
// Build with: go build -ldflags "-X github.com/itisfoundation/osparc-tables/internal/version.Version=vX.Y.Z"
package main

import (
	"os"

	"github.com/itisfoundation/osparc-tables/internal/cli"
)

func main() {
	// cobra prints the error
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// Command harnesstest bundles plugin archives, inspects their manifests,
// manages sandbox directories and runs plugins in an isolated host.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

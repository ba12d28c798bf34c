// Command hitrank ranks the jet-parton assignment hypotheses of
// semi-leptonic top-pair events.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hitrank:", err)
		os.Exit(1)
	}
}

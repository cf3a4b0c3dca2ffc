// Command easywebsim drives the easyWEB engine against SimNIC for
// scripted demonstration scenarios (spec.md §4.N).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

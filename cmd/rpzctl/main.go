package main

import (
	"fmt"
	"os"
)

const (
	version = "0.1.0-dev"
	appName = "rpzctl"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

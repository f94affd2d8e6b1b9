// Package main は kvstress のエントリポイント
package main

import (
	"fmt"
	"os"

	"kvstress/internal/logger"
)

var (
	version = "dev"
)

func main() {
	err := newRootCmd(&options{}).Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

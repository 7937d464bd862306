// notechat - developer CLI for the notechat relay
package main

import (
	"fmt"
	"os"

	"github.com/ashureev/notechat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

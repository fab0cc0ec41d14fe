package main

import (
	"os"

	"github.com/ayy-em/llm-storytell-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

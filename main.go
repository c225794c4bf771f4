package main

import (
	"os"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

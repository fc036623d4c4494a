package main

import (
	"os"

	"travel_agent/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

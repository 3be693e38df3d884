package main

import (
	"os"

	"github.com/joho/godotenv"

	appLog "weekcal/internal/log"
)

const version = "0.1.0"

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		appLog.Error("weekcal failed", err)
		os.Exit(1)
	}
}

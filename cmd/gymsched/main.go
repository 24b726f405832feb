package main

import (
	"github.com/joho/godotenv"

	"github.com/example/gym-booking-assistant/cmd"
)

func main() {
	// A local .env is a convenience; absence is not an error.
	_ = godotenv.Load()
	cmd.Execute()
}

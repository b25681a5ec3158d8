package main

import (
	"log"

	"github.com/statelink/statelink/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ statelink failed to start: %v", err)
	}
}

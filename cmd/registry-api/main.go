package main

import (
	"context"
	"log"

	"github.com/clawdhub/clawdhub/internal/registry"
)

func main() {
	if err := registry.App(context.Background()); err != nil {
		log.Fatalf("registry server exited: %v", err)
	}
}

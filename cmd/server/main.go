package main

import (
	"log"

	approuters "github.com/Tisha7353/Resono/internal/app_routers"
	"github.com/Tisha7353/Resono/internal/configuration"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	container, err := configuration.BuildContainer()
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	approuters.StartServer(container)
}

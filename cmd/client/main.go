package main

import (
	"flag"
	"fmt"
	"os"

	"relaychat/internal/app"
)

func main() {
	serverURL := flag.String("server", envOrDefault("RELAY_SERVER", "ws://localhost:5000/ws"), "server websocket URL")
	username := flag.String("user", envOrDefault("RELAY_USER", ""), "display name (prompted when empty)")
	flag.Parse()

	cfg := app.ClientConfig{
		ServerURL: *serverURL,
		Username:  *username,
	}

	if err := app.RunClient(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

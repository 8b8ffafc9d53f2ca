// Command lessonstub runs a local stub backend that speaks the tutoring
// API: streaming turns, message history, and episode generation jobs.
// Useful for developing the client without a real deployment.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/lessonloop/lessonloop/internal/devserver"
)

func main() {
	_ = godotenv.Load()

	port := flag.Int("port", 8787, "port to listen on")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	srv := devserver.New(logger)
	logger.Info("stub backend listening", slog.Int("port", *port))
	if err := srv.Start(*port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

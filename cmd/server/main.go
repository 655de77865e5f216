// cmd/server/main.go
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Corphon/BookRunner/internal/app"
	"github.com/Corphon/BookRunner/internal/config"
	"github.com/Corphon/BookRunner/internal/utils"
)

func main() {
	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application := app.GetApp()
	if err := application.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialise application: %v", err)
	}
	logger := utils.GetLogger()
	defer logger.Sync()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Info("Shutting down", map[string]interface{}{"signal": sig.String()})
		application.Stop()
	}()

	runErr := application.Run()
	if runErr != nil {
		logger.Error("Server stopped", map[string]interface{}{"error": runErr})
	}
	if err := application.Cleanup(); err != nil || runErr != nil {
		logger.Sync()
		os.Exit(1)
	}
}

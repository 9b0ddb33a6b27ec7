// linkboard is a terminal client for a URL-shortening service: signup
// and login, a dashboard of your shortened links, and click analytics,
// all against the service's REST API.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/linkboard/linkboard/internal/app"
	"github.com/linkboard/linkboard/internal/config"
	"github.com/linkboard/linkboard/internal/logger"
)

func run() error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("Unable to flush the logger: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.New(cfg).Run(ctx)
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("error: %v", err)
	}
}

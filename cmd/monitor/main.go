package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"futures-account-monitor/internal/container"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "configuration file path")
	flag.Parse()

	c, err := container.New(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := c.Build(); err != nil {
		log.Fatalf("build container: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		log.Fatalf("start container: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	if err := c.Stop(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

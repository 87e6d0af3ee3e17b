package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/app"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/types/config"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/web"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file (optional)")
	port := flag.Uint("port", 0, "http port, overrides the config file")
	compilerCmd := flag.String("compiler", "", "compiler binary, overrides the config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *port != 0 {
		cfg.HTTPPort = *port
	}
	if *compilerCmd != "" {
		cfg.CompilerCommand = *compilerCmd
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	container, err := app.NewContainer(cfg)
	if err != nil {
		log.Fatalf("init container: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container.Start(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: web.NewServer(container.Queue, container.Pool, container.Bus, container.Artifacts).Router(),
	}

	go func() {
		log.Printf("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Println("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Printf("engine shutdown: %v", err)
	}
}

func loadConfig(path string) (*config.EngineConfig, error) {
	if path == "" {
		return config.NewEngineConfig("engine")
	}
	return config.LoadFile(path)
}

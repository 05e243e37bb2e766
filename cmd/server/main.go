package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/cassava-api/internal/config"
	"github.com/Brownie44l1/cassava-api/internal/handlers"
	"github.com/Brownie44l1/cassava-api/internal/logging"
	"github.com/Brownie44l1/cassava-api/internal/pipeline"
	"github.com/Brownie44l1/cassava-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.Setup(cfg.LogFile, cfg.Debug); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scans, err := store.Open(ctx, cfg.StoreDSN)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer scans.Close()

	log.Printf("Loading model from: %s", cfg.ModelPath)

	// the server accepts requests while the model loads; predictions get 503 until ready
	loader := pipeline.Load(pipeline.OpenModel(cfg.ModelOptions()), cfg.ConfidenceThreshold)
	defer loader.Close()

	handler := handlers.NewHandler(loader, scans)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Backend: %s, store: %s", cfg.Backend, cfg.StoreDSN)
	log.Println("Endpoints:")
	log.Println("  GET /health - Health check")
	log.Println("  POST /predict - Raw array prediction")
	log.Println("  POST /predict/image - Predict from image upload")
	log.Println("  GET /history - Stored scans, newest first")
	log.Println("  GET /stats - Scan summary")
	log.Printf("Upload test: curl -X POST -F \"image=@leaf.jpg\" http://localhost:%s/predict/image", cfg.Port)

	if err := handlers.Serve(ctx, ":"+cfg.Port, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}

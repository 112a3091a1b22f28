package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/pevans/booksource/config"
	"github.com/pevans/booksource/converter"
	"github.com/pevans/booksource/sources"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	dbPath := "sources.db"
	addr := "localhost:8080"

	cfg, err := config.LoadConfigFile()
	if err != nil {
		log.Printf("Ignoring config file: %v", err)
	}
	if cfg != nil {
		if cfg.Storage.Sources.DSN != "" {
			dbPath = cfg.Storage.Sources.DSN
		}
		if cfg.Server.Address != "" {
			addr = cfg.Server.Address
		}
	}
	dbPath = getEnv("BOOKSOURCE_SOURCES_DSN", dbPath)
	addr = getEnv("BOOKSOURCE_ADDR", addr)

	// Create source store
	sourceStore, err := sources.NewSourceStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to create source store: %v", err)
	}
	defer sourceStore.Close()

	// Create config store
	configStore, err := config.NewConfigStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to create config store: %v", err)
	}
	defer configStore.Close()

	defaults, err := configStore.GetConfig()
	if err != nil {
		log.Fatalf("Failed to read conversion defaults: %v", err)
	}
	log.Printf("Conversion defaults: target=%s preserve=%t strict=%t jsoup=%s",
		defaults.DefaultTarget, defaults.PreserveOriginal, defaults.Strict, defaults.JsoupTarget)

	router := gin.Default()
	router.Use(sources.CORS())
	api := router.Group("/api/v1")

	// Mount source API routes
	sourceServer := sources.NewSourceAPIServer(sourceStore, converter.NewDispatcher(defaults.Options()))
	sourceServer.SetDefaults(func() converter.Options {
		current, err := configStore.GetConfig()
		if err != nil {
			log.Printf("Failed to read conversion defaults: %v", err)
			return defaults.Options()
		}
		return current.Options()
	})
	sourceServer.RegisterRoutes(api)

	// Mount config API routes
	configServer := config.NewConfigAPIServer(configStore)
	configServer.RegisterRoutes(api)

	log.Printf("Starting booksource API server on http://%s/api/v1", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/qrawareness/internal/bootstrap"
	"github.com/Lllllllleong/qrawareness/internal/config"
	"github.com/Lllllllleong/qrawareness/internal/logging"
	"go.uber.org/zap"
)

const entryPoint = "HandleLanding"

var (
	app    *bootstrap.App
	logger *zap.Logger
	once   sync.Once
)

func init() {
	// "HandleLanding" is the entry point name we'll see in GCP.
	functions.HTTP(entryPoint, handleLanding)
}

// main serves the function locally; on Cloud Functions the framework calls the
// registered entry point directly.
func main() {
	if os.Getenv("FUNCTION_TARGET") == "" {
		os.Setenv("FUNCTION_TARGET", entryPoint)
	}
	port := config.GetEnv("PORT", "8080")
	if err := funcframework.Start(port); err != nil {
		log.Fatalf("funcframework.Start: %v", err)
	}
}

// loadConfig never fails: a broken configuration leaves the page running local-only.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("WARNING: configuration invalid, running local-only: %v", err)
		return config.Default()
	}
	return cfg
}

func handleLanding(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for one-time initialization of clients.
	once.Do(func() {
		cfg := loadConfig()
		logger = logging.New(logging.Options{
			FilePath:   cfg.App.LogFilePath,
			Production: cfg.App.Environment == "production",
			Debug:      cfg.App.DebugMode,
		})
		app = bootstrap.New(context.Background(), cfg, logger)
		logger.Info("Landing page initialized.", zap.String("environment", cfg.App.Environment), zap.Bool("remote", cfg.RemoteEnabled()))
	})

	app.Handler.ServeHTTP(w, r)
}

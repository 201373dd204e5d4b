package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"touchview/internal/cache"
	"touchview/internal/config"
	"touchview/internal/decoder"
	"touchview/internal/handlers"
	"touchview/internal/jobs"
	"touchview/internal/logging"
	"touchview/internal/presenter"
	"touchview/internal/services"
)

func main() {
	logging.Init()

	if err := godotenv.Load(); err != nil {
		log.Println("📝 No .env file found, using environment variables")
	}

	cfg := config.Load()
	metrics := services.InitMetrics()

	conversionCache := cache.New(cfg.CacheDir)
	converter := presenter.NewRecordingConverter(decoder.DefaultRegistry(), presenter.DownsampleOptions{
		ImageStride: cfg.ImageStride,
	})
	converter.OnStats = metrics.ObserveDecode
	instrumented := &services.InstrumentedConverter{Inner: converter, Metrics: metrics}

	blueprints := presenter.NewBlueprintStore(cfg.CacheDir, cfg.AppID, cfg.DisableBlueprint)
	if cfg.LayoutFile != "" {
		if layout, err := presenter.LoadLayoutFile(cfg.LayoutFile); err != nil {
			log.Printf("⚠️  [LAYOUT] Could not load %s: %v", cfg.LayoutFile, err)
		} else {
			blueprints.SetLayout(layout)
			log.Printf("🎨 [LAYOUT] Loaded viewer layout from %s", cfg.LayoutFile)
		}
		if watcher := watchLayoutFile(cfg.LayoutFile, blueprints); watcher != nil {
			defer watcher.Close()
		}
	}

	sessionService := services.NewSessionService(cfg, conversionCache, instrumented, blueprints, metrics)

	scheduler := jobs.NewScheduler()
	scheduler.Register("cache-cleanup", jobs.NewCacheCleanupJob(cfg.CacheDir, cfg.CacheRetentionDays))
	scheduler.Start()

	app := fiber.New(fiber.Config{
		AppName: "touchview",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	prometheus := fiberprometheus.New("touchview")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	sessionHandler := handlers.NewSessionHandler(sessionService)
	healthHandler := handlers.NewHealthHandler(sessionService)

	app.Get("/health", healthHandler.Health)
	app.Post("/sessions", sessionHandler.Create)
	app.Get("/sessions", sessionHandler.List)
	app.Post("/sessions/:id/load", sessionHandler.Load)
	app.Get("/sessions/:id/state", sessionHandler.State)
	app.Delete("/sessions/:id", sessionHandler.Delete)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down server...")
		scheduler.Stop()
		sessionService.Shutdown()
		app.Shutdown()
	}()

	log.Printf("🚀 touchview server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
	log.Println("✅ Server stopped")
}

// watchLayoutFile reloads the viewer layout whenever the file is
// rewritten. The parent directory is watched because most editors
// replace the file instead of writing it in place.
func watchLayoutFile(path string, store *presenter.BlueprintStore) *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  [LAYOUT] Could not start layout watcher: %v", err)
		return nil
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		log.Printf("⚠️  [LAYOUT] Could not watch %s: %v", path, err)
		watcher.Close()
		return nil
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				layout, err := presenter.LoadLayoutFile(path)
				if err != nil {
					log.Printf("⚠️  [LAYOUT] Reload failed: %v", err)
					continue
				}
				store.SetLayout(layout)
				log.Printf("🔄 [LAYOUT] Reloaded viewer layout from %s", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️  [LAYOUT] Watcher error: %v", err)
			}
		}
	}()
	return watcher
}
